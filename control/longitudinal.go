package control

import (
	"fmt"
	"math"
)

// Acceleration envelope per ISO 15622:2018, valid for all speeds. A hard
// clamp on the trajectory feedforward, never bypassed.
const (
	AccelMinISO = -3.5 // m/s^2
	AccelMaxISO = 2.0  // m/s^2
)

// TrajectoryLen is the fixed sample count of a planned trajectory.
const TrajectoryLen = 17

// trajectoryTimes holds the future time offset of each trajectory sample.
var trajectoryTimes = func() []float64 {
	t := make([]float64, TrajectoryLen)
	for i := range t {
		x := float64(i) / 32.0
		t[i] = 10.0 * x * x
	}
	return t
}()

// TrajectoryTimes returns a copy of the future time offsets a Trajectory is
// sampled at. Planners must emit samples on this grid.
func TrajectoryTimes() []float64 {
	out := make([]float64, TrajectoryLen)
	copy(out, trajectoryTimes)
	return out
}

// LongState is the longitudinal control state machine state.
type LongState int

const (
	LongStateOff LongState = iota
	LongStateTracking
	LongStateStopping
	LongStateStarting
)

func (s LongState) String() string {
	switch s {
	case LongStateOff:
		return "off"
	case LongStateTracking:
		return "tracking"
	case LongStateStopping:
		return "stopping"
	case LongStateStarting:
		return "starting"
	default:
		return "unknown"
	}
}

// Trajectory is the planner speed/accel plan sampled at trajectoryTimes.
// A trajectory of the wrong length is treated as missing and targets default
// to zero.
type Trajectory struct {
	Speeds []float64
	Accels []float64
}

// Valid reports whether the trajectory has the expected fixed length.
func (t Trajectory) Valid() bool {
	return len(t.Speeds) == TrajectoryLen && len(t.Accels) == TrajectoryLen
}

// VehicleState is the per-tick sensor snapshot consumed by the longitudinal
// controller.
type VehicleState struct {
	VEgo             float64
	BrakePressed     bool
	GasPressed       bool
	Standstill       bool
	CruiseStandstill bool
}

// Lead is an optional tracked lead vehicle snapshot. A nil *Lead means no
// valid lead.
type Lead struct {
	VLead float64
}

// AccelLimits is the per-tick commanded acceleration envelope.
type AccelLimits struct {
	Min float64
	Max float64
}

// LongConfig holds longitudinal controller tuning.
type LongConfig struct {
	PID PIDConfig

	// Deadzone maps speed to the tracking error deadzone.
	Deadzone Table

	// Below VEgoStopping a decelerating or braking trajectory commits to a
	// stop; above VEgoStarting an accelerating trajectory commits to moving.
	VEgoStopping float64
	VEgoStarting float64

	// StopAccel is the accel held at standstill; StartAccel is the release
	// threshold that hands control back to tracking.
	StopAccel  float64
	StartAccel float64

	// Ramp rates in m/s^3 for the stopping and starting states.
	StoppingDecelRate float64
	StartingAccelRate float64

	// StoppingControl is true when the vehicle holds braking at standstill
	// itself; without it the controller prevents near-stop overshoot.
	StoppingControl bool

	// Actuator delay bounds in seconds for the trajectory feedforward.
	ActuatorDelayLower float64
	ActuatorDelayUpper float64

	// Rate is the control loop frequency in Hz. Zero means 100.
	Rate float64
}

// LongDiagnostics is the per-tick longitudinal telemetry record.
type LongDiagnostics struct {
	State         LongState
	VTarget       float64
	VTargetFuture float64
	ATarget       float64
	P             float64
	I             float64
	F             float64
	Output        float64
}

// LongController converts a planned speed/accel trajectory into a commanded
// acceleration through a 4-state machine wrapping an owned PID core.
type LongController struct {
	cfg LongConfig
	pid *PIDController
	dt  float64

	state           LongState
	vPid            float64
	lastOutputAccel float64
}

// NewLongController validates cfg and returns a controller in the off state.
func NewLongController(cfg LongConfig) (*LongController, error) {
	if cfg.ActuatorDelayLower <= 0 || cfg.ActuatorDelayUpper <= 0 {
		return nil, fmt.Errorf("actuator delay bounds must be positive, got [%v, %v]", cfg.ActuatorDelayLower, cfg.ActuatorDelayUpper)
	}
	if cfg.StopAccel >= 0 {
		return nil, fmt.Errorf("stop accel must be negative, got %v", cfg.StopAccel)
	}
	pid, err := NewPIDController(cfg.PID)
	if err != nil {
		return nil, fmt.Errorf("longitudinal pid: %w", err)
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 100
	}
	return &LongController{
		cfg:   cfg,
		pid:   pid,
		dt:    1 / rate,
		state: LongStateOff,
	}, nil
}

// State returns the current state machine state.
func (c *LongController) State() LongState {
	return c.state
}

// reset clears the PID core and re-centers the setpoint on the current
// speed, so re-engagement starts from reality.
func (c *LongController) reset(vPid float64) {
	c.pid.Reset()
	c.vPid = vPid
}

// targets preprocesses the trajectory into (vTarget, vTargetFuture, aTarget).
// The feedforward accel is finite-differenced at both actuator-delay bounds
// and the minimum taken, assuming worst-case lag. A missing or malformed
// trajectory yields zero targets.
func (c *LongController) targets(plan Trajectory) (float64, float64, float64) {
	if !plan.Valid() {
		return 0, 0, 0
	}
	lower := c.cfg.ActuatorDelayLower
	upper := c.cfg.ActuatorDelayUpper

	vLower := interpPoints(lower, trajectoryTimes, plan.Speeds)
	aLower := 2*(vLower-plan.Speeds[0])/lower - plan.Accels[0]

	vUpper := interpPoints(upper, trajectoryTimes, plan.Speeds)
	aUpper := 2*(vUpper-plan.Speeds[0])/upper - plan.Accels[0]

	return plan.Speeds[0], plan.Speeds[TrajectoryLen-1], math.Min(aLower, aUpper)
}

// nextState evaluates the state machine transitions for one tick and returns
// the computed next state.
func (c *LongController) nextState(active bool, vEgo, vTargetFuture, vTarget, outputAccel float64, brakePressed, cruiseStandstill bool, lead *Lead) LongState {
	if !active {
		return LongStateOff
	}

	accelerating := vTargetFuture > vTarget
	stopping := (vEgo < 2.0 && cruiseStandstill) ||
		(vEgo < c.cfg.VEgoStopping &&
			((vTargetFuture < c.cfg.VEgoStopping && !accelerating) || brakePressed))

	starting := vTargetFuture > c.cfg.VEgoStarting && accelerating && !cruiseStandstill
	if lead != nil {
		// Do not start into a lead that is itself still near standstill.
		starting = starting && lead.VLead > c.cfg.VEgoStarting
	}

	next := c.state
	switch c.state {
	case LongStateOff:
		next = LongStateTracking
	case LongStateTracking:
		if stopping {
			next = LongStateStopping
		}
	case LongStateStopping:
		if starting {
			next = LongStateStarting
		}
	case LongStateStarting:
		if stopping {
			next = LongStateStopping
		} else if outputAccel >= c.cfg.StartAccel {
			next = LongStateTracking
		}
	}
	return next
}

// Update runs one longitudinal tick: trajectory preprocessing, the state
// transition, and the per-state command. The returned accel is clamped to
// limits since per-state math can transiently exceed the envelope.
func (c *LongController) Update(active bool, vs VehicleState, plan Trajectory, limits AccelLimits, lead *Lead) (float64, LongDiagnostics) {
	vTarget, vTargetFuture, aTarget := c.targets(plan)

	// Boost feedforward at crawl speed where actuator response is weakest.
	if aTarget > 0 {
		aTarget *= interpPoints(vs.VEgo, []float64{0, 3}, []float64{1.2, 1.0})
	}
	aTarget = ClampFloat(aTarget, AccelMinISO, AccelMaxISO)

	c.pid.NegLimit = limits.Min
	c.pid.PosLimit = limits.Max

	outputAccel := c.lastOutputAccel
	c.state = c.nextState(active, vs.VEgo, vTargetFuture, vTarget, outputAccel,
		vs.BrakePressed, vs.CruiseStandstill, lead)

	switch {
	case c.state == LongStateOff || vs.GasPressed:
		c.reset(vs.VEgo)
		outputAccel = 0

	case c.state == LongStateTracking:
		c.vPid = vTarget

		// Without a standstill-hold mode the vehicle brakes harder as it
		// decides the driver wants to stop; freeze the integrator so the
		// controller does not accelerate to compensate, and never command
		// positive accel into a near-stop target.
		preventOvershoot := !c.cfg.StoppingControl && vs.VEgo < 1.5 &&
			vTargetFuture < 0.7 && vTargetFuture < c.vPid

		outputAccel = c.pid.Update(PIDInput{
			Setpoint:         c.vPid,
			Measurement:      vs.VEgo,
			LastOutput:       c.lastOutputAccel,
			Speed:            vs.VEgo,
			Feedforward:      aTarget,
			Deadzone:         c.cfg.Deadzone.Interp(vs.VEgo),
			FreezeIntegrator: preventOvershoot,
		})
		if preventOvershoot {
			outputAccel = math.Min(outputAccel, 0)
		}

	case c.state == LongStateStopping:
		// Ramp the held accel down until the car is stopped and the hold
		// accel is reached; steeper far from the hold point.
		if !vs.Standstill || outputAccel > c.cfg.StopAccel {
			scale := interpPoints(outputAccel,
				[]float64{c.cfg.StopAccel, c.cfg.StopAccel / 2, 0},
				[]float64{0.3, 0.65, 1.2})
			outputAccel -= c.cfg.StoppingDecelRate * c.dt * scale
		}
		outputAccel = ClampFloat(outputAccel, limits.Min, limits.Max)
		c.reset(vs.VEgo)

	case c.state == LongStateStarting:
		// Release brake quickly before handing control back to tracking.
		if outputAccel < c.cfg.StartAccel {
			outputAccel += c.cfg.StartingAccelRate * c.dt
		}
		c.reset(vs.VEgo)
	}

	c.lastOutputAccel = outputAccel
	final := ClampFloat(outputAccel, limits.Min, limits.Max)

	terms := c.pid.Terms()
	return final, LongDiagnostics{
		State:         c.state,
		VTarget:       vTarget,
		VTargetFuture: vTargetFuture,
		ATarget:       aTarget,
		P:             terms.P,
		I:             terms.I,
		F:             terms.F,
		Output:        final,
	}
}
