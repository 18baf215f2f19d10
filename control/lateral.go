package control

import (
	"fmt"
	"math"
)

// satEpsilon is how close the command must be to the active limit to count as
// saturated.
const satEpsilon = 1e-3

// CurvatureToAngle converts a path curvature to a steering angle in degrees
// for the given speed and road roll. Bound once at construction from the
// vehicle motion model.
type CurvatureToAngle func(curvature, speed, roll float64) float64

// SteerFeedforward returns the expected steady-state steering torque for a
// desired angle at a speed. Bound once at construction from the vehicle
// torque curve.
type SteerFeedforward func(angleDeg, speed float64) float64

// LatConfig holds lateral controller tuning.
type LatConfig struct {
	PID PIDConfig

	// SteerMax maps speed to the symmetric output authority. Steering
	// authority shrinks toward low speed.
	SteerMax Table

	// MinSteerSpeed is the cutoff below which no steering is commanded.
	MinSteerSpeed float64

	// SaturationTime is how long the command must sit at the limit before
	// the saturated flag raises.
	SaturationTime float64

	// Rate is the control loop frequency in Hz. Zero means 100.
	Rate float64
}

// LatDiagnostics is the per-tick lateral telemetry record.
type LatDiagnostics struct {
	AngleDesiredDeg float64
	AngleErrorDeg   float64
	P               float64
	I               float64
	F               float64
	Output          float64
	Active          bool
	Saturated       bool
}

// LatController converts desired curvature into a steering command by
// regulating the measured steering angle with an owned PID core plus vehicle
// feedforward.
type LatController struct {
	pid         *PIDController
	angleFrom   CurvatureToAngle
	feedforward SteerFeedforward
	steerMax    Table

	minSteerSpeed float64
	dt            float64
	satTime       float64

	satAccum   float64
	lastOutput float64
}

// NewLatController builds a lateral controller with the given motion-model
// conversion and feedforward capability.
func NewLatController(cfg LatConfig, angleFrom CurvatureToAngle, feedforward SteerFeedforward) (*LatController, error) {
	if angleFrom == nil {
		return nil, fmt.Errorf("nil curvature-to-angle conversion")
	}
	if feedforward == nil {
		return nil, fmt.Errorf("nil steer feedforward")
	}
	if cfg.SteerMax.Empty() {
		return nil, fmt.Errorf("empty steer limit table")
	}
	pid, err := NewPIDController(cfg.PID)
	if err != nil {
		return nil, fmt.Errorf("lateral pid: %w", err)
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 100
	}
	return &LatController{
		pid:           pid,
		angleFrom:     angleFrom,
		feedforward:   feedforward,
		steerMax:      cfg.SteerMax,
		minSteerSpeed: cfg.MinSteerSpeed,
		dt:            1 / rate,
		satTime:       cfg.SaturationTime,
	}, nil
}

// Reset discards all controller state, including the stale integral.
func (c *LatController) Reset() {
	c.pid.Reset()
	c.satAccum = 0
	c.lastOutput = 0
}

// ReportAppliedSteer overwrites the last-applied output fed to the next
// tick's anti-windup bleed. Call it when the actuator clipped or lagged the
// commanded value; without a report the controller assumes its own last
// command was applied.
func (c *LatController) ReportAppliedSteer(v float64) {
	c.lastOutput = v
}

// Update runs one lateral tick. desiredCurvature follows the planner sign
// convention (positive left); angleOffsetDeg aligns the planner frame with
// the measured steering angle frame.
func (c *LatController) Update(active bool, desiredCurvature, measuredAngleDeg, speed, roll, angleOffsetDeg float64) (float64, float64, LatDiagnostics) {
	angleNoOffset := c.angleFrom(-desiredCurvature, speed, roll)
	angleDes := angleNoOffset + angleOffsetDeg

	diag := LatDiagnostics{
		AngleDesiredDeg: angleDes,
		AngleErrorDeg:   angleDes - measuredAngleDeg,
	}

	if speed < c.minSteerSpeed || !active {
		c.Reset()
		return 0, angleDes, diag
	}

	steersMax := c.steerMax.Interp(speed)
	c.pid.PosLimit = steersMax
	c.pid.NegLimit = -steersMax

	// The offset aligns reference frames and contributes no resistive
	// torque, so feedforward is evaluated at the offset-free angle.
	ff := c.feedforward(angleNoOffset, speed)

	output := c.pid.Update(PIDInput{
		Setpoint:    angleDes,
		Measurement: measuredAngleDeg,
		LastOutput:  c.lastOutput,
		Speed:       speed,
		Feedforward: ff,
	})
	c.lastOutput = output

	terms := c.pid.Terms()
	diag.P = terms.P
	diag.I = terms.I
	diag.F = terms.F
	diag.Output = output
	diag.Active = true
	diag.Saturated = c.checkSaturation(steersMax-math.Abs(output) < satEpsilon)

	return output, angleDes, diag
}

// checkSaturation debounces the raw saturation condition: the flag raises
// only after the command has sat at the limit for SaturationTime.
func (c *LatController) checkSaturation(saturated bool) bool {
	if c.satTime <= 0 {
		return saturated
	}
	if saturated {
		c.satAccum += c.dt
	} else {
		c.satAccum -= c.dt
	}
	c.satAccum = ClampFloat(c.satAccum, 0, c.satTime)
	return c.satAccum >= c.satTime
}
