package control

import (
	"fmt"
	"math"
)

// PIDConfig holds the tuning for one PIDController. Gains are speed-scheduled
// tables; Constant() wraps a fixed gain.
type PIDConfig struct {
	Kp Table
	Ki Table
	Kd Table

	// Kf scales the feedforward input. Zero means unity gain.
	Kf float64

	// Output saturation. NegLimit <= 0 <= PosLimit is required; both may be
	// overwritten between ticks and apply to the next Update.
	PosLimit float64
	NegLimit float64

	// Rate is the control loop frequency in Hz. Zero means 100.
	Rate float64

	// IDecayTau is the integral leak time constant in seconds. Zero means 100.
	IDecayTau float64

	// DerivativePeriod is the fixed derivative lag in seconds. Zero means 1.
	DerivativePeriod float64
}

// PIDInput carries one tick of inputs to Update. All values are assumed
// finite; out-of-range results are clamped, never signaled.
type PIDInput struct {
	Setpoint    float64
	Measurement float64

	// LastOutput is the output the actuator actually applied on the previous
	// tick. It may differ from the previous Update result when the actuator
	// saturates or lags; the anti-windup bleed pulls the integrator toward
	// consistency with it.
	LastOutput float64

	// Speed selects the operating point for the gain schedule.
	Speed float64

	Feedforward float64
	Deadzone    float64

	// FreezeIntegrator holds the integral term unchanged this tick.
	FreezeIntegrator bool
}

// PIDTerms is a snapshot of the controller terms after an Update, for
// telemetry.
type PIDTerms struct {
	P float64
	I float64
	F float64
}

// PIDController is a gain-scheduled PID plus feedforward regulator with
// output saturation, back-calculation anti-windup and a fixed-lag derivative.
// It is single-threaded; ticks must arrive in order since the integral and
// the error history are temporally stateful.
type PIDController struct {
	kp Table
	ki Table
	kd Table
	kf float64

	// Mutable between calls; applied on the next Update.
	PosLimit float64
	NegLimit float64

	iRate       float64
	iUnwindRate float64
	iDecay      float64
	dPeriod     int

	p       float64
	i       float64
	f       float64
	control float64

	// Fixed-capacity ring of the last dPeriod errors, indexed by tick count.
	errs     []float64
	errCount int
}

// NewPIDController validates cfg and returns a reset controller.
func NewPIDController(cfg PIDConfig) (*PIDController, error) {
	if cfg.NegLimit > 0 || cfg.PosLimit < 0 {
		return nil, fmt.Errorf("inconsistent output limits [%v, %v]: need neg <= 0 <= pos", cfg.NegLimit, cfg.PosLimit)
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 100
	}
	tau := cfg.IDecayTau
	if tau <= 0 {
		tau = 100
	}
	dSeconds := cfg.DerivativePeriod
	if dSeconds <= 0 {
		dSeconds = 1
	}
	dPeriod := int(math.Round(dSeconds * rate))
	if dPeriod < 1 {
		dPeriod = 1
	}
	kf := cfg.Kf
	if kf == 0 {
		kf = 1
	}
	return &PIDController{
		kp:          cfg.Kp,
		ki:          cfg.Ki,
		kd:          cfg.Kd,
		kf:          kf,
		PosLimit:    cfg.PosLimit,
		NegLimit:    cfg.NegLimit,
		iRate:       1 / rate,
		iUnwindRate: 1 / rate,
		iDecay:      math.Exp(-1 / (rate * tau)),
		dPeriod:     dPeriod,
		errs:        make([]float64, dPeriod),
	}, nil
}

// Reset zeroes all controller state. It must be called whenever control
// authority is lost, so a stale integral never acts on the next engagement.
func (pid *PIDController) Reset() {
	pid.p = 0
	pid.i = 0
	pid.f = 0
	pid.control = 0
	pid.errCount = 0
}

// Update runs one controller tick and returns the saturated command.
func (pid *PIDController) Update(in PIDInput) float64 {
	// Bleed computed from the previous tick's terms against the output that
	// was actually applied, before this tick's terms overwrite them.
	iBleed := pid.iUnwindRate * (pid.p + pid.i + pid.f - in.LastOutput)

	err := applyDeadzone(in.Setpoint-in.Measurement, in.Deadzone)

	pid.p = err * pid.kp.Interp(in.Speed)
	if !in.FreezeIntegrator {
		pid.i = pid.i + err*pid.ki.Interp(in.Speed)*pid.iRate - iBleed
	}
	// Clamp feedforward before summation so a large feedforward cannot clip
	// the PI action out of the final command.
	pid.f = ClampFloat(in.Feedforward*pid.kf, pid.NegLimit, pid.PosLimit)

	var d float64
	if pid.errCount >= pid.dPeriod {
		// The slot about to be overwritten holds the error from exactly
		// dPeriod ticks ago.
		oldest := pid.errs[pid.errCount%pid.dPeriod]
		d = pid.kd.Interp(in.Speed) * (err - oldest) / float64(pid.dPeriod)
	}

	raw := pid.p + pid.i + pid.f + d

	pid.i *= pid.iDecay
	pid.errs[pid.errCount%pid.dPeriod] = err
	pid.errCount++

	pid.control = ClampFloat(raw, pid.NegLimit, pid.PosLimit)
	return pid.control
}

// Terms returns the p/i/f terms from the most recent Update.
func (pid *PIDController) Terms() PIDTerms {
	return PIDTerms{P: pid.p, I: pid.i, F: pid.f}
}

// Control returns the most recent saturated command.
func (pid *PIDController) Control() float64 {
	return pid.control
}
