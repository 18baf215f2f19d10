package control

import (
	"math"
	"testing"
)

func mustPID(t *testing.T, cfg PIDConfig) *PIDController {
	t.Helper()
	pid, err := NewPIDController(cfg)
	if err != nil {
		t.Fatalf("NewPIDController() error: %v", err)
	}
	return pid
}

func TestNewPIDController_RejectsInconsistentLimits(t *testing.T) {
	cases := []struct {
		name     string
		neg, pos float64
	}{
		{"positive neg limit", 0.5, 1},
		{"negative pos limit", -1, -0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPIDController(PIDConfig{NegLimit: tc.neg, PosLimit: tc.pos})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestUpdate_OutputAlwaysWithinLimits(t *testing.T) {
	pid := mustPID(t, PIDConfig{
		Kp:       Constant(10),
		Ki:       Constant(5),
		Kd:       Constant(2),
		PosLimit: 1,
		NegLimit: -1,
		Rate:     100,
	})

	inputs := []PIDInput{
		{Setpoint: 1000, Measurement: 0},
		{Setpoint: -1000, Measurement: 0},
		{Setpoint: 0, Measurement: 500, Feedforward: 1e6},
		{Setpoint: 3, Measurement: -3, Feedforward: -1e6, LastOutput: 50},
		{Setpoint: 0.001, Measurement: 0, Deadzone: 0.5},
	}
	for tick := 0; tick < 200; tick++ {
		in := inputs[tick%len(inputs)]
		out := pid.Update(in)
		if out < -1 || out > 1 {
			t.Fatalf("tick %d: output %v outside [-1, 1]", tick, out)
		}
		if math.IsNaN(pid.Terms().I) || math.IsInf(pid.Terms().I, 0) {
			t.Fatalf("tick %d: integral not finite", tick)
		}
	}
}

func TestUpdate_LimitsMutableBetweenCalls(t *testing.T) {
	pid := mustPID(t, PIDConfig{Kp: Constant(1), PosLimit: 10, NegLimit: -10, Rate: 100})

	out := pid.Update(PIDInput{Setpoint: 5, Measurement: 0})
	if out != 5 {
		t.Fatalf("output=%v want 5", out)
	}

	pid.PosLimit = 2
	out = pid.Update(PIDInput{Setpoint: 5, Measurement: 0})
	if out != 2 {
		t.Fatalf("output after limit change=%v want 2", out)
	}
}

func TestReset_ZeroesTermsAndHistory(t *testing.T) {
	pid := mustPID(t, PIDConfig{
		Kp:       Constant(1),
		Ki:       Constant(1),
		Kd:       Constant(1),
		PosLimit: 10,
		NegLimit: -10,
		Rate:     100,
	})
	for i := 0; i < 150; i++ {
		pid.Update(PIDInput{Setpoint: 3, Measurement: 0, Feedforward: 1})
	}

	pid.Reset()
	terms := pid.Terms()
	if terms.P != 0 || terms.I != 0 || terms.F != 0 {
		t.Fatalf("terms after reset = %+v, want all zero", terms)
	}
	if pid.Control() != 0 {
		t.Fatalf("control after reset = %v, want 0", pid.Control())
	}

	// The first integral after a reset depends only on that tick's inputs.
	rate := 100.0
	decay := math.Exp(-1 / (rate * 100))
	pid.Update(PIDInput{Setpoint: 1, Measurement: 0})
	want := 1.0 * (1 / rate) * decay
	if got := pid.Terms().I; math.Abs(got-want) > 1e-12 {
		t.Fatalf("integral after reset = %v, want %v", got, want)
	}
}

func TestUpdate_Deadzone(t *testing.T) {
	pid := mustPID(t, PIDConfig{Kp: Constant(2), PosLimit: 10, NegLimit: -10, Rate: 100})

	cases := []struct {
		name  string
		err   float64
		wantP float64
	}{
		{"inside positive", 0.4, 0},
		{"inside negative", -0.4, 0},
		{"at edge", 0.5, 0},
		{"outside positive", 2.0, 3.0},  // (2 - 0.5) * kp
		{"outside negative", -2.0, -3.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pid.Reset()
			pid.Update(PIDInput{Setpoint: tc.err, Measurement: 0, Deadzone: 0.5})
			if got := pid.Terms().P; got != tc.wantP {
				t.Fatalf("p=%v want %v (exact)", got, tc.wantP)
			}
		})
	}
}

func TestUpdate_DerivativeFixedLag(t *testing.T) {
	// rate 10 Hz, 0.5 s period: derivative spans exactly 5 ticks.
	pid := mustPID(t, PIDConfig{
		Kd:               Constant(1),
		PosLimit:         100,
		NegLimit:         -100,
		Rate:             10,
		DerivativePeriod: 0.5,
	})

	// d must be zero until the history is full.
	for k := 0; k < 5; k++ {
		out := pid.Update(PIDInput{Setpoint: float64(k), Measurement: 0})
		if out != 0 {
			t.Fatalf("tick %d: output=%v want 0 before history fills", k, out)
		}
	}

	// Sixth tick: error 5, the sample from 5 ticks ago is 0.
	out := pid.Update(PIDInput{Setpoint: 5, Measurement: 0})
	if want := (5.0 - 0.0) / 5.0; math.Abs(out-want) > 1e-12 {
		t.Fatalf("output=%v want %v", out, want)
	}

	// Seventh tick: error 6, the sample from 5 ticks ago is 1.
	out = pid.Update(PIDInput{Setpoint: 6, Measurement: 0})
	if want := (6.0 - 1.0) / 5.0; math.Abs(out-want) > 1e-12 {
		t.Fatalf("output=%v want %v", out, want)
	}
}

func TestUpdate_AntiWindupConvergesUnderExternalSaturation(t *testing.T) {
	pid := mustPID(t, PIDConfig{
		Ki:       Constant(1),
		PosLimit: 1,
		NegLimit: -1,
		Rate:     100,
	})

	// Persistent positive error while the actuator is pinned far below the
	// command: the bleed must pull the integral back instead of letting it
	// wind toward the positive limit.
	maxI := 0.0
	for tick := 0; tick < 2000; tick++ {
		pid.Update(PIDInput{Setpoint: 1, Measurement: 0, LastOutput: -1})
		i := pid.Terms().I
		if math.IsNaN(i) || math.IsInf(i, 0) {
			t.Fatalf("tick %d: integral not finite", tick)
		}
		maxI = math.Max(maxI, math.Abs(i))
	}
	if maxI > 0.5 {
		t.Fatalf("integral wound up to %v despite external saturation", maxI)
	}
	// The bleed fixed point for these gains is zero integral.
	if got := math.Abs(pid.Terms().I); got > 0.01 {
		t.Fatalf("integral did not converge, |i|=%v", got)
	}
}

func TestUpdate_FreezeIntegrator(t *testing.T) {
	pid := mustPID(t, PIDConfig{
		Ki:       Constant(1),
		PosLimit: 10,
		NegLimit: -10,
		Rate:     100,
	})

	for i := 0; i < 50; i++ {
		pid.Update(PIDInput{Setpoint: 2, Measurement: 0})
	}
	before := pid.Terms().I
	decay := math.Exp(-1 / (100.0 * 100.0))

	pid.Update(PIDInput{Setpoint: 2, Measurement: 0, FreezeIntegrator: true})
	// Frozen: no accumulation and no bleed, only the leak applies.
	if got, want := pid.Terms().I, before*decay; math.Abs(got-want) > 1e-12 {
		t.Fatalf("frozen integral=%v want %v", got, want)
	}
}

func TestUpdate_FeedforwardClampedBeforeSummation(t *testing.T) {
	pid := mustPID(t, PIDConfig{
		Kp:       Constant(1),
		PosLimit: 1,
		NegLimit: -1,
		Rate:     100,
	})

	// A huge feedforward is clamped to the limit before summation, so the
	// stored f term can never exceed the envelope.
	pid.Update(PIDInput{Setpoint: 0, Measurement: 0, Feedforward: 1e9})
	if got := pid.Terms().F; got != 1 {
		t.Fatalf("f=%v want 1 (clamped before summation)", got)
	}
}
