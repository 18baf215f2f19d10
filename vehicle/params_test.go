package vehicle

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

const testVehicleYAML = `
name: test-sedan
wheelbase_m: 2.7
steer_ratio: 15.0
angle_offset_deg: 0.5

lateral:
  kp:
    bp: [0.0, 35.0]
    v: [0.1, 0.2]
  ki:
    bp: [0.0]
    v: [0.01]
  kd:
    bp: [0.0]
    v: [0.0]
  kf: 0.00006
  steer_max:
    bp: [0.0, 35.0]
    v: [0.4, 1.0]
  min_steer_speed_mps: 0.3
  saturation_time_s: 0.4

longitudinal:
  kp:
    bp: [0.0, 35.0]
    v: [1.2, 0.5]
  ki:
    bp: [0.0]
    v: [0.18]
  kd:
    bp: [0.0]
    v: [0.0]
  deadzone:
    bp: [0.0, 9.0]
    v: [0.0, 0.15]
  v_ego_stopping_mps: 0.5
  v_ego_starting_mps: 0.5
  stop_accel_mps2: -2.0
  start_accel_mps2: 0.6
  stopping_decel_rate_mps3: 0.8
  starting_accel_rate_mps3: 3.2
  stopping_control: false
  actuator_delay_lower_s: 0.15
  actuator_delay_upper_s: 0.30
`

func writeTempVehicle(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vehicle.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestLoadParams(t *testing.T) {
	p, err := LoadParams(writeTempVehicle(t, testVehicleYAML))
	if err != nil {
		t.Fatalf("LoadParams() error: %v", err)
	}
	if p.Name != "test-sedan" {
		t.Fatalf("name=%q want test-sedan", p.Name)
	}
	if p.AngleOffsetDeg != 0.5 {
		t.Fatalf("angle offset=%v want 0.5", p.AngleOffsetDeg)
	}

	latCfg, err := p.LatConfig(100)
	if err != nil {
		t.Fatalf("LatConfig() error: %v", err)
	}
	if got := latCfg.SteerMax.Interp(35); got != 1.0 {
		t.Fatalf("steer max at 35 m/s = %v want 1.0", got)
	}
	if latCfg.PID.Kf != 0.00006 {
		t.Fatalf("kf=%v want 0.00006", latCfg.PID.Kf)
	}

	longCfg, err := p.LongConfig(100)
	if err != nil {
		t.Fatalf("LongConfig() error: %v", err)
	}
	if longCfg.StopAccel != -2.0 || longCfg.StartAccel != 0.6 {
		t.Fatalf("stop/start accel = %v/%v", longCfg.StopAccel, longCfg.StartAccel)
	}
	if got := longCfg.Deadzone.Interp(4.5); math.Abs(got-0.075) > 1e-12 {
		t.Fatalf("deadzone at 4.5 m/s = %v want 0.075", got)
	}
}

func TestLoadParams_RejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing wheelbase", "name: x\nsteer_ratio: 15\n"},
		{"missing steer ratio", "name: x\nwheelbase_m: 2.7\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadParams(writeTempVehicle(t, tc.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGainTable_RejectsMismatchedLengths(t *testing.T) {
	g := GainTable{BP: []float64{0, 1, 2}, V: []float64{1, 2}}
	if _, err := g.Table(); err == nil {
		t.Fatal("expected error for mismatched bp/v")
	}
}

func TestMotionModel_SteerFromCurvature(t *testing.T) {
	m := MotionModel{WheelbaseM: 2.7, SteerRatio: 15.0}

	// Flat road: angle proportional to curvature with the expected sign.
	straight := m.SteerFromCurvatureDeg(0, 20, 0)
	if straight != 0 {
		t.Fatalf("zero curvature angle=%v want 0", straight)
	}
	left := m.SteerFromCurvatureDeg(0.01, 20, 0)
	want := 0.01 * 15.0 * 2.7 * 180 / math.Pi
	if math.Abs(left-want) > 1e-9 {
		t.Fatalf("angle=%v want %v", left, want)
	}
	if right := m.SteerFromCurvatureDeg(-0.01, 20, 0); math.Abs(right+want) > 1e-9 {
		t.Fatalf("angle=%v want %v", right, -want)
	}

	// Positive roll adds steering toward the high side at constant speed.
	rolled := m.SteerFromCurvatureDeg(0.01, 20, 0.05)
	if rolled <= left {
		t.Fatalf("roll compensation missing: %v <= %v", rolled, left)
	}

	// The roll term shrinks with speed.
	slowRolled := m.SteerFromCurvatureDeg(0.01, 5, 0.05)
	if slowRolled-left <= rolled-left {
		t.Fatal("roll compensation should grow as speed drops")
	}
}
