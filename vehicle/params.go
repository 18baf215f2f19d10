package vehicle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"drive-control-core/control"
)

// GainTable is the YAML form of a breakpoint table: parallel breakpoint and
// value slices.
type GainTable struct {
	BP []float64 `yaml:"bp"`
	V  []float64 `yaml:"v"`
}

// Table converts the YAML form into a control.Table.
func (g GainTable) Table() (control.Table, error) {
	if len(g.BP) != len(g.V) {
		return control.Table{}, fmt.Errorf("bp/v length mismatch: %d vs %d", len(g.BP), len(g.V))
	}
	points := make([]control.Breakpoint, len(g.BP))
	for i := range g.BP {
		points[i] = control.Breakpoint{X: g.BP[i], Y: g.V[i]}
	}
	return control.NewTable(points)
}

// LateralTuning is the lateral controller section of a vehicle file.
type LateralTuning struct {
	Kp GainTable `yaml:"kp"`
	Ki GainTable `yaml:"ki"`
	Kd GainTable `yaml:"kd"`
	Kf float64   `yaml:"kf"`

	SteerMax         GainTable `yaml:"steer_max"`
	MinSteerSpeedMPS float64   `yaml:"min_steer_speed_mps"`
	SaturationTimeS  float64   `yaml:"saturation_time_s"`
}

// LongitudinalTuning is the longitudinal controller section of a vehicle
// file.
type LongitudinalTuning struct {
	Kp       GainTable `yaml:"kp"`
	Ki       GainTable `yaml:"ki"`
	Kd       GainTable `yaml:"kd"`
	Deadzone GainTable `yaml:"deadzone"`

	VEgoStoppingMPS float64 `yaml:"v_ego_stopping_mps"`
	VEgoStartingMPS float64 `yaml:"v_ego_starting_mps"`
	StopAccel       float64 `yaml:"stop_accel_mps2"`
	StartAccel      float64 `yaml:"start_accel_mps2"`

	StoppingDecelRate float64 `yaml:"stopping_decel_rate_mps3"`
	StartingAccelRate float64 `yaml:"starting_accel_rate_mps3"`
	StoppingControl   bool    `yaml:"stopping_control"`

	ActuatorDelayLowerS float64 `yaml:"actuator_delay_lower_s"`
	ActuatorDelayUpperS float64 `yaml:"actuator_delay_upper_s"`
}

// Params is one vehicle's already-parsed tuning. The control core never
// reads files itself; this package is the parsing boundary.
type Params struct {
	Name       string  `yaml:"name"`
	WheelbaseM float64 `yaml:"wheelbase_m"`
	SteerRatio float64 `yaml:"steer_ratio"`

	// AngleOffsetDeg aligns the planner frame with the steering sensor
	// frame, from calibration.
	AngleOffsetDeg float64 `yaml:"angle_offset_deg"`

	Lateral      LateralTuning      `yaml:"lateral"`
	Longitudinal LongitudinalTuning `yaml:"longitudinal"`
}

// LoadParams reads and validates a vehicle tuning file.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vehicle file: %w", err)
	}
	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse vehicle file: %w", err)
	}
	if p.WheelbaseM <= 0 {
		return nil, fmt.Errorf("vehicle %q: wheelbase_m must be positive, got %v", p.Name, p.WheelbaseM)
	}
	if p.SteerRatio <= 0 {
		return nil, fmt.Errorf("vehicle %q: steer_ratio must be positive, got %v", p.Name, p.SteerRatio)
	}
	return &p, nil
}

// MotionModel returns the vehicle's curvature/angle model.
func (p *Params) MotionModel() MotionModel {
	return MotionModel{WheelbaseM: p.WheelbaseM, SteerRatio: p.SteerRatio}
}

// LatConfig builds the lateral controller configuration for the given loop
// rate.
func (p *Params) LatConfig(rate float64) (control.LatConfig, error) {
	kp, err := p.Lateral.Kp.Table()
	if err != nil {
		return control.LatConfig{}, fmt.Errorf("lateral kp: %w", err)
	}
	ki, err := p.Lateral.Ki.Table()
	if err != nil {
		return control.LatConfig{}, fmt.Errorf("lateral ki: %w", err)
	}
	kd, err := p.Lateral.Kd.Table()
	if err != nil {
		return control.LatConfig{}, fmt.Errorf("lateral kd: %w", err)
	}
	steerMax, err := p.Lateral.SteerMax.Table()
	if err != nil {
		return control.LatConfig{}, fmt.Errorf("lateral steer_max: %w", err)
	}
	return control.LatConfig{
		PID: control.PIDConfig{
			Kp:               kp,
			Ki:               ki,
			Kd:               kd,
			Kf:               p.Lateral.Kf,
			PosLimit:         1,
			NegLimit:         -1,
			Rate:             rate,
			DerivativePeriod: 0.1,
		},
		SteerMax:       steerMax,
		MinSteerSpeed:  p.Lateral.MinSteerSpeedMPS,
		SaturationTime: p.Lateral.SaturationTimeS,
		Rate:           rate,
	}, nil
}

// LongConfig builds the longitudinal controller configuration for the given
// loop rate.
func (p *Params) LongConfig(rate float64) (control.LongConfig, error) {
	kp, err := p.Longitudinal.Kp.Table()
	if err != nil {
		return control.LongConfig{}, fmt.Errorf("longitudinal kp: %w", err)
	}
	ki, err := p.Longitudinal.Ki.Table()
	if err != nil {
		return control.LongConfig{}, fmt.Errorf("longitudinal ki: %w", err)
	}
	kd, err := p.Longitudinal.Kd.Table()
	if err != nil {
		return control.LongConfig{}, fmt.Errorf("longitudinal kd: %w", err)
	}
	deadzone, err := p.Longitudinal.Deadzone.Table()
	if err != nil {
		return control.LongConfig{}, fmt.Errorf("longitudinal deadzone: %w", err)
	}
	return control.LongConfig{
		PID: control.PIDConfig{
			Kp:               kp,
			Ki:               ki,
			Kd:               kd,
			PosLimit:         control.AccelMaxISO,
			NegLimit:         control.AccelMinISO,
			Rate:             rate,
			DerivativePeriod: 0.5,
		},
		Deadzone:           deadzone,
		VEgoStopping:       p.Longitudinal.VEgoStoppingMPS,
		VEgoStarting:       p.Longitudinal.VEgoStartingMPS,
		StopAccel:          p.Longitudinal.StopAccel,
		StartAccel:         p.Longitudinal.StartAccel,
		StoppingDecelRate:  p.Longitudinal.StoppingDecelRate,
		StartingAccelRate:  p.Longitudinal.StartingAccelRate,
		StoppingControl:    p.Longitudinal.StoppingControl,
		ActuatorDelayLower: p.Longitudinal.ActuatorDelayLowerS,
		ActuatorDelayUpper: p.Longitudinal.ActuatorDelayUpperS,
		Rate:               rate,
	}, nil
}
