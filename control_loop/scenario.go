package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"drive-control-core/control"
)

// Scenario is a planner stub: timed segments of desired speed and curvature,
// expanded per tick into the fixed-length trajectory the longitudinal
// controller consumes.
type Scenario struct {
	Meta     ScenarioMeta      `json:"meta"`
	Timing   ScenarioTiming    `json:"timing"`
	Segments []ScenarioSegment `json:"segments"`
}

// ScenarioMeta contains scenario metadata.
type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// ScenarioTiming defines timing parameters.
type ScenarioTiming struct {
	DurationS float64 `json:"duration_s"`
}

// ScenarioSegment holds the planner targets for one time window. T1 < 0
// means "until scenario end".
type ScenarioSegment struct {
	T0             float64 `json:"t0"`
	T1             float64 `json:"t1"`
	TargetSpeedMPS float64 `json:"target_speed_mps"`
	Curvature      float64 `json:"curvature_inv_m,omitempty"`
	AccelLimitMPS2 float64 `json:"accel_limit_mps2,omitempty"`
	Comment        string  `json:"comment,omitempty"`
}

// LoadScenario loads a scenario from a JSON file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if len(scen.Segments) == 0 {
		return Scenario{}, fmt.Errorf("scenario has no segments")
	}
	for i, seg := range scen.Segments {
		if seg.TargetSpeedMPS < 0 {
			return Scenario{}, fmt.Errorf("segment %d: negative target_speed_mps %f", i, seg.TargetSpeedMPS)
		}
	}
	return scen, nil
}

// segmentAt returns the segment active at time t, or the last one when t is
// past every window.
func (s *Scenario) segmentAt(t float64) ScenarioSegment {
	for _, seg := range s.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = s.Timing.DurationS
		}
		if t >= seg.T0 && t < t1 {
			return seg
		}
	}
	return s.Segments[len(s.Segments)-1]
}

// PlanAt evaluates the scenario at time t for a vehicle moving at vEgo. It
// returns the desired curvature and a constant-accel approach trajectory from
// vEgo toward the segment target speed.
func (s *Scenario) PlanAt(t, vEgo float64) (float64, control.Trajectory) {
	seg := s.segmentAt(t)

	aLim := seg.AccelLimitMPS2
	if aLim <= 0 {
		aLim = 1.0
	}

	times := control.TrajectoryTimes()
	speeds := make([]float64, control.TrajectoryLen)
	accels := make([]float64, control.TrajectoryLen)

	delta := seg.TargetSpeedMPS - vEgo
	dir := 1.0
	if delta < 0 {
		dir = -1.0
	}
	for i, ti := range times {
		step := dir * math.Min(math.Abs(delta), aLim*ti)
		v := vEgo + step
		if v < 0 {
			v = 0
		}
		speeds[i] = v
		// Ramp accel until the target (or standstill) is reached.
		if math.Abs(delta) > aLim*ti && !(v == 0 && dir < 0) {
			accels[i] = dir * aLim
		}
	}

	return seg.Curvature, control.Trajectory{Speeds: speeds, Accels: accels}
}
