package main

import (
	"context"
	"fmt"
	"time"

	"drive-control-core/control"
	"drive-control-core/utils"
	"drive-control-core/vehicle"
)

// Frame names the runner expects in the CAN map.
const (
	frameActuatorCmd  = "ACTUATOR_CMD"
	frameVehicleState = "VEHICLE_STATE"
	frameLeadTrack    = "LEAD_TRACK"
)

// leadTimeout drops a lead snapshot that has gone stale.
const leadTimeout = 500 * time.Millisecond

type RunnerConfig struct {
	Interface    string
	MapPath      string
	VehiclePath  string
	ScenarioPath string
}

// Runner drives both controllers at the actuator frame rate: planner targets
// from the scenario, vehicle state from CAN RX, actuator commands to CAN TX.
type Runner struct {
	cfg    RunnerConfig
	log    *utils.Logger
	cmap   *utils.CANMap
	scen   Scenario
	params *vehicle.Params
	writer utils.CANWriter
	reader utils.CANReader
	fd     *utils.FrameDef

	lat  *control.LatController
	long *control.LongController
}

// feedback is one decoded RX update.
type feedback struct {
	state    control.VehicleState
	angleDeg float64
	roll     float64
	lead     *control.Lead
	received time.Time
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	cmap, err := utils.LoadCANMap(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}

	params, err := vehicle.LoadParams(cfg.VehiclePath)
	if err != nil {
		return nil, fmt.Errorf("load vehicle: %w", err)
	}

	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	fd, err := cmap.FrameByName(frameActuatorCmd)
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	if fd.CycleMS <= 0 {
		return nil, fmt.Errorf("frame %s has invalid cycle_ms %d", fd.Name, fd.CycleMS)
	}
	rate := 1000.0 / float64(fd.CycleMS)

	latCfg, err := params.LatConfig(rate)
	if err != nil {
		return nil, fmt.Errorf("lateral config: %w", err)
	}
	lat, err := control.NewLatController(latCfg,
		params.MotionModel().CurvatureToAngle(),
		vehicle.SteerFeedforwardSpeedSquared())
	if err != nil {
		return nil, fmt.Errorf("lateral controller: %w", err)
	}

	longCfg, err := params.LongConfig(rate)
	if err != nil {
		return nil, fmt.Errorf("longitudinal config: %w", err)
	}
	long, err := control.NewLongController(longCfg)
	if err != nil {
		return nil, fmt.Errorf("longitudinal controller: %w", err)
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	return &Runner{
		cfg:    cfg,
		log:    log,
		cmap:   cmap,
		scen:   scen,
		params: params,
		writer: writer,
		reader: reader,
		fd:     fd,
		lat:    lat,
		long:   long,
	}, nil
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting control loop: vehicle=%s cycle_ms=%d iface=%s scenario=%s duration=%.2fs",
		r.params.Name, r.fd.CycleMS, r.cfg.Interface, r.scen.Meta.Name, r.scen.Timing.DurationS)

	start := time.Now()
	ticker := time.NewTicker(time.Duration(r.fd.CycleMS) * time.Millisecond)
	defer ticker.Stop()

	endAfter := time.Duration(r.scen.Timing.DurationS * float64(time.Second))
	var sent uint64

	var fb feedback
	var lastLead *control.Lead
	var lastLeadTime time.Time
	lastRxTime := time.Now()

	rxChan := make(chan feedback, 100)
	go r.receiveLoop(ctx, rxChan)

	limits := control.AccelLimits{Min: control.AccelMinISO, Max: control.AccelMaxISO}

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping control loop")
			r.log.Info("Completed. frames_sent=%d", sent)
			return ctx.Err()

		case update := <-rxChan:
			if update.lead != nil {
				lastLead = update.lead
				lastLeadTime = update.received
			} else {
				fb.state = update.state
				fb.angleDeg = update.angleDeg
				fb.roll = update.roll
				lastRxTime = update.received
			}

		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > endAfter {
				r.log.Info("Completed. frames_sent=%d", sent)
				return nil
			}
			t := elapsed.Seconds()

			// Control is only engaged while sensor feedback is fresh; a
			// stale snapshot degrades to neutral commands, never a guess.
			active := now.Sub(lastRxTime) < 500*time.Millisecond
			if !active {
				r.log.Warn("No vehicle state for %.0f ms; commanding neutral", now.Sub(lastRxTime).Seconds()*1000)
			}

			lead := lastLead
			if lead != nil && now.Sub(lastLeadTime) > leadTimeout {
				lead = nil
			}

			curvature, plan := r.scen.PlanAt(t, fb.state.VEgo)

			steer, angleDes, latDiag := r.lat.Update(active, curvature,
				fb.angleDeg, fb.state.VEgo, fb.roll, r.params.AngleOffsetDeg)
			accel, longDiag := r.long.Update(active, fb.state, plan, limits, lead)

			frame, err := r.cmap.Encode(frameActuatorCmd, map[string]float64{
				"enable":          boolToFloat(active),
				"steer_torque":    steer,
				"accel_cmd_mps2":  accel,
				"long_state":      float64(longDiag.State),
				"steer_saturated": boolToFloat(latDiag.Saturated),
			})
			if err != nil {
				r.log.Error("Encode failed at t=%.3f: %v", t, err)
				return err
			}
			if err := r.writer.WriteFrame(ctx, frame); err != nil {
				r.log.Critical("Transmit failed at t=%.3f: %v", t, err)
				return err
			}
			sent++

			// The bus quantizes and clamps the command; feed the value the
			// actuator really saw back into the anti-windup path.
			applied, err := r.cmap.Quantize(frameActuatorCmd, "steer_torque", steer)
			if err == nil {
				r.lat.ReportAppliedSteer(applied)
			}

			if sent%100 == 0 {
				r.log.Debug("t=%.2f v=%.2f state=%s accel=%.2f steer=%.3f angle_des=%.2f p=%.3f i=%.3f f=%.3f sat=%v",
					t, fb.state.VEgo, longDiag.State, accel, steer, angleDes,
					latDiag.P, latDiag.I, latDiag.F, latDiag.Saturated)
			}
			r.log.Trace("TX t=%.3f id=0x%X data=% X", t, uint32(frame.ID), frame.Data[:frame.Length])
		}
	}
}

// receiveLoop decodes vehicle-state and lead-track frames and feeds them to
// the tick loop.
func (r *Runner) receiveLoop(ctx context.Context, out chan<- feedback) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	stateFD, err := r.cmap.FrameByName(frameVehicleState)
	if err != nil {
		r.log.Error("RX disabled: %v", err)
		return
	}
	leadFD, _ := r.cmap.FrameByName(frameLeadTrack)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("RX error: %v", err)
			continue
		}

		switch {
		case frame.ID == stateFD.ID:
			values, err := r.cmap.Decode(frame)
			if err != nil {
				r.log.Warn("Decode %s: %v", frameVehicleState, err)
				continue
			}
			fb := feedback{
				state: control.VehicleState{
					VEgo:             values["v_ego_mps"],
					BrakePressed:     values["brake_pressed"] > 0.5,
					GasPressed:       values["gas_pressed"] > 0.5,
					Standstill:       values["standstill"] > 0.5,
					CruiseStandstill: values["cruise_standstill"] > 0.5,
				},
				angleDeg: values["steering_angle_deg"],
				roll:     values["roll_rad"],
				received: time.Now(),
			}
			select {
			case out <- fb:
			default:
			}

		case leadFD != nil && frame.ID == leadFD.ID:
			values, err := r.cmap.Decode(frame)
			if err != nil {
				r.log.Warn("Decode %s: %v", frameLeadTrack, err)
				continue
			}
			if values["valid"] < 0.5 {
				continue
			}
			select {
			case out <- feedback{
				lead:     &control.Lead{VLead: values["v_lead_mps"]},
				received: time.Now(),
			}:
			default:
			}
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
