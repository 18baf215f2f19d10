package vehicle

import (
	"math"

	"drive-control-core/control"
)

const gravity = 9.81 // m/s^2

// MotionModel maps between path curvature and steering angle for a simple
// kinematic bicycle with a fixed steering ratio.
type MotionModel struct {
	WheelbaseM float64
	SteerRatio float64
}

// SteerFromCurvatureDeg returns the steering wheel angle in degrees that
// yields the given path curvature at the given speed, compensating for road
// roll. Speed is floored near standstill where the roll term blows up.
func (m MotionModel) SteerFromCurvatureDeg(curvature, speed, roll float64) float64 {
	u := math.Max(speed, 0.1)
	rollCompensation := math.Sin(roll) * gravity / (u * u)
	angleRad := (curvature + rollCompensation) * m.SteerRatio * m.WheelbaseM
	return angleRad * 180 / math.Pi
}

// CurvatureToAngle binds the motion model into the lateral controller's
// conversion capability.
func (m MotionModel) CurvatureToAngle() control.CurvatureToAngle {
	return m.SteerFromCurvatureDeg
}

// SteerFeedforwardSpeedSquared is the default torque curve: steady-state
// steering torque grows with the desired angle and with dynamic pressure.
func SteerFeedforwardSpeedSquared() control.SteerFeedforward {
	return func(angleDeg, speed float64) float64 {
		return angleDeg * speed * speed
	}
}
