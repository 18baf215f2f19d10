package control

// ClampFloat clamps value between min and max.
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// applyDeadzone zeroes errors inside the deadzone band and shrinks larger
// errors by the band width, so the output is continuous at the band edge.
func applyDeadzone(err, deadzone float64) float64 {
	switch {
	case err > deadzone:
		return err - deadzone
	case err < -deadzone:
		return err + deadzone
	default:
		return 0
	}
}
