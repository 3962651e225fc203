package entities

// VadSensitivity tunes how eagerly voice activity detection decides the user
// has stopped speaking
type VadSensitivity string

const (
	VadSensitivityDefault    VadSensitivity = "default"
	VadSensitivityRelaxed    VadSensitivity = "relaxed"
	VadSensitivityAggressive VadSensitivity = "aggressive"
)

// Seconds converts a sensitivity level to a silence duration in seconds
func (s VadSensitivity) Seconds() float64 {
	switch s {
	case VadSensitivityRelaxed:
		return 2.0
	case VadSensitivityAggressive:
		return 0.5
	default:
		return 1.0
	}
}
