package speed

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValidUnit checks if the given unit is in the list of valid units
func IsValidUnit(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from meters per second to the target units
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// In returns the speed converted to the target units.  The second result is
// false when the speed is unavailable.
func (s Speed) In(targetUnits string) (float64, bool) {
	if !s.Available {
		return 0, false
	}
	return ConvertSpeed(s.KMH/3.6, targetUnits), true
}
