// Package units converts PIV displacements between pixels per frame and
// physical speed units.
package units

import (
	"fmt"
	"strings"
	"time"
)

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
	PXPF = "pxpf" // pixels per frame, no calibration applied
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH, PXPF}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units are returned as m/s.
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

// PixelsToMPS converts a displacement of px pixels between two frames
// interval apart into m/s, with pitchM metres of object plane per pixel.
func PixelsToMPS(px, pitchM float64, interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return px * pitchM / interval.Seconds()
}

// ConvertDisplacement converts a pixel displacement into unit. PXPF returns
// px unchanged.
func ConvertDisplacement(px, pitchM float64, interval time.Duration, unit string) (float64, error) {
	if !IsValid(unit) {
		return 0, fmt.Errorf("invalid units %q: must be one of %s", unit, GetValidUnitsString())
	}
	if unit == PXPF {
		return px, nil
	}
	if pitchM <= 0 || interval <= 0 {
		return 0, fmt.Errorf("calibration needs positive pixel pitch and frame interval, got %g m and %s", pitchM, interval)
	}
	return ConvertSpeed(PixelsToMPS(px, pitchM, interval), unit), nil
}
