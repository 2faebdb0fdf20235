package service

import "strings"

// isCelsius reports whether a native unit label denotes Celsius. Anything
// else is treated as already Fahrenheit.
func isCelsius(unit string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(unit)), "C")
}

// ToFahrenheit converts a native reading to Fahrenheit.
func ToFahrenheit(v float64, unit string) float64 {
	if isCelsius(unit) {
		return v*9.0/5.0 + 32.0
	}
	return v
}

// FromFahrenheit converts a Fahrenheit value to the native unit.
func FromFahrenheit(f float64, unit string) float64 {
	if isCelsius(unit) {
		return (f - 32.0) * 5.0 / 9.0
	}
	return f
}

func toFahrenheitPtr(v *float64, unit string) *float64 {
	if v == nil {
		return nil
	}
	f := ToFahrenheit(*v, unit)
	return &f
}
