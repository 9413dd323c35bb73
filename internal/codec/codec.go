// Package codec holds the static translations between the appliance's raw
// integer codes and the symbolic values shown to the operator, plus the
// temperature unit conversions.
package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Raw mode codes used by the appliance protocol.
const (
	ModeAuto = 1
	ModeCool = 2
	ModeDry  = 3
	ModeHeat = 4
	ModeFan  = 5
)

// Raw fan speed codes used by the appliance protocol.
const (
	FanLow     = 20
	FanMedLow  = 40
	FanMedium  = 60
	FanMedHigh = 80
	FanHigh    = 100
	FanAuto    = 102
)

var modeNames = map[int]string{
	ModeAuto: "Auto",
	ModeCool: "Cool",
	ModeDry:  "Dry",
	ModeHeat: "Heat",
	ModeFan:  "Fan",
}

var modeCodes = map[string]int{
	"auto": ModeAuto,
	"cool": ModeCool,
	"dry":  ModeDry,
	"heat": ModeHeat,
	"fan":  ModeFan,
}

var fanNames = map[int]string{
	FanLow:     "Low",
	FanMedLow:  "Med-Low",
	FanMedium:  "Medium",
	FanMedHigh: "Med-High",
	FanHigh:    "High",
	FanAuto:    "Auto",
}

var fanCodes = map[string]int{
	"low":      FanLow,
	"med-low":  FanMedLow,
	"medium":   FanMedium,
	"med-high": FanMedHigh,
	"high":     FanHigh,
	"auto":     FanAuto,
}

// UnknownSymbolError reports a symbolic value outside the fixed vocabulary.
// The UI vocabulary is closed, so hitting this is a defect, not an expected
// runtime condition.
type UnknownSymbolError struct {
	Kind   string
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown %s symbol %q", e.Kind, e.Symbol)
}

// ModeToSymbol translates a raw mode code to its display name. Unrecognized
// codes render as Unknown(N) rather than failing.
func ModeToSymbol(code int) string {
	if name, ok := modeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", code)
}

// SymbolToMode translates a mode name (any case) back to its raw code.
func SymbolToMode(name string) (int, error) {
	if code, ok := modeCodes[strings.ToLower(name)]; ok {
		return code, nil
	}
	return 0, &UnknownSymbolError{Kind: "mode", Symbol: name}
}

// FanToSymbol translates a raw fan speed code to its display name.
// Unrecognized codes render as their literal numeral.
func FanToSymbol(code int) string {
	if name, ok := fanNames[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

// SymbolToFan translates a fan speed name (any case) back to its raw code.
func SymbolToFan(name string) (int, error) {
	if code, ok := fanCodes[strings.ToLower(name)]; ok {
		return code, nil
	}
	return 0, &UnknownSymbolError{Kind: "fan speed", Symbol: name}
}

// KnownMode reports whether a raw mode code is in the fixed vocabulary.
func KnownMode(code int) bool {
	_, ok := modeNames[code]
	return ok
}

// KnownFan reports whether a raw fan speed code is in the fixed vocabulary.
func KnownFan(code int) bool {
	_, ok := fanNames[code]
	return ok
}

// CelsiusToFahrenheit converts whole-degree Celsius to whole-degree
// Fahrenheit, rounding half away from zero so 24C reads as 75F instead of
// drifting a degree on round trips.
func CelsiusToFahrenheit(c int) int {
	return int(math.Round(float64(c)*9.0/5.0 + 32.0))
}

// FahrenheitToCelsius converts whole-degree Fahrenheit to whole-degree
// Celsius with the same rounding rule as CelsiusToFahrenheit.
func FahrenheitToCelsius(f int) int {
	return int(math.Round(float64(f-32) * 5.0 / 9.0))
}
