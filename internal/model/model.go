package model

import "time"

// Field identifies one operator-facing control on the appliance.
type Field string

const (
	FieldPower      Field = "power"
	FieldMode       Field = "mode"
	FieldTargetTemp Field = "target_temp"
	FieldFanSpeed   Field = "fan_speed"
	FieldVSwing     Field = "vswing"
	FieldHSwing     Field = "hswing"
)

// EditableFields lists every field an operator can issue a command for, in
// display order. Indoor temperature is reported by the device but never set.
var EditableFields = []Field{
	FieldPower,
	FieldMode,
	FieldTargetTemp,
	FieldFanSpeed,
	FieldVSwing,
	FieldHSwing,
}

func IsEditable(f Field) bool {
	for _, e := range EditableFields {
		if e == f {
			return true
		}
	}
	return false
}

// Target setpoint bounds accepted by the appliance, in Celsius. Commands
// outside this range are rejected at the edges rather than silently clamped
// on the wire.
const (
	MinTargetTempC = 16
	MaxTargetTempC = 31
)

// Unit is the operator's temperature unit. DeviceState is always Celsius;
// the unit is purely a presentation concern.
type Unit string

const (
	UnitCelsius    Unit = "C"
	UnitFahrenheit Unit = "F"
)

// DeviceState is one immutable snapshot of the appliance, as fetched from or
// pushed to it. Copies are merged locally before a push; the device has no
// partial-update primitive.
type DeviceState struct {
	Running         bool `json:"running"`
	Mode            int  `json:"mode"`
	TargetTempC     int  `json:"target_temp_c"`
	IndoorTempC     int  `json:"indoor_temp_c"`
	FanSpeed        int  `json:"fan_speed"`
	VerticalSwing   bool `json:"vertical_swing"`
	HorizontalSwing bool `json:"horizontal_swing"`
}

// DisplayModel is the operator-facing mirror of DeviceState: unit-converted
// temperatures, symbolic mode and fan names, plus the selector values the
// presentation layer binds its controls to. Selector fields only ever hold
// values from their fixed vocabulary; an unmapped raw code leaves them alone.
type DisplayModel struct {
	Power      string `json:"power"`
	Mode       string `json:"mode"`
	TargetTemp string `json:"target_temp"`
	IndoorTemp string `json:"indoor_temp"`
	FanSpeed   string `json:"fan_speed"`
	VSwing     string `json:"vswing"`
	HSwing     string `json:"hswing"`

	ModeSelect string `json:"mode_select"`
	FanSelect  string `json:"fan_select"`
	TempSelect int    `json:"temp_select"`
	VSwingOn   bool   `json:"vswing_on"`
	HSwingOn   bool   `json:"hswing_on"`

	Unit Unit `json:"unit"`

	// Zero value means the display has never been synchronized.
	LastSynchronizedAt time.Time `json:"last_synchronized_at"`
}
