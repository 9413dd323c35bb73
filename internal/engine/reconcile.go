package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/mholland/senville-sync/internal/codec"
	"github.com/mholland/senville-sync/internal/editguard"
	"github.com/mholland/senville-sync/internal/model"
)

// reconcileLocked maps a fresh snapshot onto the display model and publishes
// the result. Caller holds e.mu.
func (e *Engine) reconcileLocked(st model.DeviceState) {
	e.display = buildDisplay(st, e.display, e.guard, e.unit, timeNow())
	e.publish(e.display)
}

// buildDisplay translates one device snapshot into the operator's view.
// Guarded fields keep their previous value; everything else is derived from
// the snapshot's Celsius values and raw codes, never from the previous
// display, so repeated application with the same snapshot and unit is
// idempotent.
func buildDisplay(st model.DeviceState, prev model.DisplayModel, guard *editguard.Guard, unit model.Unit, at time.Time) model.DisplayModel {
	next := prev
	next.Unit = unit

	if !guard.IsHeld(model.FieldPower) {
		next.Power = onOff(st.Running)
	}

	if !guard.IsHeld(model.FieldMode) {
		next.Mode = codec.ModeToSymbol(st.Mode)
		// Selectors only ever show values from their fixed vocabulary; an
		// unmapped code updates the readout but leaves the selector alone.
		if codec.KnownMode(st.Mode) {
			next.ModeSelect = strings.ToLower(codec.ModeToSymbol(st.Mode))
		}
	}

	// Indoor temperature is report-only and never guarded.
	next.IndoorTemp = formatTemp(st.IndoorTempC, unit)

	if !guard.IsHeld(model.FieldTargetTemp) {
		next.TargetTemp = formatTemp(st.TargetTempC, unit)
		next.TempSelect = displayTemp(st.TargetTempC, unit)
	}

	if !guard.IsHeld(model.FieldFanSpeed) {
		next.FanSpeed = codec.FanToSymbol(st.FanSpeed)
		if codec.KnownFan(st.FanSpeed) {
			next.FanSelect = codec.FanToSymbol(st.FanSpeed)
		}
	}

	if !guard.IsHeld(model.FieldVSwing) {
		next.VSwing = onOff(st.VerticalSwing)
		next.VSwingOn = st.VerticalSwing
	}

	if !guard.IsHeld(model.FieldHSwing) {
		next.HSwing = onOff(st.HorizontalSwing)
		next.HSwingOn = st.HorizontalSwing
	}

	next.LastSynchronizedAt = at
	return next
}

func displayTemp(celsius int, unit model.Unit) int {
	if unit == model.UnitFahrenheit {
		return codec.CelsiusToFahrenheit(celsius)
	}
	return celsius
}

func formatTemp(celsius int, unit model.Unit) string {
	return fmt.Sprintf("%d°%s", displayTemp(celsius, unit), unit)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
