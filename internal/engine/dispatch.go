package engine

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mholland/senville-sync/internal/codec"
	"github.com/mholland/senville-sync/internal/metrics"
	"github.com/mholland/senville-sync/internal/model"
)

// command is one translated user intent: a mutation of the raw device state
// plus the presentation updates that show the intent immediately.
type command struct {
	apply   func(*model.DeviceState)
	show    func(*model.DisplayModel, model.Unit)
	label   string
	working string
}

// commandSlot holds the per-field queue. next is the single pending command;
// issuing again before the worker picks it up replaces it (last-write-wins:
// the operator's latest intent prevails, and the device has no notion of
// intermediate states worth replaying).
type commandSlot struct {
	next     *command
	inFlight bool
}

// Issue translates a symbolic command for a field, shows the intended value
// immediately, and queues the push. Per field, at most one push is in flight;
// pending values are collapsed to the most recent.
//
// The edit guard is not held for the network round trip — only the UI
// interaction holds it — so the field becomes re-synchronizable as soon as
// the command is sent. Any stale guard for the field is cleared once the
// command round-trips.
func (e *Engine) Issue(field model.Field, value interface{}) error {
	if !model.IsEditable(field) {
		return fmt.Errorf("field %s is not editable", field)
	}

	cmd, err := e.translate(field, value)
	if err != nil {
		// Symbol lookups can only fail on a programming or config error;
		// surface it loudly instead of swallowing it.
		log.Error().Err(err).Str("field", string(field)).Msg("Rejected command")
		e.mu.Lock()
		e.lastErr = err
		e.setStatusLocked(fmt.Sprintf("Error: %v", err))
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	// Pushes merge into the last known snapshot; with none known a merge
	// would base the push on zero values and reprogram the appliance to an
	// undefined mode. Wait for a fetch (or a stored seed) instead.
	if e.lastState == nil {
		err := fmt.Errorf("no device snapshot yet; cannot set %s", field)
		e.lastErr = err
		e.setStatusLocked(fmt.Sprintf("Error: %v", err))
		e.mu.Unlock()
		log.Warn().Str("field", string(field)).Msg("Rejected command before first snapshot")
		return err
	}
	cmd.show(&e.display, e.unit)
	e.publish(e.display)
	e.setStatusLocked(cmd.working)

	slot := e.slots[field]
	if slot == nil {
		slot = &commandSlot{}
		e.slots[field] = slot
	}
	slot.next = cmd
	start := !slot.inFlight
	if start {
		slot.inFlight = true
	}
	e.mu.Unlock()

	if start {
		go e.runCommands(field, slot)
	}
	return nil
}

// runCommands drains a field's slot one push at a time.
func (e *Engine) runCommands(field model.Field, slot *commandSlot) {
	for {
		e.mu.Lock()
		cmd := slot.next
		slot.next = nil
		if cmd == nil {
			slot.inFlight = false
			e.mu.Unlock()
			return
		}
		var base model.DeviceState
		if e.lastState != nil {
			base = *e.lastState
		}
		e.mu.Unlock()

		// Merge into a copy; the cached snapshot is never mutated in place.
		cmd.apply(&base)

		err := e.gw.Push(e.ctx, base)
		if e.ctx.Err() != nil {
			return
		}
		if err != nil {
			cmdErr := &CommandError{Field: field, Err: err}
			log.Error().Err(cmdErr).Str("field", string(field)).Msg("Command push failed")
			metrics.Count("command.failure", 1, "field:"+string(field))

			e.mu.Lock()
			e.lastErr = cmdErr
			e.setStatusLocked(fmt.Sprintf("Error: %v", cmdErr))
			e.mu.Unlock()
			continue
		}

		log.Info().Str("field", string(field)).Msg(cmd.label)
		metrics.Count("command.success", 1, "field:"+string(field))

		e.mu.Lock()
		// The pushed snapshot becomes the working cache so later merges see
		// it; the next successful fetch overwrites it wholesale. Bumping the
		// generation invalidates any fetch already in flight, whose snapshot
		// predates this push.
		pushed := base
		e.lastState = &pushed
		e.pushGen++
		e.setStatusLocked(cmd.label)
		e.mu.Unlock()

		e.guard.End(field)
		e.scheduleSettle()
	}
}

func (e *Engine) translate(field model.Field, value interface{}) (*command, error) {
	switch field {
	case model.FieldPower:
		on, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("power takes a bool, got %T", value)
		}
		return &command{
			apply: func(st *model.DeviceState) { st.Running = on },
			show: func(dm *model.DisplayModel, _ model.Unit) { dm.Power = onOff(on) },
			label:   fmt.Sprintf("Power %s", onOff(on)),
			working: fmt.Sprintf("Turning %s...", onOff(on)),
		}, nil

	case model.FieldMode:
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("mode takes a string, got %T", value)
		}
		code, err := codec.SymbolToMode(name)
		if err != nil {
			return nil, err
		}
		return &command{
			apply: func(st *model.DeviceState) { st.Mode = code },
			show: func(dm *model.DisplayModel, _ model.Unit) {
				dm.Mode = codec.ModeToSymbol(code)
				dm.ModeSelect = name
			},
			label:   fmt.Sprintf("Mode set to %s", name),
			working: fmt.Sprintf("Setting mode to %s...", name),
		}, nil

	case model.FieldTargetTemp:
		celsius, ok := value.(int)
		if !ok {
			return nil, fmt.Errorf("target temperature takes a Celsius int, got %T", value)
		}
		return &command{
			apply: func(st *model.DeviceState) { st.TargetTempC = celsius },
			show: func(dm *model.DisplayModel, unit model.Unit) {
				dm.TargetTemp = formatTemp(celsius, unit)
				dm.TempSelect = displayTemp(celsius, unit)
			},
			label:   fmt.Sprintf("Temperature set to %d°C", celsius),
			working: "Setting temperature...",
		}, nil

	case model.FieldFanSpeed:
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("fan speed takes a string, got %T", value)
		}
		code, err := codec.SymbolToFan(name)
		if err != nil {
			return nil, err
		}
		return &command{
			apply: func(st *model.DeviceState) { st.FanSpeed = code },
			show: func(dm *model.DisplayModel, _ model.Unit) {
				dm.FanSpeed = codec.FanToSymbol(code)
				dm.FanSelect = codec.FanToSymbol(code)
			},
			label:   fmt.Sprintf("Fan speed set to %s", codec.FanToSymbol(code)),
			working: fmt.Sprintf("Setting fan speed to %s...", codec.FanToSymbol(code)),
		}, nil

	case model.FieldVSwing:
		on, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("vertical swing takes a bool, got %T", value)
		}
		return &command{
			apply: func(st *model.DeviceState) { st.VerticalSwing = on },
			show: func(dm *model.DisplayModel, _ model.Unit) {
				dm.VSwing = onOff(on)
				dm.VSwingOn = on
			},
			label:   fmt.Sprintf("Vertical swing %s", enabledDisabled(on)),
			working: "Setting vertical swing...",
		}, nil

	case model.FieldHSwing:
		on, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("horizontal swing takes a bool, got %T", value)
		}
		return &command{
			apply: func(st *model.DeviceState) { st.HorizontalSwing = on },
			show: func(dm *model.DisplayModel, _ model.Unit) {
				dm.HSwing = onOff(on)
				dm.HSwingOn = on
			},
			label:   fmt.Sprintf("Horizontal swing %s", enabledDisabled(on)),
			working: "Setting horizontal swing...",
		}, nil
	}

	return nil, fmt.Errorf("unhandled field %s", field)
}

func enabledDisabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
