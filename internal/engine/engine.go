// Package engine is the state synchronization core: it polls the appliance,
// reconciles fetched state into the display model without clobbering fields
// the operator is editing, and serializes outgoing commands so at most one
// push is in flight per control.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mholland/senville-sync/internal/editguard"
	"github.com/mholland/senville-sync/internal/gateway"
	"github.com/mholland/senville-sync/internal/metrics"
	"github.com/mholland/senville-sync/internal/model"
)

var timeNow = time.Now

// Saver persists confirmed snapshots and operator preferences. Optional.
type Saver interface {
	SaveSnapshot(st model.DeviceState, at time.Time) error
	SaveUnit(u model.Unit) error
}

// Notifier pushes operator alerts. Optional.
type Notifier interface {
	Send(title, message string) error
}

type Options struct {
	Unit         model.Unit
	PollInterval time.Duration
	SettleDelay  time.Duration

	// Consecutive fetch failures before the notifier is pinged. Zero disables
	// alerting even when a notifier is set.
	FailureAlertThreshold int

	Saver    Saver
	Notifier Notifier

	// Last confirmed snapshot from a previous run, used to seed the display
	// before the first poll completes.
	Seed     *model.DeviceState
	SeedTime time.Time
}

// Engine owns the display model and the last known device state. All access
// to both goes through its mutex; the gateway serializes device I/O itself.
type Engine struct {
	gw    gateway.Gateway
	guard *editguard.Guard
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	unit       model.Unit
	display    model.DisplayModel
	lastState  *model.DeviceState
	status     string
	lastErr    error
	failStreak int
	slots      map[model.Field]*commandSlot
	pushGen    uint64

	loopMu    sync.Mutex
	loopState LoopState
	stopped   bool

	subsMu sync.Mutex
	subs   []chan model.DisplayModel
}

func New(gw gateway.Gateway, opts Options) *Engine {
	if opts.Unit == "" {
		opts.Unit = model.UnitFahrenheit
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		gw:     gw,
		guard:  editguard.New(),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		unit:   opts.Unit,
		status: "Ready",
		slots:  make(map[model.Field]*commandSlot),
	}

	if opts.Seed != nil {
		seed := *opts.Seed
		e.lastState = &seed
		e.display = buildDisplay(seed, e.display, e.guard, e.unit, opts.SeedTime)
	}
	return e
}

// Snapshot returns a copy of the current display model.
func (e *Engine) Snapshot() model.DisplayModel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display
}

// Status returns the last status message and the last error, if any.
func (e *Engine) Status() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.lastErr
}

// Unit returns the operator's current temperature unit.
func (e *Engine) Unit() model.Unit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unit
}

// SetUnit switches the presentation unit and immediately re-reconciles the
// cached state so the display flips without waiting for the next poll.
func (e *Engine) SetUnit(u model.Unit) error {
	if u != model.UnitCelsius && u != model.UnitFahrenheit {
		return fmt.Errorf("invalid unit %q", u)
	}

	e.mu.Lock()
	e.unit = u
	if e.lastState != nil {
		e.reconcileLocked(*e.lastState)
	} else {
		e.display.Unit = u
	}
	e.setStatusLocked(fmt.Sprintf("Units set to °%s", u))
	e.mu.Unlock()

	if e.opts.Saver != nil {
		if err := e.opts.Saver.SaveUnit(u); err != nil {
			log.Warn().Err(err).Msg("Failed to persist unit preference")
		}
	}
	return nil
}

// BeginEdit marks a field as operator-owned for the duration of an
// interaction (e.g. a slider drag). The reconciler leaves it alone until
// EndEdit or until a command for it round-trips.
func (e *Engine) BeginEdit(f model.Field) {
	e.guard.Begin(f)
}

// EndEdit releases a field without issuing a command.
func (e *Engine) EndEdit(f model.Field) {
	e.guard.End(f)
}

// Refresh performs one fetch+reconcile cycle. Safe to call from any
// goroutine; used by the poll loop, the settle timer, and the manual refresh
// endpoint.
func (e *Engine) Refresh() {
	e.mu.Lock()
	gen := e.pushGen
	e.mu.Unlock()

	start := timeNow()
	st, err := e.gw.Fetch(e.ctx)
	metrics.Timing("poll.duration", timeNow().Sub(start))

	if err != nil {
		e.recordFetchFailure(err)
		return
	}

	e.mu.Lock()
	// A push that completed while this fetch was in flight makes the fetched
	// snapshot stale; installing it would undo the acknowledged state until
	// the next poll. Drop it and let the settle refresh supersede it.
	if e.pushGen != gen {
		e.mu.Unlock()
		log.Debug().Msg("Discarding snapshot fetched concurrently with a command push")
		return
	}
	e.lastState = &st
	e.failStreak = 0
	e.lastErr = nil
	e.reconcileLocked(st)
	e.setStatusLocked("Status updated")
	at := e.display.LastSynchronizedAt
	e.mu.Unlock()

	metrics.Gauge("device.indoor_temp_c", float64(st.IndoorTempC))
	metrics.Gauge("device.target_temp_c", float64(st.TargetTempC))
	metrics.Count("poll.success", 1)

	if e.opts.Saver != nil {
		if err := e.opts.Saver.SaveSnapshot(st, at); err != nil {
			log.Warn().Err(err).Msg("Failed to persist device snapshot")
		}
	}
}

func (e *Engine) recordFetchFailure(err error) {
	log.Error().Err(err).Msg("Device fetch failed")
	metrics.Count("poll.failure", 1)

	e.mu.Lock()
	e.lastErr = err
	e.failStreak++
	streak := e.failStreak
	e.setStatusLocked(fmt.Sprintf("Error: %v", err))
	e.mu.Unlock()

	// Alert exactly once per outage, when the streak first hits the
	// threshold. One flaky poll never pages anyone.
	if e.opts.Notifier != nil && e.opts.FailureAlertThreshold > 0 && streak == e.opts.FailureAlertThreshold {
		if nerr := e.opts.Notifier.Send("AC bridge offline", fmt.Sprintf("%d consecutive fetch failures: %v", streak, err)); nerr != nil {
			log.Warn().Err(nerr).Msg("Failed to send failure notification")
		}
	}
}

// Subscribe returns a channel of display model snapshots, one per
// reconciliation. Slow subscribers miss intermediate snapshots rather than
// blocking the engine.
func (e *Engine) Subscribe() <-chan model.DisplayModel {
	ch := make(chan model.DisplayModel, 8)
	e.subsMu.Lock()
	e.subs = append(e.subs, ch)
	e.subsMu.Unlock()
	return ch
}

func (e *Engine) publish(dm model.DisplayModel) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- dm:
		default:
		}
	}
}

func (e *Engine) setStatusLocked(msg string) {
	e.status = msg
	log.Debug().Str("status", msg).Msg("Status updated")
}

// scheduleSettle arranges one reconciliation after the settle delay, so a
// post-command fetch observes the device's processed state rather than a
// stale pre-command snapshot. Abandoned cleanly on shutdown.
func (e *Engine) scheduleSettle() {
	time.AfterFunc(e.opts.SettleDelay, func() {
		if e.ctx.Err() != nil {
			return
		}
		e.Refresh()
	})
}
