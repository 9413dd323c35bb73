package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// LoopState is the poll loop's lifecycle state.
type LoopState int

const (
	Stopped LoopState = iota
	Running
	Paused
)

func (s LoopState) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Start launches the poll loop: an immediate refresh, then one fetch+reconcile
// per interval. The ticker fires at a fixed rate regardless of how long each
// cycle takes, so cadence does not drift with fetch duration, and pausing
// skips cycles without losing the beat.
func (e *Engine) Start() error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	if e.stopped {
		return fmt.Errorf("engine is stopped")
	}
	if e.loopState != Stopped {
		return fmt.Errorf("poll loop already %s", e.loopState)
	}
	e.loopState = Running

	log.Info().Dur("interval", e.opts.PollInterval).Msg("Starting poll loop")
	go e.runLoop()
	return nil
}

func (e *Engine) runLoop() {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	e.Refresh()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if e.LoopState() == Running {
				e.Refresh()
			}
		}
	}
}

// Pause suspends polling without tearing the loop down.
func (e *Engine) Pause() error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	if e.loopState != Running {
		return fmt.Errorf("cannot pause: poll loop is %s", e.loopState)
	}
	e.loopState = Paused
	log.Info().Msg("Poll loop paused")
	return nil
}

// Resume continues a paused loop on its original cadence.
func (e *Engine) Resume() error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	if e.loopState != Paused {
		return fmt.Errorf("cannot resume: poll loop is %s", e.loopState)
	}
	e.loopState = Running
	log.Info().Msg("Poll loop resumed")
	return nil
}

// Stop shuts the engine down: the poll loop's pending sleep is cancelled and
// outstanding command and settle callbacks are abandoned before they can
// touch the torn-down display. Terminal; a stopped engine cannot be
// restarted.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	alreadyStopped := e.stopped
	e.stopped = true
	e.loopState = Stopped
	e.loopMu.Unlock()

	if alreadyStopped {
		return
	}
	log.Info().Msg("Stopping sync engine")
	e.cancel()
}

// LoopState reports the poll loop's current state.
func (e *Engine) LoopState() LoopState {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	return e.loopState
}
