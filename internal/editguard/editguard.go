// Package editguard marks fields as owned by an in-progress operator
// interaction so the reconciler will not overwrite them mid-edit.
package editguard

import (
	"sync"

	"github.com/mholland/senville-sync/internal/model"
)

// Guard is a set of held field identifiers. It is called from both the poll
// loop and the command path, so all access goes through one mutex.
type Guard struct {
	mu   sync.Mutex
	held map[model.Field]struct{}
}

func New() *Guard {
	return &Guard{held: make(map[model.Field]struct{})}
}

// Begin marks a field as owned by the operator. Idempotent.
func (g *Guard) Begin(f model.Field) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held[f] = struct{}{}
}

// End releases a field. Ending a field that is not held is a no-op.
func (g *Guard) End(f model.Field) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, f)
}

// IsHeld reports whether a field is currently owned by the operator.
func (g *Guard) IsHeld(f model.Field) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[f]
	return ok
}
