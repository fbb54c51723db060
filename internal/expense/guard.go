package expense

import "sync"

// Guard is a single-slot in-flight guard: at most one extraction may be
// outstanding per draft. It is not a queue; a refused TryBegin is simply
// never issued, not deferred.
type Guard struct {
	mu   sync.Mutex
	busy bool
}

// TryBegin claims the slot. It reports false when a request is already in
// flight.
func (g *Guard) TryBegin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

// End releases the slot.
func (g *Guard) End() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// Busy reports whether a request is currently in flight.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
