package web

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"expense-web/internal/expense"
)

// guardIdleTTL is how long an untouched guard survives before eviction.
// Comfortably longer than any extraction request lives.
const guardIdleTTL = time.Hour

type draftGuard struct {
	guard    *expense.Guard
	lastUsed time.Time
}

// draftRegistry hands out one in-flight guard per draft instance, keyed by
// the draft token the form round-trips. Field values travel with each
// request; only the guard has to survive between them. Guards for drafts
// that were abandoned rather than submitted are evicted once idle.
type draftRegistry struct {
	mu     sync.Mutex
	guards map[string]*draftGuard
}

func newDraftRegistry() *draftRegistry {
	return &draftRegistry{guards: make(map[string]*draftGuard)}
}

// newToken mints a fresh draft token.
func (d *draftRegistry) newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating draft token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// guard returns the guard for a draft token, creating it on first use.
func (d *draftRegistry) guard(token string) *expense.Guard {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evictIdle()
	e, ok := d.guards[token]
	if !ok {
		e = &draftGuard{guard: &expense.Guard{}}
		d.guards[token] = e
	}
	e.lastUsed = time.Now()
	return e.guard
}

// evictIdle discards guards no request has touched within guardIdleTTL.
// A busy guard is never evicted. Callers hold mu.
func (d *draftRegistry) evictIdle() {
	cutoff := time.Now().Add(-guardIdleTTL)
	for token, e := range d.guards {
		if e.lastUsed.Before(cutoff) && !e.guard.Busy() {
			delete(d.guards, token)
		}
	}
}

// drop discards a draft's guard once the draft is submitted.
func (d *draftRegistry) drop(token string) {
	d.mu.Lock()
	delete(d.guards, token)
	d.mu.Unlock()
}
