package store

import (
	"sync"

	"github.com/dan-solli/formflow/pkg/form"
)

// stateCache keeps the latest state per session in memory so repeated reads
// within a session avoid hitting storage. It is an optimization only: it is
// written through on every SaveState and read through on miss, so correctness
// never depends on a hit. Safe for concurrent use; entries for different
// sessions never contend beyond the map lock.
type stateCache struct {
	mu     sync.RWMutex
	latest map[string]*form.State
}

func newStateCache() *stateCache {
	return &stateCache{latest: make(map[string]*form.State)}
}

// get returns a copy of the cached latest state, or nil on miss.
// Copies keep callers from mutating the cached snapshot.
func (c *stateCache) get(sessionID string) *form.State {
	c.mu.RLock()
	state := c.latest[sessionID]
	c.mu.RUnlock()
	if state == nil {
		return nil
	}
	return state.Clone()
}

// put stores a copy of the state as the session's latest.
func (c *stateCache) put(sessionID string, state *form.State) {
	c.mu.Lock()
	c.latest[sessionID] = state.Clone()
	c.mu.Unlock()
}

// drop invalidates the session's entry.
func (c *stateCache) drop(sessionID string) {
	c.mu.Lock()
	delete(c.latest, sessionID)
	c.mu.Unlock()
}
