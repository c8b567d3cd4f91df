package index

import "sync"

type indexState int

const (
	stateUnknown indexState = iota
	stateVerified
)

// tracker remembers which index names are known to exist. Callers hold
// mu across check-and-reset so concurrent writers never race a reset.
type tracker struct {
	mu     sync.Mutex
	states map[string]indexState
}

func newTracker() *tracker {
	return &tracker{states: make(map[string]indexState)}
}

// verified must be called with mu held.
func (t *tracker) verified(name string) bool {
	return t.states[name] == stateVerified
}

// mark must be called with mu held.
func (t *tracker) mark(name string, s indexState) {
	t.states[name] = s
}
