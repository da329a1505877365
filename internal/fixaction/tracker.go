package fixaction

import "sync"

// Tracker records which issues have a fix action in flight so callers can
// refuse re-entrant dispatch (for example a second checkout split started
// before the first one finished). The zero value is ready to use.
type Tracker struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Begin marks issueID as in flight. It returns false if it already was.
func (t *Tracker) Begin(issueID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight == nil {
		t.inFlight = make(map[string]struct{})
	}
	if _, busy := t.inFlight[issueID]; busy {
		return false
	}
	t.inFlight[issueID] = struct{}{}
	return true
}

// End clears the in-flight mark of issueID.
func (t *Tracker) End(issueID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, issueID)
}

// Busy reports whether issueID has a fix action in flight.
func (t *Tracker) Busy(issueID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.inFlight[issueID]
	return busy
}
