package blackout

import (
	"sync/atomic"
	"time"
)

// Window is a closed interval during which new entries are blocked.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// Store holds the current blackout list. Refresh swaps the whole list, so
// readers see either the previous or the new one, never a mix.
type Store struct {
	windows atomic.Pointer[[]Window]
}

func NewStore() *Store {
	s := &Store{}
	empty := []Window{}
	s.windows.Store(&empty)
	return s
}

// Refresh replaces the stored list. An empty list means no known blackouts;
// callers that failed to fetch must not call Refresh at all.
func (s *Store) Refresh(windows []Window) {
	next := make([]Window, len(windows))
	copy(next, windows)
	s.windows.Store(&next)
}

func (s *Store) Windows() []Window {
	current := *s.windows.Load()
	out := make([]Window, len(current))
	copy(out, current)
	return out
}

func (s *Store) IsBlackout(ts time.Time) bool {
	_, ok := s.Active(ts)
	return ok
}

// Active returns the first window containing ts.
func (s *Store) Active(ts time.Time) (Window, bool) {
	for _, w := range *s.windows.Load() {
		if w.Contains(ts) {
			return w, true
		}
	}
	return Window{}, false
}
