package heartbeat

import "time"

// Monitor remembers when the last signal arrived. It is not synchronized;
// the owner of the session state serializes access.
type Monitor struct {
	last time.Time
}

func (m *Monitor) Touch(ts time.Time) {
	m.last = ts
}

// IsLive is true on a cold start, or when the last heartbeat is within
// maxStale of ts.
func (m *Monitor) IsLive(ts time.Time, maxStale time.Duration) bool {
	if m.last.IsZero() {
		return true
	}
	return ts.Sub(m.last) <= maxStale
}

// Last returns the last heartbeat and whether one was ever recorded.
func (m *Monitor) Last() (time.Time, bool) {
	return m.last, !m.last.IsZero()
}
