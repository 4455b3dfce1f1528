package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"riskgate/internal/dedup"
	"riskgate/internal/heartbeat"
	"riskgate/internal/ledger"
)

// Session is the mutable state shared by every inbound signal. It is only
// reachable through Store.Update, which holds the store lock.
type Session struct {
	Enabled     bool
	TradingDate string
	Ledger      *ledger.Ledger
	Dedup       *dedup.Filter
	Heartbeat   heartbeat.Monitor
}

// ResetDay starts a new trading day: zero PnL, all books flat, no seen keys.
func (s *Session) ResetDay(date string) {
	s.TradingDate = date
	s.Ledger.ResetDay()
	s.Dedup.Reset()
}

type Snapshot struct {
	Enabled       bool                   `json:"enabled"`
	TradingDate   string                 `json:"trading_date"`
	DailyPnL      float64                `json:"daily_pnl"`
	Books         map[string]ledger.Book `json:"books"`
	SeenKeys      []string               `json:"seen_keys"`
	LastHeartbeat *time.Time             `json:"last_heartbeat,omitempty"`
}

type Store struct {
	mu      sync.Mutex
	session Session
}

func NewStore(pointMultiplier float64) *Store {
	return &Store{
		session: Session{
			Enabled: true,
			Ledger:  ledger.New(pointMultiplier),
			Dedup:   dedup.New(),
		},
	}
}

// Update runs fn with exclusive access to the session.
func (s *Store) Update(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.session)
}

func (s *Store) SetEnabled(enabled bool) {
	s.Update(func(sess *Session) { sess.Enabled = enabled })
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotLocked(&s.session)
}

func snapshotLocked(sess *Session) Snapshot {
	snap := Snapshot{
		Enabled:     sess.Enabled,
		TradingDate: sess.TradingDate,
		DailyPnL:    sess.Ledger.DailyPnL(),
		Books:       sess.Ledger.Books(),
		SeenKeys:    sess.Dedup.Keys(),
	}
	if last, ok := sess.Heartbeat.Last(); ok {
		snap.LastHeartbeat = &last
	}
	return snap
}

func (s *Store) Save(path string) error {
	snap := s.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o644)
}

// Load restores a checkpoint. The master switch always carries over; the
// books, PnL and seen keys only when the checkpoint belongs to today. The
// heartbeat is never restored so a restarted process gets its cold-start
// grace. It reports whether the trading day was restored.
func (s *Store) Load(path, today string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Enabled = snap.Enabled
	if snap.TradingDate == "" || snap.TradingDate != today {
		return false, nil
	}
	s.session.TradingDate = snap.TradingDate
	s.session.Ledger.Restore(snap.Books, snap.DailyPnL)
	s.session.Dedup.Reset()
	for _, k := range snap.SeenKeys {
		s.session.Dedup.Observe(k)
	}
	return true, nil
}

// writeFileAtomic writes through a temp file and rename so a crash never
// leaves a truncated checkpoint behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
