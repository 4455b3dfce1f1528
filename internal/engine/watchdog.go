package engine

import (
	"context"
	"log/slog"
	"time"

	"riskgate/internal/state"
)

// WatchHeartbeat publishes the heartbeat age and warns once each time the
// signal source goes quiet for longer than the configured limit.
func (e *Engine) WatchHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stale := false
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			stale = e.checkHeartbeat(now, stale)
		}
	}
}

func (e *Engine) checkHeartbeat(now time.Time, wasStale bool) bool {
	var (
		last time.Time
		ok   bool
		open []string
	)
	e.store.Update(func(sess *state.Session) {
		last, ok = sess.Heartbeat.Last()
		open = sess.Ledger.OpenSymbols()
	})
	if !ok {
		return false
	}
	age := now.Sub(last)
	e.metrics.HeartbeatAge.Set(age.Seconds())

	limit := e.gate.Rules().HeartbeatMax
	stale := age > limit
	if stale && !wasStale {
		slog.Warn("heartbeat stale", "last", last.Format(time.RFC3339), "age", age.Round(time.Second), "max", limit, "open_positions", open)
	}
	if !stale && wasStale {
		slog.Info("heartbeat recovered", "last", last.Format(time.RFC3339))
	}
	return stale
}
