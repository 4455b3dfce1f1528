package calendar

import (
	"context"
	"log/slog"
	"time"

	"riskgate/internal/blackout"
	"riskgate/internal/metrics"
)

// Refresher periodically loads the calendar into the blackout store. A
// failed load keeps the previous windows.
type Refresher struct {
	source   Source
	filter   Filter
	store    *blackout.Store
	metrics  *metrics.Registry
	interval time.Duration
	now      func() time.Time
}

func NewRefresher(source Source, filter Filter, store *blackout.Store, m *metrics.Registry, interval time.Duration) *Refresher {
	if m == nil {
		m = metrics.New()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Refresher{
		source:   source,
		filter:   filter,
		store:    store,
		metrics:  m,
		interval: interval,
		now:      time.Now,
	}
}

func (r *Refresher) RefreshOnce(ctx context.Context) error {
	events, err := r.source.Events(ctx)
	if err != nil {
		r.metrics.CalendarFetches.WithLabelValues("error").Inc()
		slog.Warn("calendar refresh failed; keeping previous windows", "error", err, "windows", len(r.store.Windows()))
		return err
	}
	windows := r.filter.Windows(events, r.now())
	r.store.Refresh(windows)
	r.metrics.CalendarFetches.WithLabelValues("ok").Inc()
	r.metrics.BlackoutWindows.Set(float64(len(windows)))
	slog.Info("calendar refreshed", "events", len(events), "windows", len(windows))
	return nil
}

// Run refreshes immediately and then on every tick until ctx ends.
func (r *Refresher) Run(ctx context.Context) error {
	_ = r.RefreshOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = r.RefreshOnce(ctx)
		}
	}
}
