package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"riskgate/internal/blackout"
)

// Event is one scheduled economic release.
type Event struct {
	Title    string    `json:"title"`
	Currency string    `json:"currency"`
	Impact   string    `json:"impact"`
	Time     time.Time `json:"time"`
}

// Source yields the upcoming calendar.
type Source interface {
	Events(ctx context.Context) ([]Event, error)
}

// Filter turns events into blackout windows around each qualifying release.
type Filter struct {
	Impacts    []string
	Currencies []string
	Pre        time.Duration
	Post       time.Duration
	Lookahead  time.Duration
}

func (f Filter) match(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		if strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

// Windows keeps events whose window has not yet closed and that start within
// the lookahead, sorted by start.
func (f Filter) Windows(events []Event, now time.Time) []blackout.Window {
	windows := make([]blackout.Window, 0, len(events))
	for _, ev := range events {
		if ev.Time.IsZero() || !f.match(f.Impacts, ev.Impact) || !f.match(f.Currencies, ev.Currency) {
			continue
		}
		w := blackout.Window{
			Start: ev.Time.Add(-f.Pre),
			End:   ev.Time.Add(f.Post),
			Label: label(ev),
		}
		if w.End.Before(now) {
			continue
		}
		if f.Lookahead > 0 && w.Start.After(now.Add(f.Lookahead)) {
			continue
		}
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	return windows
}

func label(ev Event) string {
	title := strings.TrimSpace(ev.Title)
	if ev.Currency == "" {
		return title
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(ev.Currency), title)
}
