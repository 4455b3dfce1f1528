package engine

import (
	"math"
	"sort"
	"time"

	"riskgate/internal/blackout"
	"riskgate/internal/ledger"
)

type HealthReport struct {
	Status    string            `json:"status"`
	Enabled   bool              `json:"enabled"`
	Mode      Mode              `json:"mode"`
	PaperMode bool              `json:"paper_mode"`
	RTH       RTHInfo           `json:"rth"`
	Caps      CapsInfo          `json:"caps"`
	State     HealthState       `json:"state"`
	Blackouts []blackout.Window `json:"blackouts"`
}

type RTHInfo struct {
	Start       string   `json:"start"`
	End         string   `json:"end"`
	TZ          string   `json:"tz"`
	FlattenLead string   `json:"flatten_lead"`
	Symbols     []string `json:"symbols"`
}

type CapsInfo struct {
	DailyStop       float64 `json:"daily_stop"`
	DailyTake       float64 `json:"daily_take"`
	HeartbeatMaxSec float64 `json:"heartbeat_max_seconds"`
}

type HealthState struct {
	Date          string                 `json:"date"`
	Books         map[string]ledger.Book `json:"books"`
	DailyPnL      float64                `json:"daily_pnl"`
	SeenKeys      int                    `json:"seen_keys"`
	LastHeartbeat *time.Time             `json:"last_hb"`
}

// Health is a read-only view of session state and static configuration.
func (e *Engine) Health(blackouts *blackout.Store) HealthReport {
	snap := e.store.Snapshot()
	rules := e.gate.Rules()
	var gated []string
	for s := range rules.HoursGated {
		gated = append(gated, s)
	}
	sort.Strings(gated)

	report := HealthReport{
		Status:    "ok",
		Enabled:   snap.Enabled,
		Mode:      e.mode,
		PaperMode: e.mode == ModePaper,
		RTH: RTHInfo{
			Start:       rules.Calendar.Start.String(),
			End:         rules.Calendar.End.String(),
			FlattenLead: rules.Calendar.FlattenLead.String(),
			Symbols:     gated,
		},
		Caps: CapsInfo{
			DailyStop:       rules.DailyStop,
			DailyTake:       rules.DailyTake,
			HeartbeatMaxSec: rules.HeartbeatMax.Seconds(),
		},
		State: HealthState{
			Date:          snap.TradingDate,
			Books:         snap.Books,
			DailyPnL:      roundCents(snap.DailyPnL),
			SeenKeys:      len(snap.SeenKeys),
			LastHeartbeat: snap.LastHeartbeat,
		},
		Blackouts: []blackout.Window{},
	}
	if rules.Calendar.Location != nil {
		report.RTH.TZ = rules.Calendar.Location.String()
	}
	if blackouts != nil {
		report.Blackouts = blackouts.Windows()
	}
	return report
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
