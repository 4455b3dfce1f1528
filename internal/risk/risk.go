package risk

import (
	"log/slog"
	"time"

	"riskgate/internal/blackout"
	"riskgate/internal/dedup"
	"riskgate/internal/ledger"
	"riskgate/internal/session"
	"riskgate/internal/state"
)

type Reason string

const (
	ReasonDisabled         Reason = "disabled"
	ReasonSymbolNotAllowed Reason = "symbol_not_allowed"
	ReasonEODFlatten       Reason = "eod_flatten"
	ReasonHeartbeatTimeout Reason = "heartbeat_timeout"
	ReasonNewsBlock        Reason = "news_block"
	ReasonOutsideRTH       Reason = "outside_rth"
	ReasonDailyStop        Reason = "daily_stop_reached"
	ReasonDailyTake        Reason = "daily_take_reached"
	ReasonDuplicate        Reason = "duplicate"
	ReasonInvalidSignal    Reason = "invalid_signal"
)

// Rules is the static configuration the gates consult.
type Rules struct {
	Whitelist    map[string]bool
	HoursGated   map[string]bool
	Aliases      map[string]string
	Calendar     session.Calendar
	HeartbeatMax time.Duration
	DailyStop    float64
	DailyTake    float64
}

// Canonical maps an alias such as CME_MINI:MES1! onto the instrument it
// trades, so both spellings share one book and one dedup namespace.
func (r Rules) Canonical(symbol string) string {
	if target, ok := r.Aliases[symbol]; ok {
		return target
	}
	return symbol
}

// Verdict is the pipeline result. On a pass Side is the parsed direction.
type Verdict struct {
	Pass      bool
	Reason    Reason
	Detail    string
	Symbol    string
	Side      ledger.Side
	Rotated   bool
	Flattened bool
}

type Gate struct {
	rules     Rules
	blackouts *blackout.Store
}

func NewGate(rules Rules, blackouts *blackout.Store) *Gate {
	return &Gate{rules: rules, blackouts: blackouts}
}

func (g *Gate) Rules() Rules {
	return g.rules
}

// Evaluate runs the admission gates in order against sess. The caller must
// hold exclusive access to sess for the whole call and for the ledger
// update that follows a pass. Side effects of earlier gates (heartbeat,
// day rotation, forced flattens) stick even when a later gate rejects.
func (g *Gate) Evaluate(sess *state.Session, sig Signal) Verdict {
	now := sig.ReceivedAt
	live := sess.Heartbeat.IsLive(now, g.rules.HeartbeatMax)
	sess.Heartbeat.Touch(now)

	v := Verdict{Symbol: sig.Symbol}
	if !sess.Enabled {
		return reject(v, ReasonDisabled, "")
	}
	if !g.rules.Whitelist[sig.Symbol] {
		return reject(v, ReasonSymbolNotAllowed, sig.Symbol)
	}
	v.Symbol = g.rules.Canonical(sig.Symbol)

	if g.rules.HoursGated[v.Symbol] {
		var rejected bool
		if v, rejected = g.sessionGates(sess, v, now, live); rejected {
			return v
		}
	}

	if sess.Dedup.Observe(dedup.Key(v.Symbol, sig.Signal, sig.BarTime)) {
		return reject(v, ReasonDuplicate, "")
	}
	side, ok := ParseSide(sig.Signal)
	if !ok {
		return reject(v, ReasonInvalidSignal, sig.Signal)
	}

	v.Pass = true
	v.Side = side
	slog.Info("risk approved", "symbol", v.Symbol, "signal", side, "bar_time", sig.BarTime)
	return v
}

// sessionGates covers the checks that only apply to hours-regulated
// instruments: day rotation, EOD flatten, heartbeat, news blackout, RTH and
// the daily PnL caps.
func (g *Gate) sessionGates(sess *state.Session, v Verdict, now time.Time, live bool) (Verdict, bool) {
	cal := g.rules.Calendar
	if cal.IsNewTradingDay(now, sess.TradingDate) {
		date := cal.TradingDate(now)
		slog.Info("new trading day", "date", date, "previous", sess.TradingDate, "pnl_dropped", sess.Ledger.DailyPnL())
		sess.ResetDay(date)
		v.Rotated = true
	}

	if sess.Ledger.Book(v.Symbol).Position != ledger.Flat && cal.InFlattenBand(now) {
		sess.Ledger.Flatten(v.Symbol)
		sess.Dedup.Reset()
		v.Flattened = true
		slog.Warn("eod flatten", "symbol", v.Symbol, "time", now.In(cal.Location).Format("15:04:05"))
		return reject(v, ReasonEODFlatten, ""), true
	}

	if !live {
		return reject(v, ReasonHeartbeatTimeout, ""), true
	}

	if w, ok := g.blackouts.Active(now); ok {
		if sess.Ledger.Flatten(v.Symbol) {
			v.Flattened = true
			slog.Warn("news flatten", "symbol", v.Symbol, "event", w.Label)
		}
		return reject(v, ReasonNewsBlock, w.Label), true
	}

	if !cal.WithinWindow(now) {
		return reject(v, ReasonOutsideRTH, ""), true
	}

	pnl := sess.Ledger.DailyPnL()
	if pnl <= g.rules.DailyStop {
		return reject(v, ReasonDailyStop, ""), true
	}
	if pnl >= g.rules.DailyTake {
		return reject(v, ReasonDailyTake, ""), true
	}
	return v, false
}

func reject(v Verdict, reason Reason, detail string) Verdict {
	v.Pass = false
	v.Reason = reason
	v.Detail = detail
	args := []any{"reason", reason, "symbol", v.Symbol}
	if detail != "" {
		args = append(args, "detail", detail)
	}
	slog.Info("risk rejected", args...)
	return v
}
