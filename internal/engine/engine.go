package engine

import (
	"context"
	"log/slog"
	"time"

	"riskgate/internal/broker"
	"riskgate/internal/ledger"
	"riskgate/internal/metrics"
	"riskgate/internal/risk"
	"riskgate/internal/state"
)

type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// OrderQty is the fixed size of every dispatched order.
const OrderQty = 1

// Outcome is either Accepted or Rejected.
type Outcome interface {
	OK() bool
}

// SessionView is the post-update state of the instrument a signal touched.
type SessionView struct {
	Enabled     bool            `json:"enabled"`
	Position    ledger.Position `json:"position"`
	EntryPrice  *float64        `json:"entry_price"`
	DailyPnL    float64         `json:"daily_pnl"`
	TradingDate string          `json:"date"`
}

// Execution reports what happened on the dispatch side. The ledger has
// already committed by the time it is produced, so Error never implies a
// rollback.
type Execution struct {
	Mode       Mode        `json:"mode"`
	Dispatched bool        `json:"dispatched"`
	Ack        *broker.Ack `json:"ack,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type Accepted struct {
	Symbol   string      `json:"symbol"`
	Signal   ledger.Side `json:"signal"`
	Price    *float64    `json:"price"`
	Realized *float64    `json:"realized_pnl,omitempty"`
	State    SessionView `json:"state"`
	Exec     Execution   `json:"exec"`
}

func (Accepted) OK() bool { return true }

type Rejected struct {
	Symbol string      `json:"symbol,omitempty"`
	Reason risk.Reason `json:"reason"`
	Detail string      `json:"detail,omitempty"`
}

func (Rejected) OK() bool { return false }

type Options struct {
	Mode            Mode
	DispatchTimeout time.Duration
	RunID           string
}

type Engine struct {
	gate       *risk.Gate
	store      *state.Store
	dispatcher broker.Dispatcher
	sinks      []DecisionSink
	metrics    *metrics.Registry
	mode       Mode
	timeout    time.Duration
	runID      string
}

func New(opts Options, gate *risk.Gate, store *state.Store, dispatcher broker.Dispatcher, m *metrics.Registry, sinks ...DecisionSink) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModePaper
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 5 * time.Second
	}
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		gate:       gate,
		store:      store,
		dispatcher: dispatcher,
		sinks:      sinks,
		metrics:    m,
		mode:       opts.Mode,
		timeout:    opts.DispatchTimeout,
		runID:      opts.RunID,
	}
}

// OnSignal runs one inbound signal through the gates and the ledger under
// the session lock, then dispatches outside it.
func (e *Engine) OnSignal(ctx context.Context, sig risk.Signal) Outcome {
	var (
		verdict risk.Verdict
		tr      ledger.Transition
		view    SessionView
	)
	e.store.Update(func(sess *state.Session) {
		verdict = e.gate.Evaluate(sess, sig)
		if verdict.Pass {
			tr = sess.Ledger.Apply(verdict.Symbol, verdict.Side, sig.Price)
		}
		book := sess.Ledger.Book(verdict.Symbol)
		view = SessionView{
			Enabled:     sess.Enabled,
			Position:    book.Position,
			EntryPrice:  book.Entry,
			DailyPnL:    roundCents(sess.Ledger.DailyPnL()),
			TradingDate: sess.TradingDate,
		}
	})
	e.observe(verdict, view)

	decision := Decision{
		RunID:       e.runID,
		Timestamp:   time.Now().UTC(),
		ReceivedAt:  sig.ReceivedAt,
		Symbol:      verdict.Symbol,
		Signal:      sig.Signal,
		Price:       sig.Price,
		BarTime:     sig.BarTime,
		Position:    view.Position,
		EntryPrice:  view.EntryPrice,
		DailyPnL:    view.DailyPnL,
		TradingDate: view.TradingDate,
		Rotated:     verdict.Rotated,
		Flattened:   verdict.Flattened,
	}

	if !verdict.Pass {
		decision.Result = "rejected"
		decision.Reason = string(verdict.Reason)
		decision.Detail = verdict.Detail
		e.record(decision)
		return Rejected{Symbol: verdict.Symbol, Reason: verdict.Reason, Detail: verdict.Detail}
	}

	exec := e.execute(ctx, verdict, sig, tr)
	decision.Result = "accepted"
	decision.Realized = tr.Realized
	decision.Dispatched = exec.Dispatched
	if exec.Ack != nil {
		decision.OrderID = exec.Ack.OrderID
	}
	decision.DispatchError = exec.Error
	e.record(decision)

	return Accepted{
		Symbol:   verdict.Symbol,
		Signal:   verdict.Side,
		Price:    sig.Price,
		Realized: tr.Realized,
		State:    view,
		Exec:     exec,
	}
}

// execute forwards a position change to the venue. Signals that leave the
// position unchanged send nothing. Paper mode never calls the dispatcher.
func (e *Engine) execute(ctx context.Context, verdict risk.Verdict, sig risk.Signal, tr ledger.Transition) Execution {
	exec := Execution{Mode: e.mode}
	if !tr.Changed {
		return exec
	}
	exec.Dispatched = true
	order := broker.Order{
		Symbol: verdict.Symbol,
		Side:   verdict.Side,
		Qty:    OrderQty,
		Price:  sig.Price,
	}
	if e.mode == ModePaper || e.dispatcher == nil {
		ack, _ := broker.Simulator{}.Submit(ctx, order)
		exec.Ack = &ack
		e.metrics.Dispatches.WithLabelValues(string(e.mode), "simulated").Inc()
		return exec
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	start := time.Now()
	ack, err := e.dispatcher.Submit(ctx, order)
	e.metrics.DispatchSeconds.Observe(time.Since(start).Seconds())
	exec.Ack = &ack
	if err != nil {
		exec.Error = err.Error()
		e.metrics.Dispatches.WithLabelValues(string(e.mode), "failed").Inc()
		slog.Error("dispatch failed; ledger already committed", "symbol", verdict.Symbol, "side", verdict.Side, "error", err)
		return exec
	}
	e.metrics.Dispatches.WithLabelValues(string(e.mode), "accepted").Inc()
	return exec
}

func (e *Engine) observe(verdict risk.Verdict, view SessionView) {
	result, reason := "accepted", ""
	if !verdict.Pass {
		result, reason = "rejected", string(verdict.Reason)
	}
	e.metrics.HeartbeatAge.Set(0)
	// Symbols that never passed the whitelist stay out of the label space.
	if verdict.Reason == risk.ReasonSymbolNotAllowed || verdict.Reason == risk.ReasonDisabled {
		e.metrics.Signals.WithLabelValues("other", result, reason).Inc()
		return
	}
	symbol := verdict.Symbol
	e.metrics.Signals.WithLabelValues(symbol, result, reason).Inc()
	if verdict.Rotated {
		e.metrics.Position.Reset()
	}
	if verdict.Flattened {
		e.metrics.Flattens.WithLabelValues(symbol, reason).Inc()
	}
	e.metrics.DailyPnL.Set(view.DailyPnL)
	e.metrics.Position.WithLabelValues(symbol).Set(float64(view.Position))
}

func (e *Engine) record(d Decision) {
	for _, sink := range e.sinks {
		sink.Append(d)
	}
}

func (e *Engine) SetEnabled(enabled bool) {
	e.store.SetEnabled(enabled)
	slog.Info("master switch", "enabled", enabled)
}
