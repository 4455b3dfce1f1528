package engine

import (
	"context"
	"log/slog"
	"time"

	"riskgate/internal/broker"
	"riskgate/internal/ledger"
)

// PositionSource reports what the venue believes is open.
type PositionSource interface {
	Position(ctx context.Context, symbol string) (broker.Position, error)
}

// ReconcileLoop compares venue positions against the ledger. The ledger
// commits before dispatch, so a rejected or unfilled order shows up here as
// drift; it is reported, never corrected automatically.
func (e *Engine) ReconcileLoop(ctx context.Context, source PositionSource, symbols []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcileOnce(ctx, source, symbols)
		}
	}
}

func (e *Engine) reconcileOnce(ctx context.Context, source PositionSource, symbols []string) []string {
	snap := e.store.Snapshot()
	var drifted []string
	for _, symbol := range symbols {
		pos, err := source.Position(ctx, symbol)
		if err != nil {
			slog.Error("reconcile position failed", "symbol", symbol, "error", err)
			continue
		}
		want := snap.Books[symbol].Position
		if venuePosition(pos.Qty) != want {
			drifted = append(drifted, symbol)
			slog.Warn("position drift", "symbol", symbol, "ledger", want, "venue_qty", pos.Qty, "venue_avg_entry", pos.AvgEntry)
		}
	}
	return drifted
}

func venuePosition(qty int) ledger.Position {
	switch {
	case qty > 0:
		return ledger.Long
	case qty < 0:
		return ledger.Short
	default:
		return ledger.Flat
	}
}
