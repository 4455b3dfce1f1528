package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"riskgate/internal/ledger"
)

// Decision is one line of the audit trail: every inbound signal, accepted
// or rejected, with the state it left behind.
type Decision struct {
	RunID         string          `json:"run_id"`
	Timestamp     time.Time       `json:"timestamp"`
	ReceivedAt    time.Time       `json:"received_at"`
	Symbol        string          `json:"symbol"`
	Signal        string          `json:"signal"`
	Price         *float64        `json:"price"`
	BarTime       string          `json:"bar_time"`
	Result        string          `json:"result"`
	Reason        string          `json:"reason,omitempty"`
	Detail        string          `json:"detail,omitempty"`
	Position      ledger.Position `json:"position"`
	EntryPrice    *float64        `json:"entry_price"`
	DailyPnL      float64         `json:"daily_pnl"`
	Realized      *float64        `json:"realized_pnl,omitempty"`
	TradingDate   string          `json:"trading_date"`
	Rotated       bool            `json:"rotated,omitempty"`
	Flattened     bool            `json:"flattened,omitempty"`
	Dispatched    bool            `json:"dispatched,omitempty"`
	OrderID       string          `json:"order_id,omitempty"`
	DispatchError string          `json:"dispatch_error,omitempty"`
}

type DecisionSink interface {
	Append(decision Decision)
}

// DecisionLogger appends decisions to an NDJSON file.
type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string, runID string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) RunID() string {
	return d.runID
}

func (d *DecisionLogger) Append(decision Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(decision)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal decision: %v\n", err)
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write decision: %v\n", err)
		return
	}
	if err := d.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush decision log: %v\n", err)
	}
}

func (d *DecisionLogger) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
