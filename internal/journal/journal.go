package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"riskgate/internal/engine"
	"riskgate/internal/ledger"
)

// DecisionModel maps to the 'decisions' table.
type DecisionModel struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	RunID         string    `gorm:"column:run_id;index"`
	Timestamp     time.Time `gorm:"column:timestamp;index"`
	ReceivedAt    time.Time `gorm:"column:received_at"`
	Symbol        string    `gorm:"column:symbol;index"`
	Signal        string    `gorm:"column:signal"`
	Price         *float64  `gorm:"column:price"`
	BarTime       string    `gorm:"column:bar_time"`
	Result        string    `gorm:"column:result"`
	Reason        string    `gorm:"column:reason"`
	Detail        string    `gorm:"column:detail"`
	Position      string    `gorm:"column:position"`
	EntryPrice    *float64  `gorm:"column:entry_price"`
	DailyPnL      float64   `gorm:"column:daily_pnl"`
	Realized      *float64  `gorm:"column:realized_pnl"`
	TradingDate   string    `gorm:"column:trading_date;index"`
	Rotated       bool      `gorm:"column:rotated"`
	Flattened     bool      `gorm:"column:flattened"`
	Dispatched    bool      `gorm:"column:dispatched"`
	OrderID       string    `gorm:"column:order_id"`
	DispatchError string    `gorm:"column:dispatch_error"`
}

func (DecisionModel) TableName() string { return "decisions" }

// Journal mirrors decisions into SQLite.
type Journal struct {
	db *gorm.DB
}

func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.AutoMigrate(&DecisionModel{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return &Journal{db: db}, nil
}

// Append implements engine.DecisionSink. Write failures are logged, never
// propagated into the signal path.
func (j *Journal) Append(d engine.Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	row := toModel(d)
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		slog.Error("journal write failed", "symbol", d.Symbol, "result", d.Result, "error", err)
	}
}

// Recent returns the newest decisions first. A non-positive limit means 100.
func (j *Journal) Recent(ctx context.Context, limit int) ([]engine.Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []DecisionModel
	if err := j.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engine.Decision, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

// CountByReason tallies rejections of one trading day.
func (j *Journal) CountByReason(ctx context.Context, tradingDate string) (map[string]int64, error) {
	type row struct {
		Reason string
		N      int64
	}
	var rows []row
	err := j.db.WithContext(ctx).Model(&DecisionModel{}).
		Select("reason, count(*) as n").
		Where("trading_date = ? AND result = ?", tradingDate, "rejected").
		Group("reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Reason] = r.N
	}
	return out, nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toModel(d engine.Decision) DecisionModel {
	return DecisionModel{
		RunID:         d.RunID,
		Timestamp:     d.Timestamp,
		ReceivedAt:    d.ReceivedAt,
		Symbol:        d.Symbol,
		Signal:        d.Signal,
		Price:         d.Price,
		BarTime:       d.BarTime,
		Result:        d.Result,
		Reason:        d.Reason,
		Detail:        d.Detail,
		Position:      d.Position.String(),
		EntryPrice:    d.EntryPrice,
		DailyPnL:      d.DailyPnL,
		Realized:      d.Realized,
		TradingDate:   d.TradingDate,
		Rotated:       d.Rotated,
		Flattened:     d.Flattened,
		Dispatched:    d.Dispatched,
		OrderID:       d.OrderID,
		DispatchError: d.DispatchError,
	}
}

func fromModel(m DecisionModel) engine.Decision {
	var pos ledger.Position
	_ = pos.UnmarshalText([]byte(m.Position))
	return engine.Decision{
		RunID:         m.RunID,
		Timestamp:     m.Timestamp,
		ReceivedAt:    m.ReceivedAt,
		Symbol:        m.Symbol,
		Signal:        m.Signal,
		Price:         m.Price,
		BarTime:       m.BarTime,
		Result:        m.Result,
		Reason:        m.Reason,
		Detail:        m.Detail,
		Position:      pos,
		EntryPrice:    m.EntryPrice,
		DailyPnL:      m.DailyPnL,
		Realized:      m.Realized,
		TradingDate:   m.TradingDate,
		Rotated:       m.Rotated,
		Flattened:     m.Flattened,
		Dispatched:    m.Dispatched,
		OrderID:       m.OrderID,
		DispatchError: m.DispatchError,
	}
}
