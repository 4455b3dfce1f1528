package risk

import (
	"math"
	"strconv"
	"strings"
	"time"

	"riskgate/internal/ledger"
)

// Signal is an inbound alert after transport-level parsing.
type Signal struct {
	Symbol     string
	Signal     string
	Price      *float64
	BarTime    string
	ReceivedAt time.Time
}

// NewSignal normalizes raw alert fields: upper-case symbol, lower-case
// signal, and a price that is absent unless it parses to a positive number.
func NewSignal(symbol, signal, price, barTime string, receivedAt time.Time) Signal {
	return Signal{
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		Signal:     strings.ToLower(strings.TrimSpace(signal)),
		Price:      ParsePrice(price),
		BarTime:    strings.TrimSpace(barTime),
		ReceivedAt: receivedAt,
	}
}

func ParsePrice(value string) *float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return nil
	}
	return &f
}

func ParseSide(signal string) (ledger.Side, bool) {
	switch strings.ToLower(signal) {
	case "buy":
		return ledger.Buy, true
	case "sell":
		return ledger.Sell, true
	default:
		return "", false
	}
}
