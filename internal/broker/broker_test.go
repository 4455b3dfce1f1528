package broker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/ledger"
)

type failingDispatcher struct {
	calls int
	err   error
}

func (f *failingDispatcher) Submit(context.Context, Order) (Ack, error) {
	f.calls++
	if f.err != nil {
		return Ack{}, f.err
	}
	return Ack{Accepted: true, OrderID: "ok"}, nil
}

func TestSimulatorAcknowledges(t *testing.T) {
	ack, err := Simulator{}.Submit(context.Background(), Order{Symbol: "MES", Side: ledger.Buy, Qty: 1})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.True(t, strings.HasPrefix(ack.OrderID, "sim-"))
	assert.NotEqual(t, ack.OrderID, SimulatedAck().OrderID)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingDispatcher{err: errors.New("venue down")}
	b := NewBreaker(inner, BreakerSettings{Name: "test", FailureThreshold: 2, Cooldown: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := b.Submit(context.Background(), Order{Symbol: "MES", Side: ledger.Buy, Qty: 1})
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	ack, err := b.Submit(context.Background(), Order{Symbol: "MES", Side: ledger.Buy, Qty: 1})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, ack.Accepted)
	assert.Equal(t, "breaker_open", ack.Status)
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	inner := &failingDispatcher{}
	b := NewBreaker(inner, BreakerSettings{Name: "test"})
	ack, err := b.Submit(context.Background(), Order{Symbol: "MES", Side: ledger.Sell, Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, Ack{Accepted: true, OrderID: "ok"}, ack)
	assert.Equal(t, "closed", b.State())
}

func TestBuildOrder(t *testing.T) {
	price := 3012.5
	c, err := New(ClientOptions{OrderType: "limit", RunID: "run", Symbols: map[string]string{"ETHUSDT": "ETH/USD"}})
	require.NoError(t, err)

	req, err := c.buildOrder(Order{Symbol: "ETHUSDT", Side: ledger.Sell, Qty: 1, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "ETH/USD", req.Symbol)
	assert.Equal(t, alpaca.Sell, req.Side)
	assert.Equal(t, alpaca.Limit, req.Type)
	assert.Equal(t, alpaca.GTC, req.TimeInForce)
	assert.Equal(t, "run-1", req.ClientOrderID)
	require.NotNil(t, req.LimitPrice)
	assert.Equal(t, "3012.5", req.LimitPrice.String())
	assert.Equal(t, "1", req.Qty.String())

	req, err = c.buildOrder(Order{Symbol: "MES", Side: ledger.Buy, Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, alpaca.Market, req.Type, "no price falls back to market")
	assert.Equal(t, alpaca.Day, req.TimeInForce)
	assert.Nil(t, req.LimitPrice)
	assert.Equal(t, "run-2", req.ClientOrderID)

	_, err = c.buildOrder(Order{Symbol: "MES", Side: ledger.Buy})
	assert.Error(t, err)
}

func TestParseOrderType(t *testing.T) {
	_, err := New(ClientOptions{OrderType: "stop"})
	assert.Error(t, err)
}
