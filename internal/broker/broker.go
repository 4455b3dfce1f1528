package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"riskgate/internal/ledger"
)

type Order struct {
	Symbol string
	Side   ledger.Side
	Qty    int
	Price  *float64
}

type Ack struct {
	Accepted bool   `json:"accepted"`
	OrderID  string `json:"order_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Dispatcher submits one order to an execution venue.
type Dispatcher interface {
	Submit(ctx context.Context, order Order) (Ack, error)
}

type Position struct {
	Symbol   string
	Qty      int
	AvgEntry float64
}

type ClientOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string
	OrderType string
	RunID     string
	// Symbols maps internal instrument names onto venue symbols, e.g.
	// ETHUSDT onto ETH/USD.
	Symbols map[string]string
}

// Client dispatches orders to the Alpaca trading API.
type Client struct {
	client    *alpaca.Client
	orderType alpaca.OrderType
	runID     string
	symbols   map[string]string
	seq       uint64
}

func New(opts ClientOptions) (*Client, error) {
	orderType, err := parseOrderType(opts.OrderType)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    opts.APIKey,
			APISecret: opts.APISecret,
			BaseURL:   opts.BaseURL,
		}),
		orderType: orderType,
		runID:     opts.RunID,
		symbols:   opts.Symbols,
	}, nil
}

func (c *Client) Submit(ctx context.Context, order Order) (Ack, error) {
	req, err := c.buildOrder(order)
	if err != nil {
		return Ack{}, err
	}

	placed, err := placeOrder(ctx, c.client, req)
	if err != nil {
		slog.Error("place order failed", "side", req.Side, "symbol", req.Symbol, "qty", order.Qty, "type", req.Type, "error", err)
		return Ack{}, fmt.Errorf("place order %s %s: %w", req.Side, req.Symbol, err)
	}

	slog.Info("place order success", "order_id", placed.ID, "client_order_id", placed.ClientOrderID, "side", req.Side, "symbol", req.Symbol, "qty", order.Qty, "status", placed.Status)
	return Ack{Accepted: true, OrderID: placed.ID, Status: string(placed.Status)}, nil
}

// placeOrder runs the blocking SDK call in a goroutine so ctx can bound it.
func placeOrder(ctx context.Context, client *alpaca.Client, req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	type result struct {
		order *alpaca.Order
		err   error
	}
	done := make(chan result, 1)
	go func() {
		order, err := client.PlaceOrder(req)
		done <- result{order, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.order, r.err
	}
}

func (c *Client) buildOrder(order Order) (alpaca.PlaceOrderRequest, error) {
	if order.Qty <= 0 {
		return alpaca.PlaceOrderRequest{}, fmt.Errorf("invalid quantity %d", order.Qty)
	}
	side := alpaca.Buy
	if order.Side == ledger.Sell {
		side = alpaca.Sell
	}
	symbol := order.Symbol
	if mapped, ok := c.symbols[symbol]; ok {
		symbol = mapped
	}

	qty := decimal.NewFromInt(int64(order.Qty))
	req := alpaca.PlaceOrderRequest{
		Symbol:        symbol,
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: c.nextClientOrderID(),
	}
	// Crypto pairs only accept gtc/ioc.
	if strings.Contains(symbol, "/") {
		req.TimeInForce = alpaca.GTC
	}
	// A limit order needs a price; price-less signals fall back to market.
	if c.orderType == alpaca.Limit && order.Price != nil {
		limit := decimal.NewFromFloat(*order.Price)
		req.Type = alpaca.Limit
		req.LimitPrice = &limit
	}
	return req, nil
}

func (c *Client) nextClientOrderID() string {
	seq := atomic.AddUint64(&c.seq, 1)
	return fmt.Sprintf("%s-%d", c.runID, seq)
}

// Position returns the venue position for symbol. A missing position is
// reported as flat.
func (c *Client) Position(ctx context.Context, symbol string) (Position, error) {
	venueSymbol := symbol
	if mapped, ok := c.symbols[symbol]; ok {
		venueSymbol = mapped
	}
	pos, err := c.client.GetPosition(venueSymbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Position{Symbol: symbol}, nil
		}
		slog.Error("fetch position failed", "symbol", venueSymbol, "error", err)
		return Position{}, err
	}
	qty := int(pos.Qty.IntPart())
	avgEntry, _ := pos.AvgEntryPrice.Float64()
	return Position{Symbol: symbol, Qty: qty, AvgEntry: avgEntry}, nil
}

func parseOrderType(value string) (alpaca.OrderType, error) {
	switch value {
	case "", "market":
		return alpaca.Market, nil
	case "limit":
		return alpaca.Limit, nil
	default:
		return "", fmt.Errorf("unsupported order type: %s", value)
	}
}
