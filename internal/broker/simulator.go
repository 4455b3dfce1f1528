package broker

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
)

// Simulator acknowledges every order without contacting a venue.
type Simulator struct{}

func (Simulator) Submit(_ context.Context, order Order) (Ack, error) {
	ack := SimulatedAck()
	price := "MKT"
	if order.Price != nil {
		price = formatPrice(*order.Price)
	}
	slog.Info("simulated order", "side", order.Side, "qty", order.Qty, "symbol", order.Symbol, "price", price, "order_id", ack.OrderID)
	return ack, nil
}

func SimulatedAck() Ack {
	return Ack{Accepted: true, OrderID: "sim-" + uuid.NewString(), Status: "simulated"}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
