package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	Cooldown         time.Duration
}

// Breaker stops calling a failing venue until the cooldown elapses.
type Breaker struct {
	inner Dispatcher
	cb    *gobreaker.CircuitBreaker
}

func NewBreaker(inner Dispatcher, s BreakerSettings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 3
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	st := gobreaker.Settings{Name: s.Name, Timeout: s.Cooldown}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= s.FailureThreshold
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("dispatch breaker state change", "name", name, "from", from.String(), "to", to.String())
	}
	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *Breaker) Submit(ctx context.Context, order Order) (Ack, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Submit(ctx, order)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Ack{Status: "breaker_open"}, err
		}
		return Ack{}, err
	}
	return out.(Ack), nil
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}
