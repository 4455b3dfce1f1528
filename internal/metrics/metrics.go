package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the gateway's collectors. Each instance registers into its
// own prometheus.Registry so tests do not collide on the default one.
type Registry struct {
	reg *prometheus.Registry

	Signals         *prometheus.CounterVec
	Dispatches      *prometheus.CounterVec
	Flattens        *prometheus.CounterVec
	DailyPnL        prometheus.Gauge
	Position        *prometheus.GaugeVec
	HeartbeatAge    prometheus.Gauge
	BlackoutWindows prometheus.Gauge
	CalendarFetches *prometheus.CounterVec
	DispatchSeconds prometheus.Histogram
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_signals_total",
			Help: "Inbound signals by symbol, result and rejection reason",
		}, []string{"symbol", "result", "reason"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_dispatch_total",
			Help: "Execution dispatch attempts by mode and result",
		}, []string{"mode", "result"}),
		Flattens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_forced_flatten_total",
			Help: "Positions forced flat by the risk gates",
		}, []string{"symbol", "reason"}),
		DailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskgate_daily_realized_pnl",
			Help: "Realized PnL of the current trading day",
		}),
		Position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskgate_position",
			Help: "Open position per symbol: -1 short, 0 flat, 1 long",
		}, []string{"symbol"}),
		HeartbeatAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskgate_heartbeat_age_seconds",
			Help: "Seconds since the last inbound signal",
		}),
		BlackoutWindows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskgate_blackout_windows",
			Help: "News blackout windows currently loaded",
		}),
		CalendarFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_calendar_fetch_total",
			Help: "Economic calendar refresh attempts by result",
		}, []string{"result"}),
		DispatchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskgate_dispatch_duration_seconds",
			Help:    "Latency of live order dispatch",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
	r.reg.MustRegister(
		r.Signals, r.Dispatches, r.Flattens, r.DailyPnL, r.Position,
		r.HeartbeatAge, r.BlackoutWindows, r.CalendarFetches, r.DispatchSeconds,
	)
	return r
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
