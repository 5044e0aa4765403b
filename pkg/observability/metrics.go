package observability

import (
	"context"
	"time"

	"github.com/aretw0/relay/pkg/dispatch"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus series for the dispatcher.
type Metrics struct {
	events      *prometheus.CounterVec
	invocations *prometheus.HistogramVec
	inFlight    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_total",
				Help: "Dispatched events by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		invocations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_invocation_duration_seconds",
				Help:    "Duration of handler and conversation step invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "kind", "status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_invocations_in_flight",
				Help: "Handler invocations currently running",
			},
		),
	}
	reg.MustRegister(m.events, m.invocations, m.inFlight)
	return m
}

// Hooks returns dispatcher hooks feeding these metrics. next, when given,
// is called after the metrics are recorded.
func (m *Metrics) Hooks(next ...dispatch.Hooks) dispatch.Hooks {
	return dispatch.Hooks{
		BeforeInvoke: func(ctx context.Context, inv dispatch.Invocation) {
			m.inFlight.Inc()
			for _, h := range next {
				if h.BeforeInvoke != nil {
					h.BeforeInvoke(ctx, inv)
				}
			}
		},
		AfterInvoke: func(ctx context.Context, inv dispatch.Invocation, elapsed time.Duration, err error) {
			m.inFlight.Dec()
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.invocations.WithLabelValues(inv.Route, string(inv.Kind), status).Observe(elapsed.Seconds())
			for _, h := range next {
				if h.AfterInvoke != nil {
					h.AfterInvoke(ctx, inv, elapsed, err)
				}
			}
		},
		OnResult: func(ctx context.Context, ev domain.Event, res dispatch.Result) {
			m.events.WithLabelValues(string(ev.Kind), string(res.Outcome)).Inc()
			for _, h := range next {
				if h.OnResult != nil {
					h.OnResult(ctx, ev, res)
				}
			}
		},
	}
}
