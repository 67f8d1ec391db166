// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "makerbot"

type Metrics struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	skippedTicks *prometheus.CounterVec
	actions      *prometheus.CounterVec
	retries      *prometheus.CounterVec
	fatalErrors  *prometheus.CounterVec
	seriesLen    prometheus.Gauge
	midPrice     prometheus.Gauge
	microPrice   prometheus.Gauge
}

func New(market string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"market": market}

	m := &Metrics{
		registry: registry,

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "ticks_total",
			Help:        "Loop iterations that evaluated a new order book",
			ConstLabels: labels,
		}),
		skippedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "ticks_skipped_total",
			Help:        "Loop iterations skipped, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "actions_total",
			Help:        "Order actions executed, by kind and side",
			ConstLabels: labels,
		}, []string{"kind", "side"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "venue_retries_total",
			Help:        "Venue calls retried after a failure",
			ConstLabels: labels,
		}, []string{"op"}),
		fatalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "fatal_errors_total",
			Help:        "Errors that stopped the loop, by class",
			ConstLabels: labels,
		}, []string{"class"}),
		seriesLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "series_length",
			Help:        "Snapshots held in the order book series",
			ConstLabels: labels,
		}),
		midPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "mid_price",
			Help:        "Latest mid price",
			ConstLabels: labels,
		}),
		microPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "micro_price",
			Help:        "Latest imbalance weighted microprice",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		m.ticks,
		m.skippedTicks,
		m.actions,
		m.retries,
		m.fatalErrors,
		m.seriesLen,
		m.midPrice,
		m.microPrice,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Tick() { m.ticks.Inc() }
func (m *Metrics) Skip(reason string) { m.skippedTicks.WithLabelValues(reason).Inc() }
func (m *Metrics) Action(kind, side string) { m.actions.WithLabelValues(kind, side).Inc() }
func (m *Metrics) Retry(op string) { m.retries.WithLabelValues(op).Inc() }
func (m *Metrics) Fatal(class string) { m.fatalErrors.WithLabelValues(class).Inc() }
func (m *Metrics) SeriesLength(n int) { m.seriesLen.Set(float64(n)) }
func (m *Metrics) Prices(mid, micro float64) { m.midPrice.Set(mid); m.microPrice.Set(micro) }

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.S().Infof("serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
