// Package metrics exposes per-round test cache counters to prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schwers/blueprints/internal/models"
)

const (
	MetricsNamespace = "blueprints"
)

// Recorder holds the session's counters. Each Recorder registers its own
// collectors, so use one per registry.
type Recorder struct {
	registry *prometheus.Registry

	roundsTotal        prometheus.Counter
	artifactsTotal     *prometheus.CounterVec
	unmatchedTotal     prometheus.Counter
	buildFailuresTotal prometheus.Counter
	roundDuration      prometheus.Histogram
	lastRoundStaged    prometheus.Gauge
}

// NewRecorder creates a Recorder backed by a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,

		roundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "rounds_total",
			Help:      "Count of test rounds run",
		}),

		artifactsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "artifacts_total",
			Help:      "Count of artifacts processed, by final round state",
		}, []string{
			"state",
		}),

		unmatchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "unmatched_outcomes_total",
			Help:      "Count of execution outcomes whose digest could not be recovered",
		}),

		buildFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "build_failures_total",
			Help:      "Count of build passes that reported errors",
		}),

		roundDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "round_duration_seconds",
			Help:      "Duration of test rounds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),

		lastRoundStaged: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_round_staged",
			Help:      "Artifacts staged in the most recent round",
		}),
	}
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordRound counts a finished round and each artifact's final state.
func (r *Recorder) RecordRound(result models.RoundResult) {
	r.roundsTotal.Inc()
	for _, artifact := range result.Artifacts {
		r.artifactsTotal.WithLabelValues(string(artifact.State)).Inc()
	}
	r.unmatchedTotal.Add(float64(result.Unmatched))
	r.roundDuration.Observe(result.Duration.Seconds())
	r.lastRoundStaged.Set(float64(result.Staged))
}

// RecordBuildFailure counts a build pass that produced no round.
func (r *Recorder) RecordBuildFailure() {
	r.buildFailuresTotal.Inc()
}

// Handler serves the recorder's registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start metrics server on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
