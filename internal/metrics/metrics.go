// Package metrics holds the Prometheus instruments of the voice loop.
package metrics

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFallback  = "fallback"
	OutcomeAborted   = "aborted"
)

type Metrics struct {
	PhrasesDetected     *prometheus.CounterVec
	Turns               *prometheus.CounterVec
	GenerationFallbacks prometheus.Counter
	SynthesisFailures   prometheus.Counter
	CaptureFailures     prometheus.Counter
	StageDuration       *prometheus.HistogramVec
	HistoryTurns        prometheus.Gauge
}

// New registers every instrument on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PhrasesDetected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sophie_phrases_detected_total",
				Help: "Wake and reset phrases recognized while listening.",
			},
			[]string{"class"},
		),
		Turns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sophie_turns_total",
				Help: "Dialogue turns by outcome.",
			},
			[]string{"outcome"},
		),
		GenerationFallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sophie_generation_fallbacks_total",
				Help: "Generation responses that could not be parsed and were replaced by the fallback reply.",
			},
		),
		SynthesisFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sophie_synthesis_failures_total",
				Help: "Replies that could not be synthesized or played.",
			},
		),
		CaptureFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sophie_capture_failures_total",
				Help: "Recording or transcription failures.",
			},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sophie_stage_duration_seconds",
				Help:    "Time spent in each stage of a turn.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		HistoryTurns: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sophie_history_turns",
				Help: "Turns currently held in conversation history.",
			},
		),
	}
}

// Since observes the time elapsed from start for stage.
func (m *Metrics) Since(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Serve exposes g on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
