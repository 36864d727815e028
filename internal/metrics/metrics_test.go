package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PhrasesDetected.WithLabelValues("wake").Inc()
	m.Turns.WithLabelValues(OutcomeFallback).Inc()
	m.GenerationFallbacks.Inc()
	m.HistoryTurns.Set(3)
	m.Since("generate", time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhrasesDetected.WithLabelValues("wake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationFallbacks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HistoryTurns))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP sophie_generation_fallbacks_total Generation responses that could not be parsed and were replaced by the fallback reply.
# TYPE sophie_generation_fallbacks_total counter
sophie_generation_fallbacks_total 1
`), "sophie_generation_fallbacks_total")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "sophie_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_TwoRegistriesDoNotClash(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
