package app

import (
	"bytes"
	"context"
	"io"
	log "log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sophie/internal/config"
	"sophie/internal/dialogue"
	"sophie/internal/llm"
	"sophie/internal/relevance"
	"sophie/pkg/embed"
)

func TestSetupLogging(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	var buf bytes.Buffer
	SetupLogging(&buf, "warn")
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(config.GenerationConfig{Backend: config.BackendKobold, Endpoint: "http://x", Params: llm.DefaultParams()}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &llm.Kobold{}, gen)

	gen, err = NewGenerator(config.GenerationConfig{Backend: config.BackendOpenAI, Endpoint: "http://x/v1", Model: "m"}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAI{}, gen)

	_, err = NewGenerator(config.GenerationConfig{Backend: "smoke-signals"}, nil, nil)
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	p, err := NewEmbedder(config.EmbeddingsConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewEmbedder(config.EmbeddingsConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &embed.Ollama{}, p)
}

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }
func (constEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (constEmbedder) ModelID() string { return "const" }

func TestNewScorer(t *testing.T) {
	s, err := NewScorer(relevance.ModeSubstring, 0.7, 0.85, nil)
	require.NoError(t, err)
	assert.Equal(t, relevance.Substring{}, s)

	_, err = NewScorer(relevance.ModeSemantic, 0.7, 0.85, nil)
	assert.Error(t, err)

	s, err = NewScorer(relevance.ModePhonetic, 0.7, 0.85, nil)
	require.NoError(t, err)
	ok, err := s.Relevant(context.Background(), "Okay Sophia, what time is it?", "sophie")
	require.NoError(t, err)
	assert.True(t, ok)

	s, err = NewScorer(relevance.ModeSemantic, 0.7, 0.85, constEmbedder{})
	require.NoError(t, err)
	ok, err = s.Relevant(context.Background(), "anything", "else")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewCore_RespondsThroughConfiguredServers(t *testing.T) {
	gen := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/generate", r.URL.Path)
		_, _ = io.WriteString(w, `{"results":[{"text":"Hello there"}]}`)
	}))
	defer gen.Close()
	synth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer synth.Close()

	cfg := config.Default()
	cfg.Generation.Endpoint = gen.URL
	cfg.TTS.Endpoint = synth.URL
	cfg.Knowledge.Path = t.TempDir() + "/none.txt"
	cfg.Audio.Chime = ""

	core, err := NewCore(cfg)
	require.NoError(t, err)

	ctrl, err := dialogue.New(core.Deps(), dialogue.Options{})
	require.NoError(t, err)

	reply, err := ctrl.Respond(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)
	assert.Equal(t, 1, core.History.Len())
}
