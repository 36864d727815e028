// Package app assembles the components named in a config.Config.
package app

import (
	"fmt"
	"io"
	log "log/slog"
	"net/http"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sophie/internal/config"
	"sophie/internal/conversation"
	"sophie/internal/dialogue"
	"sophie/internal/knowledge"
	"sophie/internal/llm"
	"sophie/internal/metrics"
	"sophie/internal/notify"
	"sophie/internal/prompt"
	"sophie/internal/proxy"
	"sophie/internal/relevance"
	"sophie/internal/tts"
	"sophie/pkg/embed"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// SetupLogging installs a tint handler on w as the default logger.
func SetupLogging(w io.Writer, level string) {
	log.SetDefault(log.New(tint.NewHandler(w, &tint.Options{
		Level: logLevelMap[level],
	})))
}

// Core is everything a turn needs apart from audio input.
type Core struct {
	HTTP      *http.Client
	Builder   *prompt.Builder
	Generator llm.Generator
	Embedder  embed.Provider // nil unless configured
	Knowledge *knowledge.Base
	Player    *notify.Player
	Voice     *tts.Voice
	History   *conversation.State
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
}

func NewCore(cfg *config.Config) (*Core, error) {
	hc, err := proxy.NewHTTPClient(cfg.HTTP.Proxy, cfg.HTTP.Timeout)
	if err != nil {
		return nil, err
	}

	builder := prompt.NewBuilder(cfg.Bot.Name, cfg.Bot.Persona)

	gen, err := NewGenerator(cfg.Generation, builder.StopStrings(), hc)
	if err != nil {
		return nil, err
	}

	emb, err := NewEmbedder(cfg.Embeddings, hc)
	if err != nil {
		return nil, err
	}

	kbScorer, err := NewScorer(cfg.Knowledge.Match, cfg.Knowledge.Threshold, cfg.Knowledge.PhoneticThreshold, emb)
	if err != nil {
		return nil, fmt.Errorf("knowledge: %w", err)
	}

	synth, err := tts.NewXTTS(cfg.TTS.Endpoint,
		tts.WithSpeakerWav(cfg.TTS.SpeakerWav),
		tts.WithLanguage(cfg.TTS.Language),
		tts.WithHTTPClient(hc),
	)
	if err != nil {
		return nil, err
	}
	player := notify.NewPlayer(cfg.Audio.Chime)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Core{
		HTTP:      hc,
		Builder:   builder,
		Generator: gen,
		Embedder:  emb,
		Knowledge: knowledge.NewBase(cfg.Knowledge.Path, kbScorer),
		Player:    player,
		Voice:     tts.NewVoice(synth, player, ""),
		History:   conversation.NewState(),
		Registry:  reg,
		Metrics:   metrics.New(reg),
	}, nil
}

// Deps returns the controller collaborators provided by the core. Audio input
// is left for the caller.
func (c *Core) Deps() dialogue.Deps {
	return dialogue.Deps{
		Knowledge: c.Knowledge,
		Prompt:    c.Builder,
		Generator: c.Generator,
		Voice:     c.Voice,
		Chime:     c.Player,
		History:   c.History,
		Metrics:   c.Metrics,
	}
}

func NewGenerator(cfg config.GenerationConfig, stop []string, hc *http.Client) (llm.Generator, error) {
	params := cfg.Params
	params.Stop = stop
	switch cfg.Backend {
	case config.BackendOpenAI:
		return llm.NewOpenAI(cfg.Endpoint, cfg.APIKey, cfg.Model, params, hc)
	case config.BackendKobold, "":
		return llm.NewKobold(cfg.Endpoint, params, hc)
	}
	return nil, fmt.Errorf("unknown generation backend %q", cfg.Backend)
}

// NewEmbedder returns nil when no provider is configured.
func NewEmbedder(cfg config.EmbeddingsConfig, hc *http.Client) (embed.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case config.ProviderOllama:
		return embed.NewOllama(cfg.URL, cfg.Model, hc)
	case config.ProviderOpenAI:
		return embed.NewOpenAI(cfg.URL, cfg.APIKey, cfg.Model, hc)
	}
	return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
}

// NewScorer builds the relevance rule for mode. With an embedder, semantic
// similarity above semantic is the enhancement used by semantic and hybrid
// modes. phonetic is the Jaro-Winkler threshold of phonetic matching.
func NewScorer(mode relevance.Mode, semantic, phonetic float64, emb embed.Provider) (relevance.Scorer, error) {
	var enhanced relevance.Scorer
	if emb != nil {
		enhanced = relevance.NewSemantic(emb, semantic)
	}
	return relevance.ForMode(mode, enhanced, relevance.WithPhoneticThreshold(phonetic))
}
