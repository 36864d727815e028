package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"sophie/internal/phrase"
	"sophie/internal/relevance"
)

// Environment variables that override the file.
const (
	EnvGenerationEndpoint = "LOCALHOST_ENDPOINT"
	EnvTTSEndpoint        = "XTTS_ENDPOINT"
	EnvOpenAIKey          = "OPENAI_API_KEY"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads path over the defaults, applies the environment and validates
// the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader is Load without the environment, for tests and embedding.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides endpoints and keys from getenv when set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvGenerationEndpoint); v != "" {
		c.Generation.Endpoint = v
	}
	if v := getenv(EnvTTSEndpoint); v != "" {
		c.TTS.Endpoint = v
	}
	if v := getenv(EnvOpenAIKey); v != "" {
		if c.Generation.APIKey == "" {
			c.Generation.APIKey = v
		}
		if c.Embeddings.APIKey == "" {
			c.Embeddings.APIKey = v
		}
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Bot.Timezone)
}

// PhraseSet builds the normalized wake and reset phrase set.
func (c *Config) PhraseSet() (phrase.Set, error) {
	return phrase.NewSet(c.Phrases.Wake, c.Phrases.Reset)
}

// Validate returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Bot.Name == "" {
		errs = append(errs, errors.New("bot.name is required"))
	}
	if cfg.Bot.Speaker == "" {
		errs = append(errs, errors.New("bot.speaker is required"))
	}
	if _, err := cfg.Location(); err != nil {
		errs = append(errs, fmt.Errorf("bot.timezone: %w", err))
	}

	if _, err := cfg.PhraseSet(); err != nil {
		errs = append(errs, fmt.Errorf("phrases: %w", err))
	}
	errs = append(errs, validateMode("phrases.match", cfg.Phrases.Match, cfg)...)
	errs = append(errs, validateMode("knowledge.match", cfg.Knowledge.Match, cfg)...)

	if cfg.Audio.ListenClip <= 0 {
		errs = append(errs, errors.New("audio.listen_clip must be positive"))
	}
	if cfg.Audio.UtteranceClip <= 0 {
		errs = append(errs, errors.New("audio.utterance_clip must be positive"))
	}
	if d := cfg.Audio.Duck; d.Enabled && (d.Factor < 0 || d.Factor > 1) {
		errs = append(errs, fmt.Errorf("audio.duck.factor %v must be within [0, 1]", d.Factor))
	}

	errs = append(errs, validateThreshold("phrases.threshold", cfg.Phrases.Threshold)...)
	errs = append(errs, validateThreshold("phrases.phonetic_threshold", cfg.Phrases.PhoneticThreshold)...)
	errs = append(errs, validateThreshold("knowledge.threshold", cfg.Knowledge.Threshold)...)
	errs = append(errs, validateThreshold("knowledge.phonetic_threshold", cfg.Knowledge.PhoneticThreshold)...)

	switch cfg.Embeddings.Provider {
	case "", ProviderOllama:
	case ProviderOpenAI:
		if cfg.Embeddings.Model == "" {
			errs = append(errs, errors.New("embeddings.model is required for openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider %q is invalid; valid values: ollama, openai", cfg.Embeddings.Provider))
	}

	switch cfg.Generation.Backend {
	case BackendKobold:
	case BackendOpenAI:
		if cfg.Generation.Model == "" {
			errs = append(errs, errors.New("generation.model is required for the openai backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("generation.backend %q is invalid; valid values: kobold, openai", cfg.Generation.Backend))
	}
	if cfg.Generation.Endpoint == "" {
		errs = append(errs, fmt.Errorf("generation.endpoint is required (or set %s)", EnvGenerationEndpoint))
	}
	if cfg.Generation.MaxLength <= 0 {
		errs = append(errs, errors.New("generation.max_length must be positive"))
	}

	if cfg.TTS.Endpoint == "" {
		errs = append(errs, fmt.Errorf("tts.endpoint is required (or set %s)", EnvTTSEndpoint))
	}

	if cfg.HTTP.Timeout < 0 {
		errs = append(errs, errors.New("http.timeout must not be negative"))
	}
	if cfg.Control.Socket == "" {
		errs = append(errs, errors.New("control.socket is required"))
	}

	return errors.Join(errs...)
}

func validateMode(field string, m relevance.Mode, cfg *Config) []error {
	if m == "" {
		return nil
	}
	if !m.IsValid() {
		return []error{fmt.Errorf("%s %q is invalid; valid values: substring, phonetic, semantic, hybrid", field, m)}
	}
	if m == relevance.ModeSemantic && cfg.Embeddings.Provider == "" {
		return []error{fmt.Errorf("%s %q needs embeddings.provider", field, m)}
	}
	return nil
}

// validateThreshold requires a similarity within (0, 1).
func validateThreshold(key string, v float64) []error {
	if v <= 0 || v >= 1 {
		return []error{fmt.Errorf("%s %v must be within (0, 1)", key, v)}
	}
	return nil
}
