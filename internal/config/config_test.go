package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sophie/internal/relevance"
)

const validYAML = `
generation:
  endpoint: http://localhost:5001
  temperature: 0.7
tts:
  endpoint: http://localhost:8020/tts_to_audio/
audio:
  listen_clip: 2s
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5001", cfg.Generation.Endpoint)
	assert.Equal(t, 0.7, cfg.Generation.Temperature)
	assert.Equal(t, 256, cfg.Generation.MaxLength, "unset fields keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Audio.ListenClip)
	assert.Equal(t, 7*time.Second, cfg.Audio.UtteranceClip)
	assert.Equal(t, "Sophie", cfg.Bot.Name)
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(validYAML + "colour: blue\n"))
	assert.ErrorContains(t, err, "colour")
}

func TestLoadFromReader_Empty(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(""))
	require.Error(t, err)
	assert.ErrorContains(t, err, "generation.endpoint")
	assert.ErrorContains(t, err, "tts.endpoint")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		EnvGenerationEndpoint: "http://gen",
		EnvTTSEndpoint:        "http://tts",
		EnvOpenAIKey:          "sk-test",
	}
	cfg.Embeddings.APIKey = "already-set"
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://gen", cfg.Generation.Endpoint)
	assert.Equal(t, "http://tts", cfg.TTS.Endpoint)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.Equal(t, "already-set", cfg.Embeddings.APIKey)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sophie.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))
	t.Setenv(EnvTTSEndpoint, "http://override")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override", cfg.TTS.Endpoint)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func validConfig() *Config {
	cfg := Default()
	cfg.Generation.Endpoint = "http://gen"
	cfg.TTS.Endpoint = "http://tts"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"overlapping phrases", func(c *Config) { c.Phrases.Reset = append(c.Phrases.Reset, "Sophie") }, "phrases"},
		{"no wake phrase", func(c *Config) { c.Phrases.Wake = nil }, "phrases"},
		{"bad mode", func(c *Config) { c.Knowledge.Match = "fuzzy" }, "knowledge.match"},
		{"semantic without provider", func(c *Config) { c.Phrases.Match = relevance.ModeSemantic }, "embeddings.provider"},
		{"zero clip", func(c *Config) { c.Audio.UtteranceClip = 0 }, "utterance_clip"},
		{"backend", func(c *Config) { c.Generation.Backend = "llamafile" }, "generation.backend"},
		{"openai needs model", func(c *Config) { c.Generation.Backend = BackendOpenAI }, "generation.model"},
		{"embedding provider", func(c *Config) { c.Embeddings.Provider = "cohere" }, "embeddings.provider"},
		{"timezone", func(c *Config) { c.Bot.Timezone = "Mars/Olympus" }, "bot.timezone"},
		{"threshold", func(c *Config) { c.Knowledge.Threshold = 1.5 }, "knowledge.threshold"},
		{"zero threshold", func(c *Config) { c.Knowledge.Threshold = 0 }, "knowledge.threshold"},
		{"zero phrase threshold", func(c *Config) { c.Phrases.Threshold = 0 }, "phrases.threshold"},
		{"phonetic threshold", func(c *Config) { c.Phrases.PhoneticThreshold = 1 }, "phrases.phonetic_threshold"},
		{"knowledge phonetic threshold", func(c *Config) { c.Knowledge.PhoneticThreshold = -0.1 }, "knowledge.phonetic_threshold"},
		{"duck factor", func(c *Config) { c.Audio.Duck = DuckConfig{Enabled: true, Factor: 2} }, "audio.duck.factor"},
		{"negative timeout", func(c *Config) { c.HTTP.Timeout = -time.Second }, "http.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, Validate(cfg), tt.want)
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "loud"
	cfg.Bot.Name = ""
	err := Validate(cfg)
	assert.ErrorContains(t, err, "log_level")
	assert.ErrorContains(t, err, "bot.name")
}

func TestSemanticWithProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Embeddings.Provider = ProviderOllama
	cfg.Knowledge.Match = relevance.ModeSemantic
	assert.NoError(t, Validate(cfg))
}

func TestExampleFileIsValid(t *testing.T) {
	f, err := os.Open("../../sophie.example.yaml")
	require.NoError(t, err)
	defer f.Close()

	cfg := Default()
	require.NoError(t, decode(f, cfg))
	cfg.ApplyEnv(func(k string) string {
		return map[string]string{EnvGenerationEndpoint: "http://gen", EnvTTSEndpoint: "http://tts"}[k]
	})
	assert.NoError(t, Validate(cfg))
	assert.Equal(t, Default().Phrases, cfg.Phrases)
}
