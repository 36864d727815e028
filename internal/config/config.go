// Package config defines the daemon's configuration: a YAML file layered over
// built-in defaults, with endpoints overridable from the environment.
package config

import (
	"time"

	"sophie/internal/ipc"
	"sophie/internal/llm"
	"sophie/internal/proxy"
	"sophie/internal/relevance"
)

type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Bot        BotConfig        `yaml:"bot"`
	Phrases    PhrasesConfig    `yaml:"phrases"`
	Audio      AudioConfig      `yaml:"audio"`
	STT        STTConfig        `yaml:"stt"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Generation GenerationConfig `yaml:"generation"`
	TTS        TTSConfig        `yaml:"tts"`
	HTTP       HTTPConfig       `yaml:"http"`
	Control    ControlConfig    `yaml:"control"`
	Bus        BusConfig        `yaml:"bus"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type BotConfig struct {
	Name     string `yaml:"name"`
	Persona  string `yaml:"persona"` // empty uses the built-in persona
	Speaker  string `yaml:"speaker"`
	Timezone string `yaml:"timezone"`
}

// PhrasesConfig and KnowledgeConfig each carry their own thresholds: Threshold
// is the cosine similarity of semantic matching, PhoneticThreshold the
// Jaro-Winkler similarity of phonetic matching.
type PhrasesConfig struct {
	Wake              []string       `yaml:"wake"`
	Reset             []string       `yaml:"reset"`
	Match             relevance.Mode `yaml:"match"`
	Threshold         float64        `yaml:"threshold"`
	PhoneticThreshold float64        `yaml:"phonetic_threshold"`
}

type AudioConfig struct {
	Device        int           `yaml:"device"` // -1 selects the system default
	ListenClip    time.Duration `yaml:"listen_clip"`
	UtteranceClip time.Duration `yaml:"utterance_clip"`
	Chime         string        `yaml:"chime"`
	SaveDir       string        `yaml:"save_dir"`
	Duck          DuckConfig    `yaml:"duck"`
}

// DuckConfig lowers other applications' volume while an utterance is recorded.
type DuckConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Factor   float64       `yaml:"factor"`
	MinLevel int           `yaml:"min_level"`
	Fade     time.Duration `yaml:"fade"`
}

type STTConfig struct {
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Threads       int    `yaml:"threads"`
	BeamSize      int    `yaml:"beam_size"`
	InitialPrompt string `yaml:"initial_prompt"`
}

type KnowledgeConfig struct {
	Path              string         `yaml:"path"`
	Match             relevance.Mode `yaml:"match"`
	Threshold         float64        `yaml:"threshold"`
	PhoneticThreshold float64        `yaml:"phonetic_threshold"`
}

type EmbeddingsConfig struct {
	Provider string `yaml:"provider"` // "", "ollama" or "openai"
	URL      string `yaml:"url"` // empty uses the provider's default
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

type GenerationConfig struct {
	Backend    string     `yaml:"backend"` // "kobold" or "openai"
	Endpoint   string     `yaml:"endpoint"`
	Model      string     `yaml:"model"`
	APIKey     string     `yaml:"api_key"`
	llm.Params `yaml:",inline"`
}

type TTSConfig struct {
	Endpoint   string `yaml:"endpoint"`
	SpeakerWav string `yaml:"speaker_wav"`
	Language   string `yaml:"language"`
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Proxy   string        `yaml:"proxy"` // SOCKS5 host:port
}

type ControlConfig struct {
	Socket string `yaml:"socket"`
}

type BusConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Backends and embedding providers.
const (
	BackendKobold  = "kobold"
	BackendOpenAI  = "openai"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Default returns a configuration that works against local KoboldCpp and
// XTTS servers once their endpoints are set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Bot: BotConfig{
			Name:     "Sophie",
			Speaker:  "User",
			Timezone: "Europe/Berlin",
		},
		Phrases: PhrasesConfig{
			Wake:              []string{"hey sophie", "hey, sophie", "sophie"},
			Reset:             []string{"reset your memorys", "reset your memories", "reset", "reset memorys", "reset memory", "reset memories"},
			Match:             relevance.ModeSubstring,
			Threshold:         relevance.DefaultSemanticThreshold,
			PhoneticThreshold: relevance.DefaultPhoneticThreshold,
		},
		Audio: AudioConfig{
			Device:        -1,
			ListenClip:    3 * time.Second,
			UtteranceClip: 7 * time.Second,
			Chime:         "bling.mp3",
			Duck: DuckConfig{
				Factor:   0.3,
				MinLevel: 10,
				Fade:     150 * time.Millisecond,
			},
		},
		STT: STTConfig{
			Model:    "models/ggml-base.en.bin",
			Language: "en",
		},
		Knowledge: KnowledgeConfig{
			Path:              "database.txt",
			Match:             relevance.ModeSubstring,
			Threshold:         relevance.DefaultSemanticThreshold,
			PhoneticThreshold: relevance.DefaultPhoneticThreshold,
		},
		Embeddings: EmbeddingsConfig{
			Model: "nomic-embed-text",
		},
		Generation: GenerationConfig{
			Backend: BackendKobold,
			Params:  llm.DefaultParams(),
		},
		TTS: TTSConfig{
			SpeakerWav: "1",
			Language:   "en",
		},
		HTTP: HTTPConfig{
			Timeout: proxy.DefaultTimeout,
		},
		Control: ControlConfig{
			Socket: ipc.DefaultSocketPath,
		},
		Bus: BusConfig{
			Name: "sophie",
		},
	}
}
