// Package llm sends rendered prompts to a text completion server.
package llm

import (
	"context"
	"errors"
)

// ErrBadResponse marks a reply the server sent but that holds no usable
// completion: non-2xx status, invalid JSON, or a missing results[0].text.
// Callers substitute a fallback reply for these; any other error means the
// server could not be reached.
var ErrBadResponse = errors.New("llm: unusable response")

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params are the sampling settings sent with every request.
type Params struct {
	MaxContextLength int      `yaml:"max_context_length"`
	MaxLength        int      `yaml:"max_length"`
	RepPen           float64  `yaml:"rep_pen"`
	Temperature      float64  `yaml:"temperature"`
	Stop             []string `yaml:"-"`
}

func DefaultParams() Params {
	return Params{
		MaxContextLength: 6000,
		MaxLength:        256,
		RepPen:           1.1,
		Temperature:      0.5,
	}
}
