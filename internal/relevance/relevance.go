// Package relevance decides whether a candidate phrase or knowledge key is
// pertinent to a piece of transcribed speech.
//
// Every decision in the agent (wake/reset detection, knowledge lookup) goes
// through a Scorer, so strategies can be swapped without touching callers.
package relevance

import (
	"context"
	"fmt"
	"strings"
)

// Scorer reports whether candidate is relevant to query.
type Scorer interface {
	Relevant(ctx context.Context, query, candidate string) (bool, error)
}

// Warmer is implemented by scorers that benefit from seeing the full
// candidate set up front (for example to embed it in one batch).
type Warmer interface {
	Warm(ctx context.Context, candidates []string) error
}

// Substring matches when the lowercased candidate occurs in the lowercased
// query. An empty candidate never matches.
type Substring struct{}

func (Substring) Relevant(_ context.Context, query, candidate string) (bool, error) {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if c == "" {
		return false, nil
	}
	return strings.Contains(strings.ToLower(query), c), nil
}

// AnyOf is relevant when any member is. Members are consulted in order and
// evaluation stops at the first hit.
type AnyOf []Scorer

func (a AnyOf) Relevant(ctx context.Context, query, candidate string) (bool, error) {
	for _, s := range a {
		ok, err := s.Relevant(ctx, query, candidate)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (a AnyOf) Warm(ctx context.Context, candidates []string) error {
	for _, s := range a {
		if w, ok := s.(Warmer); ok {
			if err := w.Warm(ctx, candidates); err != nil {
				return err
			}
		}
	}
	return nil
}

// Mode names a scoring strategy in configuration.
type Mode string

const (
	ModeSubstring Mode = "substring"
	ModePhonetic  Mode = "phonetic"
	ModeSemantic  Mode = "semantic"
	ModeHybrid    Mode = "hybrid"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeSubstring, ModePhonetic, ModeSemantic, ModeHybrid:
		return true
	}
	return false
}

// ForMode builds the scorer for m. enhanced is the non-substring strategy
// used by semantic and hybrid modes; hybrid falls back to phonetic when it
// is nil. opts tune every phonetic scorer ForMode builds.
func ForMode(m Mode, enhanced Scorer, opts ...PhoneticOption) (Scorer, error) {
	switch m {
	case "", ModeSubstring:
		return Substring{}, nil
	case ModePhonetic:
		return NewPhonetic(opts...), nil
	case ModeSemantic:
		if enhanced == nil {
			return nil, fmt.Errorf("relevance: mode %q needs an embedding provider", m)
		}
		return enhanced, nil
	case ModeHybrid:
		if enhanced == nil {
			enhanced = NewPhonetic(opts...)
		}
		return AnyOf{Substring{}, enhanced}, nil
	}
	return nil, fmt.Errorf("relevance: unknown mode %q", m)
}
