// Package phrase classifies transcripts as wake, reset or neither.
package phrase

import (
	"context"
	"fmt"
	"strings"

	"sophie/internal/relevance"
)

type Class int

const (
	None Class = iota
	Wake
	Reset
)

func (c Class) String() string {
	switch c {
	case Wake:
		return "wake"
	case Reset:
		return "reset"
	default:
		return "none"
	}
}

// Set holds the normalized wake and reset phrases. Order is preserved and
// decides which phrase is reported when several match.
type Set struct {
	Wake  []string
	Reset []string
}

// NewSet lowercases and trims every phrase, drops empties and rejects a
// phrase that appears in both lists.
func NewSet(wake, reset []string) (Set, error) {
	s := Set{Wake: normalize(wake), Reset: normalize(reset)}
	if len(s.Wake) == 0 {
		return Set{}, fmt.Errorf("phrase: at least one wake phrase is required")
	}
	seen := make(map[string]bool, len(s.Wake))
	for _, w := range s.Wake {
		seen[w] = true
	}
	for _, r := range s.Reset {
		if seen[r] {
			return Set{}, fmt.Errorf("phrase: %q is both a wake and a reset phrase", r)
		}
	}
	return s, nil
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Result struct {
	Class  Class
	Phrase string
}

type Matcher struct {
	set    Set
	scorer relevance.Scorer
}

// NewMatcher returns a matcher over set. A nil scorer means substring
// matching.
func NewMatcher(set Set, scorer relevance.Scorer) *Matcher {
	if scorer == nil {
		scorer = relevance.Substring{}
	}
	return &Matcher{set: set, scorer: scorer}
}

// Classify checks every wake phrase before any reset phrase, so a transcript
// containing both is a wake.
func (m *Matcher) Classify(ctx context.Context, transcript string) (Result, error) {
	text := strings.ToLower(strings.TrimSpace(transcript))
	if text == "" {
		return Result{Class: None}, nil
	}

	for _, groups := range []struct {
		class   Class
		phrases []string
	}{
		{Wake, m.set.Wake},
		{Reset, m.set.Reset},
	} {
		for _, p := range groups.phrases {
			ok, err := m.scorer.Relevant(ctx, text, p)
			if err != nil {
				return Result{}, fmt.Errorf("phrase: score %q: %w", p, err)
			}
			if ok {
				return Result{Class: groups.class, Phrase: p}, nil
			}
		}
	}
	return Result{Class: None}, nil
}
