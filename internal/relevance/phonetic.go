package relevance

import (
	"context"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// DefaultPhoneticThreshold is the Jaro-Winkler similarity a word window must
// reach.
const DefaultPhoneticThreshold = 0.85

// Phonetic tolerates the spelling drift speech recognisers produce for names
// ("sofia" for "sophie"). A window of query words the same length as the
// candidate must share a Double Metaphone code with it and reach the
// Jaro-Winkler threshold.
type Phonetic struct {
	threshold float64
}

type PhoneticOption func(*Phonetic)

func WithPhoneticThreshold(t float64) PhoneticOption {
	return func(p *Phonetic) { p.threshold = t }
}

func NewPhonetic(opts ...PhoneticOption) *Phonetic {
	p := &Phonetic{threshold: DefaultPhoneticThreshold}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Phonetic) Relevant(_ context.Context, query, candidate string) (bool, error) {
	q := words(query)
	c := words(candidate)
	if len(c) == 0 || len(q) == 0 {
		return false, nil
	}

	cand := strings.Join(c, " ")
	if strings.Contains(strings.Join(q, " "), cand) {
		return true, nil
	}

	candCodes := metaphones(c)
	size := min(len(c), len(q))
	for i := 0; i+size <= len(q); i++ {
		win := q[i : i+size]
		if !overlaps(metaphones(win), candCodes) {
			continue
		}
		if matchr.JaroWinkler(strings.Join(win, " "), cand, false) >= p.threshold {
			return true, nil
		}
	}
	return false, nil
}

// words lowercases s and splits it on anything that is not a letter or digit,
// so "Hey, Sophie." becomes [hey sophie].
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func metaphones(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		a, b := matchr.DoubleMetaphone(t)
		if a != "" {
			codes[a] = struct{}{}
		}
		if b != "" {
			codes[b] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
