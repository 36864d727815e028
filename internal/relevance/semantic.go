package relevance

import (
	"context"
	"fmt"
	"sync"

	"sophie/pkg/embed"
)

// DefaultSemanticThreshold is the cosine similarity a candidate must exceed.
const DefaultSemanticThreshold = 0.7

// Semantic scores by cosine similarity in a shared embedding space.
// Candidate vectors are cached by text for the life of the scorer; the most
// recent query vector is reused while the same query is being scored against
// many candidates.
type Semantic struct {
	provider  embed.Provider
	threshold float64

	mu        sync.Mutex
	cache     map[string][]float32
	lastQuery string
	lastVec   []float32
}

func NewSemantic(p embed.Provider, threshold float64) *Semantic {
	if threshold <= 0 {
		threshold = DefaultSemanticThreshold
	}
	return &Semantic{
		provider:  p,
		threshold: threshold,
		cache:     make(map[string][]float32),
	}
}

func (s *Semantic) Relevant(ctx context.Context, query, candidate string) (bool, error) {
	score, err := s.Score(ctx, query, candidate)
	if err != nil {
		return false, err
	}
	return score > s.threshold, nil
}

// Score returns the raw cosine similarity between query and candidate.
func (s *Semantic) Score(ctx context.Context, query, candidate string) (float64, error) {
	qv, err := s.queryVector(ctx, query)
	if err != nil {
		return 0, err
	}
	cv, err := s.candidateVector(ctx, candidate)
	if err != nil {
		return 0, err
	}
	sim, err := embed.Cosine(qv, cv)
	if err != nil {
		return 0, fmt.Errorf("relevance: %w", err)
	}
	return sim, nil
}

// Warm embeds every uncached candidate in a single batch call.
func (s *Semantic) Warm(ctx context.Context, candidates []string) error {
	s.mu.Lock()
	var missing []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		if _, ok := s.cache[c]; !ok && !seen[c] {
			missing = append(missing, c)
			seen[c] = true
		}
	}
	s.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}
	vecs, err := s.provider.EmbedBatch(ctx, missing)
	if err != nil {
		return fmt.Errorf("relevance: warm %d candidates: %w", len(missing), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range missing {
		s.cache[c] = vecs[i]
	}
	return nil
}

func (s *Semantic) queryVector(ctx context.Context, q string) ([]float32, error) {
	s.mu.Lock()
	if s.lastVec != nil && s.lastQuery == q {
		v := s.lastVec
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err := s.provider.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("relevance: embed query: %w", err)
	}

	s.mu.Lock()
	s.lastQuery, s.lastVec = q, v
	s.mu.Unlock()
	return v, nil
}

func (s *Semantic) candidateVector(ctx context.Context, c string) ([]float32, error) {
	s.mu.Lock()
	v, ok := s.cache[c]
	s.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := s.provider.Embed(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("relevance: embed candidate: %w", err)
	}

	s.mu.Lock()
	s.cache[c] = v
	s.mu.Unlock()
	return v, nil
}
