package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	log "log/slog"
	"strings"

	"sophie/internal/relevance"
)

const factSeparator = " | "

// Base is the knowledge file plus the rule that decides relevance. The file
// is re-read on every lookup so edits take effect on the next turn.
type Base struct {
	path   string
	scorer relevance.Scorer
}

// NewBase returns a Base over the file at path. A nil scorer means substring
// containment of the key in the utterance.
func NewBase(path string, scorer relevance.Scorer) *Base {
	if scorer == nil {
		scorer = relevance.Substring{}
	}
	return &Base{path: path, scorer: scorer}
}

// Lookup returns every relevant entry rendered as "key: value" and joined
// with " | ". ok is false when nothing is relevant; facts is then empty and
// must not be rendered at all. A missing file counts as an empty base.
func (b *Base) Lookup(ctx context.Context, utterance string) (facts string, ok bool, err error) {
	entries, err := Load(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("Knowledge file missing", "path", b.path)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("knowledge: load %s: %w", b.path, err)
	}
	if len(entries) == 0 {
		return "", false, nil
	}

	if w, isWarmer := b.scorer.(relevance.Warmer); isWarmer {
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		if err := w.Warm(ctx, keys); err != nil {
			return "", false, fmt.Errorf("knowledge: %w", err)
		}
	}

	var hits []string
	for _, e := range entries {
		rel, err := b.scorer.Relevant(ctx, utterance, e.Key)
		if err != nil {
			return "", false, fmt.Errorf("knowledge: score %q: %w", e.Key, err)
		}
		if rel {
			hits = append(hits, e.Key+": "+e.Value)
		}
	}

	log.Debug("Knowledge lookup", "entries", len(entries), "hits", len(hits))

	if len(hits) == 0 {
		return "", false, nil
	}
	return strings.Join(hits, factSeparator), true, nil
}
