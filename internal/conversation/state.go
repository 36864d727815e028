// Package conversation keeps the in-memory log of completed dialogue turns.
package conversation

import "sync"

// Turn is one completed exchange. Values are never modified after Append.
type Turn struct {
	UserName  string `json:"user_name"`
	Utterance string `json:"user_utterance"`
	Reply     string `json:"bot_reply"`
}

// State is the ordered turn log. Insertion order is chronological order and
// is the order turns are replayed into the prompt.
//
// Mutations are expected from a single goroutine (the dialogue controller);
// the lock only makes Len and Snapshot safe for concurrent status readers.
type State struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewState() *State { return &State{} }

func (s *State) Append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// Reset drops every turn. Resetting an empty log is a no-op.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// Snapshot returns a copy of the log that later appends do not affect.
func (s *State) Snapshot() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}
