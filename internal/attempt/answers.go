package attempt

import (
	"strings"
	"sync"

	"github.com/idest-edu/assignment-gateway/internal/models"
)

// AnswerStore maps question id to answer value for one live attempt. The
// value shape is interaction-kind-specific and opaque to the store; it is
// never validated here. Only user input mutates it — the timer and the
// navigator have no write access.
type AnswerStore struct {
	mu     sync.RWMutex
	values map[string]any
	kinds  map[string]models.InteractionKind
}

func NewAnswerStore(kinds map[string]models.InteractionKind) *AnswerStore {
	if kinds == nil {
		kinds = make(map[string]models.InteractionKind)
	}
	return &AnswerStore{
		values: make(map[string]any),
		kinds:  kinds,
	}
}

// Update replaces the entry for questionID and nothing else.
func (s *AnswerStore) Update(questionID string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[questionID] = value
}

// Get returns the stored value, or the kind-specific explicit default for
// a question that has no entry yet. Never an error.
func (s *AnswerStore) Get(questionID string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[questionID]; ok {
		return v
	}
	return models.EmptyAnswerValue(s.kinds[questionID])
}

// Text returns the stored value as a string; non-string and missing
// entries yield "".
func (s *AnswerStore) Text(questionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[questionID]; ok {
		if text, ok := v.(string); ok {
			return text
		}
	}
	return ""
}

// WordCount counts whitespace-separated words in a free-text answer.
// Shown live under the writing editor and checked before submission.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Answered reports whether the question has an explicit entry.
func (s *AnswerStore) Answered(questionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[questionID]
	return ok
}

// AnsweredCount returns the number of explicit entries.
func (s *AnswerStore) AnsweredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Snapshot returns a copy of the current entries.
func (s *AnswerStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Restore replaces all entries from a snapshot, preserving registered
// kinds. Used when resuming a session from its saved state.
func (s *AnswerStore) Restore(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}
