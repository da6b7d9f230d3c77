package service

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// maxDisplayedOptions caps the options shown for one question.
const maxDisplayedOptions = 4

// OptionSelector picks and orders the options shown for a multiple-choice question.
// One policy serves quizzes, content questions and assignments: blank options are
// dropped, duplicates collapsed, the correct answer guaranteed, at most three
// distractors sampled, and the result shuffled.
type OptionSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewOptionSelector builds a selector over rng. A nil rng is seeded from the clock.
func NewOptionSelector(rng *rand.Rand) *OptionSelector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &OptionSelector{rng: rng}
}

// Select returns the options to display. A blank correct answer is not injected.
// Options are compared case-insensitively, matching how answers are graded.
func (s *OptionSelector) Select(options []string, correct string) []string {
	correct = strings.TrimSpace(correct)
	correctKey := strings.ToLower(correct)

	seen := make(map[string]struct{}, len(options)+1)
	distractors := make([]string, 0, len(options))
	for _, option := range options {
		trimmed := strings.TrimSpace(option)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if key == correctKey {
			continue
		}
		distractors = append(distractors, trimmed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	limit := maxDisplayedOptions
	if correct != "" {
		limit--
	}
	if len(distractors) > limit {
		s.rng.Shuffle(len(distractors), func(i, j int) {
			distractors[i], distractors[j] = distractors[j], distractors[i]
		})
		distractors = distractors[:limit]
	}

	selected := distractors
	if correct != "" {
		selected = append(selected, correct)
	}
	s.rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected
}
