package chat

import (
	"unicode/utf8"

	"github.com/zhouzirui/agent-chat/backend/internal/model/chat"
)

const (
	DefaultMaxTurns  = 20
	DefaultMaxTokens = 4000
)

// TruncationPolicy bounds a history. Excess reports how many of the oldest
// turns must be dropped for the rest to fit.
type TruncationPolicy interface {
	Excess(turns []chat.Turn) int
}

// CountPolicy bounds a history by message count.
type CountPolicy struct {
	MaxTurns int
}

// Excess implements TruncationPolicy.
func (p CountPolicy) Excess(turns []chat.Turn) int {
	limit := p.MaxTurns
	if limit < 1 {
		limit = 1
	}
	if len(turns) <= limit {
		return 0
	}
	return len(turns) - limit
}

// TokenPolicy bounds a history by approximate token weight. The accounting
// unit is one token per four runes of turn text, rounded up (EstimateTokens),
// unless Estimate overrides it.
type TokenPolicy struct {
	MaxTokens int
	Estimate  func(text string) int
}

// Excess implements TruncationPolicy.
func (p TokenPolicy) Excess(turns []chat.Turn) int {
	estimate := p.Estimate
	if estimate == nil {
		estimate = EstimateTokens
	}

	total := 0
	weights := make([]int, len(turns))
	for i, turn := range turns {
		weights[i] = estimate(turn.Text)
		total += weights[i]
	}

	drop := 0
	for drop < len(turns) && total > p.MaxTokens {
		total -= weights[drop]
		drop++
	}
	return drop
}

// EstimateTokens approximates the token weight of text as ceil(runes/4).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// retain applies policy to turns. The newest protected turns always survive,
// and at least one turn is always kept.
func retain(policy TruncationPolicy, turns []chat.Turn, protected int) []chat.Turn {
	if policy == nil || len(turns) == 0 {
		return turns
	}
	if protected < 1 {
		protected = 1
	}

	drop := policy.Excess(turns)
	if limit := len(turns) - protected; drop > limit {
		drop = limit
	}
	if drop <= 0 {
		return turns
	}

	// Copy so the dropped prefix is released rather than pinned by the slice.
	kept := make([]chat.Turn, len(turns)-drop, cap(turns))
	copy(kept, turns[drop:])
	return kept
}
