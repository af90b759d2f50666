package contextwindow

import "sort"

// Selector fills the soft token budget in two passes: a recency guarantee
// for short-term continuity, then a relevance fill in tie-break order.
type Selector struct {
	MinRecent          int
	MaxTotal           int
	RelevanceThreshold float64
}

// NewSelector returns the production selection policy.
func NewSelector() Selector {
	return Selector{
		MinRecent:          6,
		MaxTotal:           20,
		RelevanceThreshold: 0.3,
	}
}

// Select admits messages from the prioritized candidate list until the
// budget is exhausted and returns them in chronological order, which the
// generative backend requires. An empty result is valid: the assembler
// still produces [system, query].
func (s Selector) Select(prioritized []ScoredMessage, available int) []ScoredMessage {
	if len(prioritized) == 0 {
		return nil
	}

	used := 0
	taken := make(map[string]bool, s.MaxTotal)
	selected := make([]ScoredMessage, 0, s.MaxTotal)

	// Pass 1: guarantee the most recent HIGH-tier turns so a long-tail
	// relevant-but-old message can never displace short-term continuity.
	byRecency := make([]ScoredMessage, len(prioritized))
	copy(byRecency, prioritized)
	sort.SliceStable(byRecency, func(i, j int) bool {
		return byRecency[i].Timestamp > byRecency[j].Timestamp
	})

	recent := 0
	for _, msg := range byRecency {
		if recent >= s.MinRecent {
			break
		}
		if msg.Tier != TierHigh && msg.Tier != TierCritical {
			continue
		}
		if used+msg.Tokens > available {
			continue
		}
		selected = append(selected, msg)
		taken[msg.ID] = true
		used += msg.Tokens
		recent++
	}

	// Pass 2: fill the remaining budget in tie-break order.
	for _, msg := range prioritized {
		if len(selected) >= s.MaxTotal {
			break
		}
		if taken[msg.ID] {
			continue
		}
		if msg.Relevance < s.RelevanceThreshold {
			continue
		}
		if used+msg.Tokens > available {
			continue
		}
		selected = append(selected, msg)
		taken[msg.ID] = true
		used += msg.Tokens
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp < selected[j].Timestamp
	})

	return selected
}
