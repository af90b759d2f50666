package contextwindow

import "sort"

// Tier is the coarse priority bucket applied before fine-grained relevance.
// Lower sorts first.
type Tier int

const (
	// TierCritical is reserved for the system preamble and the incoming
	// query, which never pass through prioritization.
	TierCritical Tier = 1
	TierHigh     Tier = 2
	TierMedium   Tier = 3
	// TierLow is reserved for explicit exclusion and is never produced by
	// Prioritize today.
	TierLow Tier = 4
)

// ScoredMessage wraps a Message with its selection metadata. Instances are
// rebuilt on every context build and never persisted.
type ScoredMessage struct {
	Message
	Tier      Tier
	Relevance float64
	Tokens    int
}

// Prioritizer assigns tiers and produces the fully ordered candidate list.
type Prioritizer struct {
	scorer    Scorer
	estimator Estimator
}

// NewPrioritizer builds a prioritizer from a scorer and token estimator.
func NewPrioritizer(scorer Scorer, estimator Estimator) Prioritizer {
	return Prioritizer{scorer: scorer, estimator: estimator}
}

// recentTierCount is how many trailing messages are tiered HIGH on
// position alone.
const recentTierCount = 3

// Prioritize scores every non-empty message and sorts by
// (tier ascending, relevance descending, timestamp descending). The ordering
// guarantees that when the budget forces exclusion, more relevant and more
// recent candidates win among equals.
func (p Prioritizer) Prioritize(messages []Message, query string) []ScoredMessage {
	topics := ExtractTopics(messages)

	scored := make([]ScoredMessage, 0, len(messages))
	for i, msg := range messages {
		if msg.Content == "" {
			continue
		}

		relevance := p.scorer.Score(msg, query, topics)

		tier := TierMedium
		switch {
		case len(messages)-i <= recentTierCount:
			tier = TierHigh
		case highValueIntents[msg.Intent]:
			tier = TierHigh
		case relevance > 0.7:
			tier = TierHigh
		}

		scored = append(scored, ScoredMessage{
			Message:   msg,
			Tier:      tier,
			Relevance: relevance,
			Tokens:    p.estimator.Estimate(msg.Content),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Tier != scored[j].Tier {
			return scored[i].Tier < scored[j].Tier
		}
		if scored[i].Relevance != scored[j].Relevance {
			return scored[i].Relevance > scored[j].Relevance
		}
		return scored[i].Timestamp > scored[j].Timestamp
	})

	return scored
}
