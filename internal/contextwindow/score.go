package contextwindow

import (
	"strings"
	"time"
)

// Weights parameterizes the relevance heuristic. Keeping the policy in an
// explicit struct makes it swappable and testable apart from selection.
type Weights struct {
	RecencyBurst float64 // age < 5 minutes
	RecencyHour  float64 // age < 1 hour
	RecencyDay   float64 // age < 1 day
	RecencyStale float64 // everything older

	Overlap float64 // scale for Jaccard similarity of query vs content words

	IntentBoost float64 // message carries a high-value intent label
	TopicBoost  float64 // per extracted topic present in the content

	RoleUser       float64
	RoleAssistant  float64 // only for substantive replies
	MinAnswerChars int     // assistant content length gate
}

// DefaultWeights returns the production scoring policy.
func DefaultWeights() Weights {
	return Weights{
		RecencyBurst:   0.4,
		RecencyHour:    0.3,
		RecencyDay:     0.2,
		RecencyStale:   0.1,
		Overlap:        0.5,
		IntentBoost:    0.3,
		TopicBoost:     0.2,
		RoleUser:       0.1,
		RoleAssistant:  0.1,
		MinAnswerChars: 50,
	}
}

// highValueIntents mark messages the classifier tagged as domain-critical.
var highValueIntents = map[string]bool{
	"price_query": true,
	"web3_chat":   true,
}

// Scorer computes a relevance score in [0,1] for a message against the
// current query and the extracted conversation topics. Pure given a fixed
// clock, so recomputation is deterministic for identical inputs.
type Scorer struct {
	Weights Weights
	Now     func() time.Time
}

// NewScorer builds a scorer with the default policy and wall clock.
func NewScorer() Scorer {
	return Scorer{Weights: DefaultWeights(), Now: time.Now}
}

// Score is additive over the weight components and clamped to 1.0.
func (s Scorer) Score(msg Message, query string, topics []string) float64 {
	w := s.Weights
	content := strings.ToLower(msg.Content)
	score := 0.0

	age := s.Now().Unix() - msg.Timestamp
	switch {
	case age < 300:
		score += w.RecencyBurst
	case age < 3600:
		score += w.RecencyHour
	case age < 86400:
		score += w.RecencyDay
	default:
		score += w.RecencyStale
	}

	score += jaccard(strings.ToLower(query), content) * w.Overlap

	if highValueIntents[msg.Intent] {
		score += w.IntentBoost
	}

	for _, topic := range topics {
		if strings.Contains(content, topic) {
			score += w.TopicBoost
		}
	}

	switch msg.Role {
	case RoleUser:
		score += w.RoleUser
	case RoleAssistant:
		if len(content) > w.MinAnswerChars {
			score += w.RoleAssistant
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// jaccard returns |a ∩ b| / |a ∪ b| over whitespace-split word sets.
func jaccard(a, b string) float64 {
	aw := wordSet(a)
	bw := wordSet(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}

	inter := 0
	for w := range aw {
		if bw[w] {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	union := len(aw) + len(bw) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
