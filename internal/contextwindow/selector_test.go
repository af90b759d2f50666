package contextwindow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// budgetHistory builds a 30-message conversation where the last recentCount
// messages are fresh and the rest are hours old. Content is sized to 100
// chars (25 tokens at the default 4 chars/token).
func budgetHistory(n, recentCount int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		age := 6 * time.Hour
		if i >= n-recentCount {
			age = time.Minute
		}
		content := fmt.Sprintf("padded conversation turn number %02d ", i)
		for len(content) < 100 {
			content += "x"
		}
		msgs[i] = Message{
			ID:        fmt.Sprintf("m%02d", i),
			Role:      RoleUser,
			Content:   content[:100],
			Timestamp: scoreNow.Add(-age).Unix() + int64(i),
		}
	}
	return msgs
}

func TestSelect_EmptyInput(t *testing.T) {
	assert.Empty(t, NewSelector().Select(nil, 1000))
}

func TestSelect_RecencyGuaranteePlusRelevanceFill(t *testing.T) {
	// 30 messages, 25 tokens each, budget for exactly 8.
	msgs := budgetHistory(30, 6)
	prioritized := testPrioritizer().Prioritize(msgs, "unrelated query")

	selected := NewSelector().Select(prioritized, 200)
	require.Len(t, selected, 8)

	// The 6 most recent must all be present.
	got := make(map[string]bool, len(selected))
	for _, sm := range selected {
		got[sm.ID] = true
	}
	for i := 24; i < 30; i++ {
		assert.True(t, got[fmt.Sprintf("m%02d", i)], "recent message m%02d missing", i)
	}

	// Chronological order.
	for i := 1; i < len(selected); i++ {
		assert.LessOrEqual(t, selected[i-1].Timestamp, selected[i].Timestamp)
	}
}

func TestSelect_RelevanceThresholdSkipsNoise(t *testing.T) {
	// Two-day-old system notes score 0.1, below the 0.3 threshold.
	msgs := []Message{
		{ID: "old", Role: RoleSystem, Content: "archived note", Timestamp: scoreNow.Add(-72 * time.Hour).Unix()},
		{ID: "new", Role: RoleUser, Content: "what is bitcoin", Timestamp: scoreNow.Add(-time.Minute).Unix()},
	}
	prioritized := testPrioritizer().Prioritize(msgs, "tell me about bitcoin")

	selected := NewSelector().Select(prioritized, 10_000)
	require.Len(t, selected, 2)

	// "old" is tier HIGH by position (last 3) so the recency pass admits it
	// despite its low score; a genuinely old low-score message is dropped.
	older := append([]Message{
		{ID: "noise1", Role: RoleSystem, Content: "stale one", Timestamp: scoreNow.Add(-90 * time.Hour).Unix()},
		{ID: "noise2", Role: RoleSystem, Content: "stale two", Timestamp: scoreNow.Add(-80 * time.Hour).Unix()},
	}, msgs...)
	prioritized = testPrioritizer().Prioritize(older, "tell me about bitcoin")
	selected = NewSelector().Select(prioritized, 10_000)

	ids := make(map[string]bool)
	for _, sm := range selected {
		ids[sm.ID] = true
	}
	assert.False(t, ids["noise1"], "below-threshold message admitted")
}

func TestSelect_MaxTotalCap(t *testing.T) {
	msgs := budgetHistory(40, 40) // everything fresh and above threshold
	prioritized := testPrioritizer().Prioritize(msgs, "unrelated query")

	selected := NewSelector().Select(prioritized, 1_000_000)
	assert.Len(t, selected, NewSelector().MaxTotal)
}

func TestSelect_BudgetSmallerThanOneMessage(t *testing.T) {
	msgs := budgetHistory(5, 5)
	prioritized := testPrioritizer().Prioritize(msgs, "unrelated query")

	selected := NewSelector().Select(prioritized, 3)
	assert.Empty(t, selected)
}

func TestSelect_DeterministicForSameInputs(t *testing.T) {
	msgs := budgetHistory(30, 6)
	prioritized := testPrioritizer().Prioritize(msgs, "some query")

	a := NewSelector().Select(prioritized, 200)
	b := NewSelector().Select(prioritized, 200)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}
}
