package contextwindow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrioritizer() Prioritizer {
	return NewPrioritizer(fixedScorer(), NewEstimator(DefaultProfile()))
}

func historyOf(n int, age time.Duration) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Message{
			ID:        fmt.Sprintf("m%02d", i),
			Role:      RoleUser,
			Content:   fmt.Sprintf("filler message %d", i),
			Timestamp: scoreNow.Add(-age).Unix() + int64(i),
		}
	}
	return msgs
}

func TestPrioritize_LastThreeAreHigh(t *testing.T) {
	msgs := historyOf(6, 48*time.Hour)
	scored := testPrioritizer().Prioritize(msgs, "unrelated query")

	require.Len(t, scored, 6)
	tiers := make(map[string]Tier, 6)
	for _, sm := range scored {
		tiers[sm.ID] = sm.Tier
	}
	assert.Equal(t, TierHigh, tiers["m03"])
	assert.Equal(t, TierHigh, tiers["m04"])
	assert.Equal(t, TierHigh, tiers["m05"])
	assert.Equal(t, TierMedium, tiers["m00"])
	assert.Equal(t, TierMedium, tiers["m02"])
}

func TestPrioritize_HighValueIntentOutranksPosition(t *testing.T) {
	msgs := historyOf(10, 48*time.Hour)
	msgs[0].Intent = "price_query"

	scored := testPrioritizer().Prioritize(msgs, "unrelated query")
	for _, sm := range scored {
		if sm.ID == "m00" {
			assert.Equal(t, TierHigh, sm.Tier)
			return
		}
	}
	t.Fatal("m00 missing from prioritized list")
}

func TestPrioritize_HighRelevanceIsHighTier(t *testing.T) {
	msgs := historyOf(10, 48*time.Hour)
	// Fresh user message with full lexical overlap: 0.4 + 0.5 + 0.1 > 0.7.
	msgs[2].Content = "ethereum gas fees right now"
	msgs[2].Timestamp = scoreNow.Add(-time.Minute).Unix()

	scored := testPrioritizer().Prioritize(msgs, "ethereum gas fees right now")
	for _, sm := range scored {
		if sm.ID == "m02" {
			assert.Equal(t, TierHigh, sm.Tier)
			assert.Greater(t, sm.Relevance, 0.7)
			return
		}
	}
	t.Fatal("m02 missing from prioritized list")
}

func TestPrioritize_SkipsEmptyContent(t *testing.T) {
	msgs := historyOf(4, time.Hour)
	msgs[1].Content = ""

	scored := testPrioritizer().Prioritize(msgs, "query")
	assert.Len(t, scored, 3)
}

func TestPrioritize_TieBreakOrdering(t *testing.T) {
	msgs := historyOf(8, 48*time.Hour)
	scored := testPrioritizer().Prioritize(msgs, "unrelated query")

	for i := 1; i < len(scored); i++ {
		prev, cur := scored[i-1], scored[i]
		require.LessOrEqual(t, prev.Tier, cur.Tier)
		if prev.Tier == cur.Tier {
			if prev.Relevance == cur.Relevance {
				assert.GreaterOrEqual(t, prev.Timestamp, cur.Timestamp)
			} else {
				assert.Greater(t, prev.Relevance, cur.Relevance)
			}
		}
	}
}

func TestPrioritize_TokensEstimated(t *testing.T) {
	msgs := historyOf(1, time.Hour)
	scored := testPrioritizer().Prioritize(msgs, "query")

	require.Len(t, scored, 1)
	assert.GreaterOrEqual(t, scored[0].Tokens, 1)
}
