package contextwindow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var scoreNow = time.Unix(1_700_000_000, 0)

func fixedScorer() Scorer {
	return Scorer{Weights: DefaultWeights(), Now: func() time.Time { return scoreNow }}
}

func agedMessage(age time.Duration, role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: scoreNow.Add(-age).Unix()}
}

func TestScore_RecencyBuckets(t *testing.T) {
	s := fixedScorer()

	cases := []struct {
		age  time.Duration
		want float64
	}{
		{time.Minute, 0.4},
		{30 * time.Minute, 0.3},
		{5 * time.Hour, 0.2},
		{48 * time.Hour, 0.1},
	}
	for _, tc := range cases {
		msg := agedMessage(tc.age, RoleSystem, "xyzzy")
		assert.InDelta(t, tc.want, s.Score(msg, "unrelated", nil), 1e-9, "age %s", tc.age)
	}
}

func TestScore_LexicalOverlap(t *testing.T) {
	s := fixedScorer()
	msg := agedMessage(48*time.Hour, RoleSystem, "alpha beta")

	// {alpha, beta} vs {alpha, gamma}: 1 shared of 3 total → 1/3 * 0.5.
	got := s.Score(msg, "alpha gamma", nil)
	assert.InDelta(t, 0.1+0.5/3, got, 1e-9)
}

func TestScore_IntentBoost(t *testing.T) {
	s := fixedScorer()
	msg := agedMessage(48*time.Hour, RoleSystem, "xyzzy")
	msg.Intent = "price_query"

	assert.InDelta(t, 0.1+0.3, s.Score(msg, "unrelated", nil), 1e-9)
}

func TestScore_TopicContinuityCountsEachTopicOnce(t *testing.T) {
	s := fixedScorer()
	msg := agedMessage(48*time.Hour, RoleSystem, "bitcoin and bitcoin and defi")

	got := s.Score(msg, "unrelated", []string{"bitcoin", "defi", "nft"})
	assert.InDelta(t, 0.1+0.2+0.2, got, 1e-9)
}

func TestScore_RoleWeights(t *testing.T) {
	s := fixedScorer()

	user := agedMessage(48*time.Hour, RoleUser, "xyzzy")
	assert.InDelta(t, 0.2, s.Score(user, "unrelated", nil), 1e-9)

	shortReply := agedMessage(48*time.Hour, RoleAssistant, "ok")
	assert.InDelta(t, 0.1, s.Score(shortReply, "unrelated", nil), 1e-9)

	longReply := agedMessage(48*time.Hour, RoleAssistant, strings.Repeat("y ", 40))
	assert.InDelta(t, 0.2, s.Score(longReply, "unrelated", nil), 1e-9)
}

func TestScore_ClampedToOne(t *testing.T) {
	s := fixedScorer()
	msg := agedMessage(time.Minute, RoleUser, "bitcoin ethereum defi nft price today")
	msg.Intent = "price_query"

	got := s.Score(msg, "bitcoin ethereum defi nft price today", []string{"bitcoin", "ethereum", "defi", "nft"})
	assert.Equal(t, 1.0, got)
}

func TestScore_DeterministicForSameInputs(t *testing.T) {
	s := fixedScorer()
	msg := agedMessage(10*time.Minute, RoleUser, "how is ethereum staking doing")

	a := s.Score(msg, "ethereum staking", []string{"ethereum"})
	b := s.Score(msg, "ethereum staking", []string{"ethereum"})
	assert.Equal(t, a, b)
}
