package contextwindow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator_MinimumOne(t *testing.T) {
	est := NewEstimator(DefaultProfile())

	assert.Equal(t, 1, est.Estimate(""))
	assert.Equal(t, 1, est.Estimate("hi"))
}

func TestEstimator_CharsPerToken(t *testing.T) {
	est := NewEstimator(Profile{CharsPerToken: 4})

	assert.Equal(t, 25, est.Estimate(strings.Repeat("a", 100)))
	assert.Equal(t, 1, est.Estimate("abcd"))
}

func TestEstimator_ZeroRatioFallsBack(t *testing.T) {
	est := NewEstimator(Profile{CharsPerToken: 0})
	assert.Equal(t, 2, est.Estimate("12345678"))
}

func TestTokenBudget_Available(t *testing.T) {
	b := NewTokenBudget(Profile{MaxContextTokens: 16000, MaxOutputTokens: 1000, CharsPerToken: 4})

	assert.Equal(t, 16000-1000-defaultSystemPromptTokens-defaultSafetyMargin, b.Available())
	assert.Equal(t, 15000, b.HardLimit())
	require.NoError(t, b.Validate())
}

func TestTokenBudget_ValidateRejectsNegative(t *testing.T) {
	b := NewTokenBudget(Profile{MaxContextTokens: 500, MaxOutputTokens: 400, CharsPerToken: 4})

	require.Negative(t, b.Available())
	assert.Error(t, b.Validate())
}
