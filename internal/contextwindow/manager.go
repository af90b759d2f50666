package contextwindow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chaintalk-ai/chaintalk/internal/metrics"
)

// HistorySource is the narrow view of the message store the manager needs.
// Implementations must return messages in ascending timestamp order.
type HistorySource interface {
	History(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// Manager is the context window manager: it fetches history, scores and
// selects messages under the token budget, assembles the final prompt, and
// memoizes selection results.
type Manager struct {
	src         HistorySource
	budget      TokenBudget
	estimator   Estimator
	prioritizer Prioritizer
	selector    Selector
	assembler   Assembler
	cache       *SelectionCache
	coord       *Coordinator

	mu         sync.RWMutex
	maxHistory int
}

const defaultMaxHistory = 50

// NewManager builds a manager for the given model profile. It refuses to
// start on a budget whose reservations exceed the context window; a silent
// zero budget at request time would be far worse than failing here.
// cache may be nil, which disables memoization.
func NewManager(profile Profile, src HistorySource, cache *SelectionCache) (*Manager, error) {
	budget := NewTokenBudget(profile)
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	estimator := NewEstimator(profile)
	return &Manager{
		src:         src,
		budget:      budget,
		estimator:   estimator,
		prioritizer: NewPrioritizer(NewScorer(), estimator),
		selector:    NewSelector(),
		assembler:   NewAssembler(estimator),
		cache:       cache,
		coord:       NewCoordinator(),
		maxHistory:  defaultMaxHistory,
	}, nil
}

// Budget returns the derived token budget.
func (m *Manager) Budget() TokenBudget {
	return m.budget
}

// WithConversationLock serializes a build-and-respond cycle for one
// conversation. See Coordinator.
func (m *Manager) WithConversationLock(conversationID string, fn func() error) error {
	return m.coord.WithLock(conversationID, fn)
}

// ActiveLocks reports the coordinator's lock count for observability.
func (m *Manager) ActiveLocks() int {
	return m.coord.Len()
}

// BuildContext produces the ordered message sequence for the generative
// backend. It always returns a usable sequence: when the store is
// unavailable the result degrades to [system, query] rather than failing
// the turn.
func (m *Manager) BuildContext(ctx context.Context, conversationID, query, systemPrompt string) []PromptMessage {
	history := m.fetchHistory(ctx, conversationID)
	selected, _ := m.buildSelection(ctx, history, query)
	return m.assembler.Assemble(systemPrompt, selected, query, m.budget.HardLimit())
}

// Summary reports what a context build for (conversation, query) selects,
// for the debug endpoint. It runs the same selection path as BuildContext,
// cache included.
func (m *Manager) Summary(ctx context.Context, conversationID, query string) Summary {
	history := m.fetchHistory(ctx, conversationID)
	selected, tokens := m.buildSelection(ctx, history, query)

	available := m.budget.Available()
	utilization := 0.0
	if available > 0 {
		utilization = float64(tokens) / float64(available) * 100
	}

	return Summary{
		MessagesAvailable:  len(history),
		MessagesSelected:   len(selected),
		EstimatedTokens:    tokens,
		TokenBudget:        available,
		UtilizationPercent: utilization,
	}
}

// InvalidateCache drops all memoized selections.
func (m *Manager) InvalidateCache(ctx context.Context) {
	if m.cache != nil {
		m.cache.Clear(ctx)
	}
}

// Configure adjusts runtime tunables. Zero values leave a setting unchanged.
func (m *Manager) Configure(maxMessages int, cacheTTL time.Duration) {
	if maxMessages > 0 {
		m.mu.Lock()
		m.maxHistory = maxMessages
		m.mu.Unlock()
	}
	if cacheTTL > 0 && m.cache != nil {
		m.cache.SetTTL(cacheTTL)
	}
}

func (m *Manager) fetchHistory(ctx context.Context, conversationID string) []Message {
	m.mu.RLock()
	limit := m.maxHistory
	m.mu.RUnlock()

	history, err := m.src.History(ctx, conversationID, limit)
	if err != nil {
		slog.Warn("context: history fetch failed, degrading to empty context",
			"conversation_id", conversationID, "error", err)
		metrics.ContextDegradedTotal.Inc()
		return nil
	}
	return history
}

// buildSelection returns the selected (role, content) pairs and their
// estimated token total, consulting the cache first.
func (m *Manager) buildSelection(ctx context.Context, history []Message, query string) ([]PromptMessage, int) {
	if len(history) == 0 {
		return nil, 0
	}

	key := SelectionKey(history, query)
	if m.cache != nil {
		if entry, ok := m.cache.Get(ctx, key); ok {
			metrics.ContextCacheHitsTotal.Inc()
			return entry.Context, entry.TokenCount
		}
		metrics.ContextCacheMissesTotal.Inc()
	}

	prioritized := m.prioritizer.Prioritize(history, query)
	selected := m.selector.Select(prioritized, m.budget.Available())

	tokens := 0
	context := make([]PromptMessage, 0, len(selected))
	for _, msg := range selected {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		context = append(context, PromptMessage{Role: msg.Role, Content: msg.Content})
		tokens += msg.Tokens
	}

	metrics.ContextTokensSelected.Observe(float64(tokens))

	if m.cache != nil {
		m.cache.Put(ctx, key, CacheEntry{
			Context:    context,
			CreatedAt:  time.Now().Unix(),
			TokenCount: tokens,
		})
	}

	return context, tokens
}
