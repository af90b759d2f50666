// Package chat orchestrates a conversation turn: intent routing, context
// assembly, generation and persistence.
package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chaintalk-ai/chaintalk/internal/cache"
	"github.com/chaintalk-ai/chaintalk/internal/config"
	"github.com/chaintalk-ai/chaintalk/internal/contextwindow"
	"github.com/chaintalk-ai/chaintalk/internal/intent"
	"github.com/chaintalk-ai/chaintalk/internal/llm"
	"github.com/chaintalk-ai/chaintalk/internal/metrics"
	"github.com/chaintalk-ai/chaintalk/internal/store"
)

// ConversationStore is the slice of the message store the chat layer uses.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title string) (*store.Conversation, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	UserConversations(ctx context.Context, userID, status string, limit int) ([]store.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	ArchiveConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
	ExportConversation(ctx context.Context, id string) (*store.Export, error)
	AddMessage(ctx context.Context, conversationID, userID, role, content string, opts store.MessageOpts) (*store.Message, error)
	History(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
	SearchMessages(ctx context.Context, userID, conversationID, query string, limit int) ([]store.Message, error)
	Stats(ctx context.Context, userID string) (*store.UserStats, error)
}

// Completer is the generative backend.
type Completer interface {
	Complete(ctx context.Context, prompt []contextwindow.PromptMessage) (string, error)
	Stream(ctx context.Context, prompt []contextwindow.PromptMessage) (<-chan llm.Chunk, error)
}

// PriceAnswerer resolves price questions without the generative backend.
type PriceAnswerer interface {
	Answer(ctx context.Context, message string) string
}

const defaultSystemPrompt = "You are ChainTalk, a concise Web3 assistant. " +
	"You explain blockchain, DeFi, NFTs and cryptocurrency concepts accurately. " +
	"If you are unsure, say so instead of guessing."

const offTopicReply = "I'm focused on Web3, blockchain and cryptocurrency topics. " +
	"Ask me about coins, DeFi, NFTs, wallets or anything on-chain."

// Service runs conversation turns end to end.
type Service struct {
	store   ConversationStore
	cache   *cache.Manager
	llm     Completer
	prices  PriceAnswerer
	manager *contextwindow.Manager

	systemPrompt        string
	responseCacheTTL    time.Duration
	conversationTimeout time.Duration
	keepConversations   int
}

// NewService wires the chat pipeline together.
func NewService(
	st ConversationStore,
	cacheManager *cache.Manager,
	completer Completer,
	priceSvc PriceAnswerer,
	manager *contextwindow.Manager,
	cfg config.ChatConfig,
) *Service {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return &Service{
		store:               st,
		cache:               cacheManager,
		llm:                 completer,
		prices:              priceSvc,
		manager:             manager,
		systemPrompt:        prompt,
		responseCacheTTL:    cfg.ResponseCacheTTL,
		conversationTimeout: cfg.ConversationTimeout,
		keepConversations:   cfg.KeepConversations,
	}
}

// HistorySource adapts the message store to the context window manager.
type HistorySource struct {
	Store ConversationStore
}

func (h HistorySource) History(ctx context.Context, conversationID string, limit int) ([]contextwindow.Message, error) {
	msgs, err := h.Store.History(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]contextwindow.Message, len(msgs))
	for i, m := range msgs {
		out[i] = contextwindow.Message{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Intent:    m.Intent,
		}
	}
	return out, nil
}

// Result is the outcome of one conversation turn.
type Result struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Intent         string `json:"intent"`
	Cached         bool   `json:"cached"`
	ResponseTimeMS int64  `json:"response_time_ms"`
}

// HandleChat runs one full turn. Turns on the same conversation are
// serialized so interleaved requests cannot corrupt the history order.
func (s *Service) HandleChat(ctx context.Context, userID, conversationID, message string) (*Result, error) {
	conv, err := s.resolveConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	detected := intent.Classify(message)
	metrics.ChatRequestsTotal.WithLabelValues(detected).Inc()

	start := time.Now()
	var result *Result
	err = s.manager.WithConversationLock(conv.ID, func() error {
		reply, cached, err := s.answer(ctx, conv.ID, message, detected)
		if err != nil {
			return err
		}

		s.persistTurn(ctx, conv.ID, userID, message, reply, detected, cached, time.Since(start))

		result = &Result{
			ConversationID: conv.ID,
			Reply:          reply,
			Intent:         detected,
			Cached:         cached,
			ResponseTimeMS: time.Since(start).Milliseconds(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// answer routes a message by intent and produces the assistant reply.
func (s *Service) answer(ctx context.Context, conversationID, message, detected string) (reply string, cached bool, err error) {
	switch detected {
	case intent.PriceQuery:
		return s.prices.Answer(ctx, message), false, nil
	case intent.NonWeb3:
		return offTopicReply, false, nil
	}

	cacheKey, cacheable := responseCacheKey(message)
	if cacheable {
		if hit, ok := s.cache.Get(ctx, cacheKey); ok {
			return hit, true, nil
		}
	}

	prompt := s.manager.BuildContext(ctx, conversationID, message, s.systemPrompt)
	reply, err = s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", false, fmt.Errorf("completing chat: %w", err)
	}

	if cacheable {
		s.cache.Set(ctx, cacheKey, reply, s.responseCacheTTL)
	}
	return reply, false, nil
}

// persistTurn writes both sides of the exchange. Storage failures degrade
// to a log line; the user still gets their reply.
func (s *Service) persistTurn(ctx context.Context, conversationID, userID, message, reply, detected string, cached bool, elapsed time.Duration) {
	if _, err := s.store.AddMessage(ctx, conversationID, userID, contextwindow.RoleUser, message, store.MessageOpts{Intent: detected}); err != nil {
		slog.Warn("chat: persisting user message failed", "conversation_id", conversationID, "error", err)
	}
	opts := store.MessageOpts{
		Intent:         detected,
		ResponseTimeMS: elapsed.Milliseconds(),
		Cached:         cached,
	}
	if _, err := s.store.AddMessage(ctx, conversationID, userID, contextwindow.RoleAssistant, reply, opts); err != nil {
		slog.Warn("chat: persisting assistant message failed", "conversation_id", conversationID, "error", err)
	}
}

// resolveConversation finds the thread a turn belongs to. An explicit id
// must exist and belong to the user. Without one, the most recent active
// thread is resumed if it saw activity within the conversation timeout;
// otherwise a new thread is opened and old ones beyond the cap archived.
func (s *Service) resolveConversation(ctx context.Context, userID, conversationID string) (*store.Conversation, error) {
	if conversationID != "" {
		conv, err := s.store.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv.UserID != userID {
			return nil, ErrNotOwner
		}
		return conv, nil
	}

	active, err := s.store.UserConversations(ctx, userID, store.StatusActive, s.keepConversations+1)
	if err == nil && len(active) > 0 {
		newest := active[0]
		if time.Since(time.Unix(newest.UpdatedAt, 0)) < s.conversationTimeout {
			return &newest, nil
		}
	}

	conv, err := s.store.CreateConversation(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("opening conversation: %w", err)
	}

	// Keep at most keepConversations active threads per user.
	if len(active) >= s.keepConversations {
		for _, old := range active[s.keepConversations-1:] {
			if err := s.store.ArchiveConversation(ctx, old.ID); err != nil {
				slog.Warn("chat: archiving old conversation failed", "conversation_id", old.ID, "error", err)
			}
		}
	}
	return conv, nil
}

// ErrNotOwner marks access to a conversation owned by another user.
var ErrNotOwner = fmt.Errorf("chat: conversation belongs to another user")

var cacheablePrefixes = []string{
	"what is", "what are", "how does", "explain", "define",
	"difference between", "benefits of", "risks of", "tell me about",
}

// responseCacheKey returns the cache key for general-knowledge questions
// whose answers do not depend on conversation state.
func responseCacheKey(message string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, prefix := range cacheablePrefixes {
		if strings.HasPrefix(normalized, prefix) {
			sum := sha256.Sum256([]byte(normalized))
			return "chat:resp:" + hex.EncodeToString(sum[:]), true
		}
	}
	return "", false
}
