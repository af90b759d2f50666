package chat

import (
	"context"

	"github.com/chaintalk-ai/chaintalk/internal/contextwindow"
	"github.com/chaintalk-ai/chaintalk/internal/store"
)

// Conversations lists a user's threads, optionally filtered by status.
func (s *Service) Conversations(ctx context.Context, userID, status string, limit int) ([]store.Conversation, error) {
	return s.store.UserConversations(ctx, userID, status, limit)
}

// Rename changes a thread's title after an ownership check.
func (s *Service) Rename(ctx context.Context, userID, conversationID, title string) error {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.store.UpdateConversationTitle(ctx, conversationID, title)
}

// Archive marks a thread archived after an ownership check.
func (s *Service) Archive(ctx context.Context, userID, conversationID string) error {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.store.ArchiveConversation(ctx, conversationID)
}

// Delete removes a thread and its messages, and drops any cached context
// selections built from it.
func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}
	s.manager.InvalidateCache(ctx)
	return nil
}

// Export returns a thread with its full ordered message log.
func (s *Service) Export(ctx context.Context, userID, conversationID string) (*store.Export, error) {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ExportConversation(ctx, conversationID)
}

// SearchHistory runs a full-text search over the user's message log.
func (s *Service) SearchHistory(ctx context.Context, userID, conversationID, query string, limit int) ([]store.Message, error) {
	return s.store.SearchMessages(ctx, userID, conversationID, query, limit)
}

// Stats aggregates the user's activity.
func (s *Service) Stats(ctx context.Context, userID string) (*store.UserStats, error) {
	return s.store.Stats(ctx, userID)
}

// ContextSummary reports what the context builder would select for a
// hypothetical next query on the thread.
func (s *Service) ContextSummary(ctx context.Context, userID, conversationID, query string) (*contextwindow.Summary, error) {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	summary := s.manager.Summary(ctx, conversationID, query)
	return &summary, nil
}

func (s *Service) owned(ctx context.Context, userID, conversationID string) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrNotOwner
	}
	return conv, nil
}
