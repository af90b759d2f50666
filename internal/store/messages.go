package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound marks a lookup for a document that does not exist.
var ErrNotFound = errors.New("store: not found")

// MessageOpts carries the optional metadata recorded with a turn.
type MessageOpts struct {
	Intent         string
	ResponseTimeMS int64
	Cached         bool
}

// AddMessage appends one turn to a conversation and bumps the thread's
// message count and activity timestamp.
func (c *Client) AddMessage(ctx context.Context, conversationID, userID, role, content string, opts MessageOpts) (*Message, error) {
	now := time.Now().Unix()
	msg := Message{
		ID:             fmt.Sprintf("msg_%s_%d_%s", conversationID, now, role),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		Intent:         opts.Intent,
		Timestamp:      now,
		Tokens:         len(content) / 4,
		ResponseTimeMS: opts.ResponseTimeMS,
		Cached:         opts.Cached,
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collMessages+"/documents", nil, msg, nil); err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}

	// The message already landed; a stale counter is recoverable.
	if err := c.bumpConversation(ctx, conversationID, now); err != nil {
		slog.Warn("store: conversation stats update failed",
			"conversation_id", conversationID, "error", err)
	}
	return &msg, nil
}

func (c *Client) bumpConversation(ctx context.Context, conversationID string, now int64) error {
	conv, err := c.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	patch := map[string]any{
		"message_count": conv.MessageCount + 1,
		"updated_at":    now,
	}
	return c.patchConversation(ctx, conversationID, patch)
}

// History returns a conversation's messages in ascending timestamp order.
// When limit is positive only the most recent limit messages are returned,
// still oldest first.
func (c *Client) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	perPage := limit
	if perPage <= 0 || perPage > exportMessageLimit {
		perPage = exportMessageLimit
	}
	params := url.Values{
		"q":         {"*"},
		"filter_by": {"conversation_id:=" + conversationID},
		"sort_by":   {"timestamp:desc"},
		"per_page":  {strconv.Itoa(perPage)},
	}
	res, err := search[Message](ctx, c, collMessages, params)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	// Newest-first fetch bounded by limit, then reversed to restore
	// chronological reading order.
	out := make([]Message, len(res.Hits))
	for i, hit := range res.Hits {
		out[len(res.Hits)-1-i] = hit.Document
	}
	return out, nil
}

// SearchMessages runs a full-text search over a user's message log,
// newest first. conversationID narrows the search to one thread.
func (c *Client) SearchMessages(ctx context.Context, userID, conversationID, query string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := "user_id:=" + userID
	if conversationID != "" {
		filter += " && conversation_id:=" + conversationID
	}
	params := url.Values{
		"q":         {query},
		"query_by":  {"content"},
		"filter_by": {filter},
		"sort_by":   {"timestamp:desc"},
		"per_page":  {strconv.Itoa(limit)},
	}
	res, err := search[Message](ctx, c, collMessages, params)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	out := make([]Message, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.Document)
	}
	return out, nil
}

// Stats counts a user's threads and turns.
func (c *Client) Stats(ctx context.Context, userID string) (*UserStats, error) {
	countParams := func(coll string) (int, error) {
		// Only the found count matters; fetch the minimum page.
		params := url.Values{
			"q":         {"*"},
			"filter_by": {"user_id:=" + userID},
			"per_page":  {"1"},
		}
		res, err := search[struct{}](ctx, c, coll, params)
		if err != nil {
			return 0, err
		}
		return res.Found, nil
	}

	convs, err := countParams(collConversations)
	if err != nil {
		return nil, fmt.Errorf("counting conversations: %w", err)
	}
	msgs, err := countParams(collMessages)
	if err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}
	return &UserStats{Conversations: convs, Messages: msgs}, nil
}
