package store

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// CreateConversation opens a new active thread for a user.
func (c *Client) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	now := time.Now().Unix()
	conv := Conversation{
		ID:           fmt.Sprintf("conv_%s_%d", userID, now),
		UserID:       userID,
		Title:        title,
		CreatedAt:    now,
		UpdatedAt:    now,
		MessageCount: 0,
		Status:       StatusActive,
	}
	if conv.Title == "" {
		conv.Title = "New conversation"
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collConversations+"/documents", nil, conv, nil); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return &conv, nil
}

// GetConversation fetches a single thread by id.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := c.do(ctx, http.MethodGet, "/collections/"+collConversations+"/documents/"+url.PathEscape(id), nil, nil, &conv)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching conversation: %w", err)
	}
	return &conv, nil
}

// UserConversations lists a user's threads, newest activity first. Status
// filters to "active" or "archived"; empty means both.
func (c *Client) UserConversations(ctx context.Context, userID, status string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := "user_id:=" + userID
	if status != "" {
		filter += " && status:=" + status
	}
	params := url.Values{
		"q":         {"*"},
		"filter_by": {filter},
		"sort_by":   {"updated_at:desc"},
		"per_page":  {strconv.Itoa(limit)},
	}
	res, err := search[Conversation](ctx, c, collConversations, params)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	out := make([]Conversation, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.Document)
	}
	return out, nil
}

// UpdateConversationTitle renames a thread.
func (c *Client) UpdateConversationTitle(ctx context.Context, id, title string) error {
	patch := map[string]any{"title": title, "updated_at": time.Now().Unix()}
	return c.patchConversation(ctx, id, patch)
}

// ArchiveConversation marks a thread archived. Archived threads no longer
// count against the active-conversation cap and are skipped on resume.
func (c *Client) ArchiveConversation(ctx context.Context, id string) error {
	patch := map[string]any{"status": StatusArchived, "updated_at": time.Now().Unix()}
	return c.patchConversation(ctx, id, patch)
}

func (c *Client) patchConversation(ctx context.Context, id string, patch map[string]any) error {
	path := "/collections/" + collConversations + "/documents/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, path, nil, patch, nil); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("updating conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a thread and its entire message log.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	params := url.Values{"filter_by": {"conversation_id:=" + id}}
	if err := c.do(ctx, http.MethodDelete, "/collections/"+collMessages+"/documents", params, nil, nil); err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting messages: %w", err)
	}
	path := "/collections/" + collConversations + "/documents/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return nil
}

// ExportConversation returns a thread together with its full ordered log.
func (c *Client) ExportConversation(ctx context.Context, id string) (*Export, error) {
	conv, err := c.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := c.History(ctx, id, exportMessageLimit)
	if err != nil {
		return nil, err
	}
	return &Export{Conversation: *conv, Messages: msgs}, nil
}

const exportMessageLimit = 1000
