package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	collConversations = "conversations"
	collMessages      = "messages"
	collUsers         = "users"
)

type fieldSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Facet    bool   `json:"facet,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Index    *bool  `json:"index,omitempty"`
}

type collectionSchema struct {
	Name                string        `json:"name"`
	Fields              []fieldSchema `json:"fields"`
	DefaultSortingField string        `json:"default_sorting_field,omitempty"`
}

func collectionSchemas() []collectionSchema {
	return []collectionSchema{
		{
			Name: collConversations,
			Fields: []fieldSchema{
				{Name: "user_id", Type: "string", Facet: true},
				{Name: "title", Type: "string"},
				{Name: "created_at", Type: "int64"},
				{Name: "updated_at", Type: "int64"},
				{Name: "message_count", Type: "int32"},
				{Name: "status", Type: "string", Facet: true},
			},
			DefaultSortingField: "updated_at",
		},
		{
			Name: collMessages,
			Fields: []fieldSchema{
				{Name: "conversation_id", Type: "string", Facet: true},
				{Name: "user_id", Type: "string", Facet: true},
				{Name: "role", Type: "string", Facet: true},
				{Name: "content", Type: "string"},
				{Name: "intent", Type: "string", Facet: true, Optional: true},
				{Name: "timestamp", Type: "int64"},
				{Name: "tokens", Type: "int32", Optional: true},
				{Name: "response_time_ms", Type: "int64", Optional: true},
				{Name: "cached", Type: "bool", Optional: true},
			},
			DefaultSortingField: "timestamp",
		},
		{
			Name: collUsers,
			Fields: []fieldSchema{
				{Name: "email", Type: "string"},
				{Name: "name", Type: "string"},
				{Name: "password_hash", Type: "string", Index: boolPtr(false), Optional: true},
				{Name: "created_at", Type: "int64"},
				{Name: "last_login_at", Type: "int64", Optional: true},
			},
			DefaultSortingField: "created_at",
		},
	}
}

func boolPtr(b bool) *bool { return &b }

const (
	ensureAttempts = 5
	ensureBackoff  = 2 * time.Second
)

// EnsureCollections creates any missing collections, retrying while the
// store finishes booting. Existing collections are left untouched.
func (c *Client) EnsureCollections(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= ensureAttempts; attempt++ {
		lastErr = c.ensureOnce(ctx)
		if lastErr == nil {
			return nil
		}
		slog.Warn("store: collection setup failed, retrying",
			"attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ensureBackoff):
		}
	}
	return fmt.Errorf("ensuring collections: %w", lastErr)
}

func (c *Client) ensureOnce(ctx context.Context) error {
	for _, schema := range collectionSchemas() {
		err := c.do(ctx, http.MethodGet, "/collections/"+schema.Name, nil, nil, nil)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return err
		}
		if err := c.do(ctx, http.MethodPost, "/collections", nil, schema, nil); err != nil {
			return err
		}
		slog.Info("store: created collection", "name", schema.Name)
	}
	return nil
}
