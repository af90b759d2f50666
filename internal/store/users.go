package store

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// CreateUser registers an account. Fails with ErrEmailTaken when the email
// is already registered.
func (c *Client) CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error) {
	if existing, err := c.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}
	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collUsers+"/documents", nil, user, nil); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &user, nil
}

// ErrEmailTaken marks a registration against an existing email.
var ErrEmailTaken = fmt.Errorf("store: email already registered")

// GetUser fetches an account by id.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/collections/"+collUsers+"/documents/"+url.PathEscape(id), nil, nil, &user)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail looks up an account by exact email match.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	params := url.Values{
		"q":         {"*"},
		"filter_by": {"email:=" + email},
		"per_page":  {"1"},
	}
	res, err := search[User](ctx, c, collUsers, params)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, ErrNotFound
	}
	return &res.Hits[0].Document, nil
}

// TouchLastLogin records a successful login.
func (c *Client) TouchLastLogin(ctx context.Context, id string) error {
	patch := map[string]any{"last_login_at": time.Now().Unix()}
	path := "/collections/" + collUsers + "/documents/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, path, nil, patch, nil); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}
