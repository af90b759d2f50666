package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chaintalk-ai/chaintalk/internal/store"
)

// UserStore is the slice of the message store the auth layer needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (*store.User, error)
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// Service issues and validates token pairs. Refresh token ids live in
// Redis so a logout revokes every outstanding session immediately.
type Service struct {
	jwt         *JWTManager
	users       UserStore
	redisClient redis.Cmdable
}

func NewService(jwt *JWTManager, users UserStore, redisClient redis.Cmdable) *Service {
	return &Service{
		jwt:         jwt,
		users:       users,
		redisClient: redisClient,
	}
}

func refreshKey(userID, tokenID string) string {
	return fmt.Sprintf("refresh:%s:%s", userID, tokenID)
}

// Register creates an account and returns its first token pair.
func (s *Service) Register(ctx context.Context, email, name, password string) (*store.User, *TokenPair, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, name, hash)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.GenerateTokens(ctx, user.ID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies credentials and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, *TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, ErrBadCredentials
	}
	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrBadCredentials
	}

	pair, err := s.GenerateTokens(ctx, user.ID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	_ = s.users.TouchLastLogin(ctx, user.ID)
	return user, pair, nil
}

// ErrBadCredentials covers both unknown email and wrong password so the
// response does not leak which one failed.
var ErrBadCredentials = fmt.Errorf("auth: invalid credentials")

func (s *Service) GenerateTokens(ctx context.Context, userID, email string) (*TokenPair, error) {
	pair, tokenID, err := s.jwt.GenerateTokenPair(userID, email)
	if err != nil {
		return nil, err
	}

	err = s.redisClient.Set(ctx, refreshKey(userID, tokenID), "1", s.jwt.RefreshExpiry()).Err()
	if err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}
	return pair, nil
}

// RefreshTokens rotates a refresh token: the old id is revoked and a new
// pair is issued with the account's current email.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	key := refreshKey(claims.UserID, claims.TokenID)
	exists, err := s.redisClient.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("refresh token revoked")
	}
	s.redisClient.Del(ctx, key)

	var email string
	if user, err := s.users.GetUser(ctx, claims.UserID); err == nil {
		email = user.Email
	}
	return s.GenerateTokens(ctx, claims.UserID, email)
}

// Logout revokes every refresh token the user holds.
func (s *Service) Logout(ctx context.Context, userID string) error {
	pattern := refreshKey(userID, "*")
	iter := s.redisClient.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		s.redisClient.Del(ctx, iter.Val())
	}
	return iter.Err()
}

func (s *Service) ValidateAccessToken(token string) (*AccessClaims, error) {
	return s.jwt.ValidateAccessToken(token)
}
