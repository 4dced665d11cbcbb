package client

import (
	"context"
	"time"
)

// Session is an issued session token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Profile is the caller's identity and per-platform link status.
type Profile struct {
	Email          string          `json:"email"`
	LinkedAccounts map[string]bool `json:"linkedAccounts"`
}

type Client interface {
	Register(ctx context.Context, email string, password []byte) error
	Login(ctx context.Context, email string, password []byte) (*Session, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, token string) (*Profile, error)
	Link(ctx context.Context, token, platform, linkToken string) error
	Unlink(ctx context.Context, token, platform string) error
	Tokens(ctx context.Context, token string) (map[string]string, error)
	Token(ctx context.Context, token, platform string) (string, error)
	ChangePassword(ctx context.Context, token string, current, next []byte) error
	Ping(ctx context.Context) error
}
