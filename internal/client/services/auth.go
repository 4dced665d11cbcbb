package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/linkkeeper/internal/client/client"
)

// AuthService defines authentication operations for the CLI.
type AuthService interface {
	Register(ctx context.Context, email string, password []byte) error
	Login(ctx context.Context, email string, password []byte) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, current, next []byte) error
	Ping(ctx context.Context) error
}

type authService struct {
	client  client.Client
	session *Session
}

// NewAuthService constructs an AuthService bound to the given API client
// and session.
func NewAuthService(c client.Client, s *Session) AuthService {
	return &authService{client: c, session: s}
}

func (a *authService) Register(ctx context.Context, email string, password []byte) error {
	return a.client.Register(ctx, email, password)
}

// Login replaces the current session on success and leaves it untouched
// otherwise.
func (a *authService) Login(ctx context.Context, email string, password []byte) error {
	s, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.session.set(email, s.Token, s.ExpiresAt)
	return nil
}

// Logout asks the server to revoke the token and always drops it locally.
// A server without revocation answers 404, which is not an error here.
func (a *authService) Logout(ctx context.Context) error {
	token, err := a.session.Token()
	if err != nil {
		a.session.clear()
		return nil
	}
	defer a.session.clear()

	err = a.client.Logout(ctx, token)
	if err != nil && !errors.Is(err, client.ErrNotFound) && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	return nil
}

func (a *authService) ChangePassword(ctx context.Context, current, next []byte) error {
	token, err := a.session.Token()
	if err != nil {
		return err
	}
	return dropOnUnauthorized(a.session, a.client.ChangePassword(ctx, token, current, next))
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// dropOnUnauthorized clears the session when the server no longer accepts
// its token.
func dropOnUnauthorized(s *Session, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		s.clear()
	}
	return err
}
