package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/client/client"
)

// fakeClient implements client.Client for service unit tests.
type fakeClient struct {
	RegisterErr error
	LoginRet    *client.Session
	LoginErr    error
	LogoutErr   error
	ProfileRet  *client.Profile
	ProfileErr  error
	LinkErr     error
	UnlinkErr   error
	TokensRet   map[string]string
	TokensErr   error
	TokenRet    string
	TokenErr    error
	PasswordErr error
	PingErr     error

	LastToken    string
	LastPlatform string
	LogoutCalls  int
}

func (f *fakeClient) Register(ctx context.Context, email string, password []byte) error {
	return f.RegisterErr
}

func (f *fakeClient) Login(ctx context.Context, email string, password []byte) (*client.Session, error) {
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	if f.LoginRet != nil {
		return f.LoginRet, nil
	}
	return &client.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeClient) Logout(ctx context.Context, token string) error {
	f.LogoutCalls++
	f.LastToken = token
	return f.LogoutErr
}

func (f *fakeClient) Profile(ctx context.Context, token string) (*client.Profile, error) {
	f.LastToken = token
	return f.ProfileRet, f.ProfileErr
}

func (f *fakeClient) Link(ctx context.Context, token, platform, linkToken string) error {
	f.LastToken, f.LastPlatform = token, platform
	return f.LinkErr
}

func (f *fakeClient) Unlink(ctx context.Context, token, platform string) error {
	f.LastToken, f.LastPlatform = token, platform
	return f.UnlinkErr
}

func (f *fakeClient) Tokens(ctx context.Context, token string) (map[string]string, error) {
	f.LastToken = token
	return f.TokensRet, f.TokensErr
}

func (f *fakeClient) Token(ctx context.Context, token, platform string) (string, error) {
	f.LastToken, f.LastPlatform = token, platform
	return f.TokenRet, f.TokenErr
}

func (f *fakeClient) ChangePassword(ctx context.Context, token string, current, next []byte) error {
	f.LastToken = token
	return f.PasswordErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }
