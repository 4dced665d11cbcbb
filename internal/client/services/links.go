package services

import (
	"context"

	"github.com/dmitrijs2005/linkkeeper/internal/client/client"
)

// LinkService manages third-party platform links of the logged-in account.
type LinkService interface {
	Profile(ctx context.Context) (*client.Profile, error)
	Link(ctx context.Context, platform, token string) error
	Unlink(ctx context.Context, platform string) error
	Tokens(ctx context.Context) (map[string]string, error)
	Token(ctx context.Context, platform string) (string, error)
}

type linkService struct {
	client  client.Client
	session *Session
}

func NewLinkService(c client.Client, s *Session) LinkService {
	return &linkService{client: c, session: s}
}

func (l *linkService) Profile(ctx context.Context) (*client.Profile, error) {
	token, err := l.session.Token()
	if err != nil {
		return nil, err
	}
	p, err := l.client.Profile(ctx, token)
	return p, dropOnUnauthorized(l.session, err)
}

func (l *linkService) Link(ctx context.Context, platform, linkToken string) error {
	token, err := l.session.Token()
	if err != nil {
		return err
	}
	return dropOnUnauthorized(l.session, l.client.Link(ctx, token, platform, linkToken))
}

func (l *linkService) Unlink(ctx context.Context, platform string) error {
	token, err := l.session.Token()
	if err != nil {
		return err
	}
	return dropOnUnauthorized(l.session, l.client.Unlink(ctx, token, platform))
}

func (l *linkService) Tokens(ctx context.Context) (map[string]string, error) {
	token, err := l.session.Token()
	if err != nil {
		return nil, err
	}
	t, err := l.client.Tokens(ctx, token)
	return t, dropOnUnauthorized(l.session, err)
}

func (l *linkService) Token(ctx context.Context, platform string) (string, error) {
	token, err := l.session.Token()
	if err != nil {
		return "", err
	}
	t, err := l.client.Token(ctx, token, platform)
	return t, dropOnUnauthorized(l.session, err)
}
