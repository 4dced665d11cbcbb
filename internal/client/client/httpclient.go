package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
)

const maxErrorBody = 4 << 10

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for the API rooted at baseURL
// (e.g. "http://127.0.0.1:5000"). timeout bounds each request.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server address %q: scheme must be http or https", baseURL)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type linkRequest struct {
	Platform string `json:"platform"`
	Token    string `json:"token"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type tokensResponse struct {
	Tokens map[string]string `json:"tokens"`
}

type tokenResponse struct {
	Platform string `json:"platform"`
	Token    string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *HTTPClient) Register(ctx context.Context, email string, password []byte) error {
	return c.do(ctx, http.MethodPost, "/api/register", "", credentials{Email: email, Password: string(password)}, nil)
}

func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/login", "", credentials{Email: email, Password: string(password)}, &s); err != nil {
		return nil, err
	}
	if s.Token == "" {
		return nil, errors.New("login response carries no token")
	}
	return &s, nil
}

func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/logout", token, nil, nil)
}

func (c *HTTPClient) Profile(ctx context.Context, token string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Link(ctx context.Context, token, platform, linkToken string) error {
	return c.do(ctx, http.MethodPost, "/api/link", token, linkRequest{Platform: platform, Token: linkToken}, nil)
}

func (c *HTTPClient) Unlink(ctx context.Context, token, platform string) error {
	return c.do(ctx, http.MethodDelete, "/api/link/"+url.PathEscape(platform), token, nil, nil)
}

func (c *HTTPClient) Tokens(ctx context.Context, token string) (map[string]string, error) {
	var r tokensResponse
	if err := c.do(ctx, http.MethodGet, "/api/tokens", token, nil, &r); err != nil {
		return nil, err
	}
	if r.Tokens == nil {
		r.Tokens = map[string]string{}
	}
	return r.Tokens, nil
}

func (c *HTTPClient) Token(ctx context.Context, token, platform string) (string, error) {
	var r tokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/tokens/"+url.PathEscape(platform), token, nil, &r); err != nil {
		return "", err
	}
	return r.Token, nil
}

func (c *HTTPClient) ChangePassword(ctx context.Context, token string, current, next []byte) error {
	body := passwordRequest{CurrentPassword: string(current), NewPassword: string(next)}
	return c.do(ctx, http.MethodPut, "/api/password", token, body, nil)
}

// Ping checks the server health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		apiErr.Message = er.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
