package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/cryptox"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/auth"
	"github.com/dmitrijs2005/linkkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/linkkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "rest-test-secret"

type testServer struct {
	*httptest.Server
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, opts ...auth.Option) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := repomanager.Open(ctx, dbx.SQLite, filepath.Join(t.TempDir(), "rest.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm, err := repomanager.NewRepositoryManager(dbx.SQLite)
	require.NoError(t, err)
	require.NoError(t, rm.RunMigrations(ctx, db))

	tokens, err := auth.NewTokenManager([]byte(testSecret), time.Hour, opts...)
	require.NoError(t, err)

	hasher := cryptox.NewPooledHasher(cryptox.NewBcryptHasher(bcrypt.MinCost), 2)
	svc := services.NewAccountService(db, rm, hasher, tokens, nil, logging.Nop())

	s := NewServer("127.0.0.1:0", logging.Nop(), svc, tokens, db, metrics.NewMetrics(), nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &testServer{Server: ts, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (ts *testServer) register(t *testing.T, email, password string) {
	t.Helper()
	code, body := ts.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, code, body)
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	code, body := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, code, body)
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)
	return "Bearer " + tok
}

func TestAliceLinksTikTokAndSeesProfile(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "alice@x.com", "password": "s3cretpw"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "alice@x.com", body["email"])
	assert.NotZero(t, body["id"])
	assert.NotContains(t, body, "password")

	code, body = ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "alice@x.com", "password": "s3cretpw"})
	require.Equal(t, http.StatusOK, code)
	token := "Bearer " + body["token"].(string)

	exp, err := time.Parse(time.RFC3339, body["expiresAt"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	code, body = ts.do(t, http.MethodPost, "/api/link", token, map[string]string{"platform": "tiktok", "token": "tt-123"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "tiktok", body["platform"])

	code, body = ts.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"email": "alice@x.com",
		"linkedAccounts": map[string]any{
			"instagram": false,
			"tiktok":    true,
			"youtube":   false,
		},
	}, body)
}

func TestProfileBeforeAndAfterLinkingInstagram(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "alice@x.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, code)
	token := ts.login(t, "alice@x.com", "secret123")

	code, body := ts.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"email": "alice@x.com",
		"linkedAccounts": map[string]any{
			"instagram": false,
			"tiktok":    false,
			"youtube":   false,
		},
	}, body)

	code, body = ts.do(t, http.MethodPost, "/api/link", token, map[string]string{"platform": "instagram", "token": "abc"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = ts.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"instagram": true,
		"tiktok":    false,
		"youtube":   false,
	}, body["linkedAccounts"])

	code, body = ts.do(t, http.MethodGet, "/api/tokens/Instagram", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "instagram", body["platform"])
	assert.Equal(t, "abc", body["token"])
}

func TestBobWrongPasswordAndUnknownAccountLookAlike(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "bob@x.com", "bobspass")

	code1, body1 := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "bob@x.com", "password": "wrong"})
	code2, body2 := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "nobody@x.com", "password": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, code1)
	assert.Equal(t, code1, code2)
	assert.Equal(t, map[string]any{"error": "invalid credentials"}, body1)
	assert.Equal(t, body1, body2)
}

func TestRegister_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@x.com", "s3cretpw")

	code, body := ts.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "alice@x.com", "password": "other"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "user with this email already exists", body["error"])

	code, body = ts.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "carol@x.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email and password are required", body["error"])

	code, body = ts.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "carol", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "malformed email", body["error"])

	code, body = ts.do(t, http.MethodPost, "/api/register", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid json", body["error"])
}

func TestLogin_MissingFields(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email and password are required", body["error"])
}

func TestAuthGate(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@x.com", "s3cretpw")
	bearer := ts.login(t, "alice@x.com", "s3cretpw")
	raw := strings.TrimPrefix(bearer, "Bearer ")

	// a token that expired an hour ago, signed with the right secret
	past, err := auth.NewTokenManager([]byte(testSecret), time.Hour,
		auth.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	require.NoError(t, err)
	expired, _, err := past.Issue(1, "alice@x.com")
	require.NoError(t, err)

	forger, err := auth.NewTokenManager([]byte("not-the-secret"), time.Hour)
	require.NoError(t, err)
	forged, _, err := forger.Issue(1, "alice@x.com")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bearer", bearer, http.StatusOK},
		{"lowercase scheme", "bearer " + raw, http.StatusOK},
		{"raw token", raw, http.StatusOK},
		{"scheme only", "Bearer", http.StatusUnauthorized},
		{"other scheme", "Basic " + raw, http.StatusUnauthorized},
		{"garbage", "Bearer garbage", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			code, body := ts.do(t, http.MethodGet, "/api/profile", c.header, nil)
			assert.Equal(t, c.want, code)
			if c.want == http.StatusUnauthorized {
				assert.Equal(t, map[string]any{"error": "unauthorized"}, body)
			}
		})
	}
}

func TestTokens_OnlyCallersOwn(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@x.com", "s3cretpw")
	ts.register(t, "bob@x.com", "bobspass")
	alice := ts.login(t, "alice@x.com", "s3cretpw")
	bob := ts.login(t, "bob@x.com", "bobspass")

	code, _ := ts.do(t, http.MethodPost, "/api/link", alice, map[string]string{"platform": "instagram", "token": "ig-alice"})
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodPost, "/api/link", bob, map[string]string{"platform": "youtube", "token": "yt-bob"})
	require.Equal(t, http.StatusOK, code)

	code, body := ts.do(t, http.MethodGet, "/api/tokens", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"tokens": map[string]any{"instagram": "ig-alice"}}, body)

	code, body = ts.do(t, http.MethodGet, "/api/tokens/instagram", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"platform": "instagram", "token": "ig-alice"}, body)

	code, body = ts.do(t, http.MethodGet, "/api/tokens/youtube", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "platform not linked", body["error"])
}

func TestLink_ValidationAndUnlink(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@x.com", "s3cretpw")
	tok := ts.login(t, "alice@x.com", "s3cretpw")

	code, _ := ts.do(t, http.MethodPost, "/api/link", tok, map[string]string{"platform": "tiktok"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.do(t, http.MethodPost, "/api/link", tok, map[string]string{"platform": "tik tok", "token": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPost, "/api/link", tok, map[string]string{"platform": "tiktok", "token": "tt"})
	require.Equal(t, http.StatusOK, code)

	code, body := ts.do(t, http.MethodDelete, "/api/link/tiktok", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "tiktok", body["platform"])

	_, body = ts.do(t, http.MethodGet, "/api/profile", tok, nil)
	assert.Equal(t, false, body["linkedAccounts"].(map[string]any)["tiktok"])
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@x.com", "s3cretpw")
	tok := ts.login(t, "alice@x.com", "s3cretpw")

	code, _ := ts.do(t, http.MethodPut, "/api/password", tok, map[string]string{"currentPassword": "nope", "newPassword": "newpass1"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, http.MethodPut, "/api/password", tok, map[string]string{"currentPassword": "s3cretpw", "newPassword": "newpass1"})
	require.Equal(t, http.StatusOK, code)

	code, _ = ts.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "alice@x.com", "password": "s3cretpw"})
	assert.Equal(t, http.StatusUnauthorized, code)
	ts.login(t, "alice@x.com", "newpass1")
}

func TestLogout_DisabledByDefault(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@x.com", "s3cretpw")
	tok := ts.login(t, "alice@x.com", "s3cretpw")

	code, _ := ts.do(t, http.MethodPost, "/api/logout", tok, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLogout_RevokesToken(t *testing.T) {
	ts := newTestServer(t, auth.WithDenylist(auth.NewMemoryDenylist(16, time.Hour)))
	ts.register(t, "alice@x.com", "s3cretpw")
	tok := ts.login(t, "alice@x.com", "s3cretpw")
	other := ts.login(t, "alice@x.com", "s3cretpw")

	code, _ := ts.do(t, http.MethodPost, "/api/logout", tok, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = ts.do(t, http.MethodGet, "/api/profile", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = ts.do(t, http.MethodGet, "/api/profile", other, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `linkkeeper_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

type downPinger struct{}

func (downPinger) PingContext(context.Context) error { return errors.New("down") }

func TestHealth_Unavailable(t *testing.T) {
	tokens, err := auth.NewTokenManager([]byte("k"), time.Hour)
	require.NoError(t, err)
	svc := services.NewAccountService(nil, nil, nil, tokens, nil, logging.Nop())
	s := NewServer(":0", logging.Nop(), svc, tokens, downPinger{}, metrics.NewMetrics(), nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"   ":            "",
		"abc":            "abc",
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"BEARER   abc  ": "abc",
		"Bearer":         "",
		"Basic dXNlcjpw": "",
		"Token abc":      "",
	}
	for in, want := range cases {
		if got := extractToken(in); got != want {
			t.Errorf("extractToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	tokens, err := auth.NewTokenManager([]byte("k"), time.Hour)
	require.NoError(t, err)
	svc := services.NewAccountService(nil, nil, nil, tokens, nil, logging.Nop())
	s := NewServer("127.0.0.1:0", logging.Nop(), svc, tokens, downPinger{}, metrics.NewMetrics(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_ListenerFailureStopsShutdownWatcher(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("json", "info", &buf)
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager([]byte("k"), time.Hour)
	require.NoError(t, err)
	svc := services.NewAccountService(nil, nil, nil, tokens, nil, logger)
	s := NewServer("127.0.0.1:0", logger, svc, tokens, downPinger{}, metrics.NewMetrics(), nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background(), l) }()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Contains(t, buf.String(), "Stopping HTTP server")
}
