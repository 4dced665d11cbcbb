package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/server/auth"
	"github.com/dmitrijs2005/linkkeeper/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type ctxKey string

const (
	principalKey ctxKey = "principal"
	claimsKey    ctxKey = "claims"
	requestIDKey ctxKey = "request_id"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID int64
	Identity  string
	TokenID   string
	ExpiresAt time.Time
}

// PrincipalFromContext returns the caller attached by the auth gate.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// RequestIDFromContext returns the id assigned to the current request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// observe logs every request and feeds the HTTP metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}

		d := time.Since(start)
		s.metrics.ObserveRequest(r.Method, path, status, d)
		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", path,
			"status", status,
			"duration", d,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// authenticate is the auth gate: it lets a request through only with a
// valid session token and attaches the Principal to its context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := extractToken(r.Header.Get(common.AuthorizationHeaderName))
		if token == "" {
			s.metrics.ObserveAuth("session", metrics.OutcomeRejected)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := s.tokens.Verify(ctx, token)
		if err != nil {
			if isTokenError(err) {
				s.logger.Debug(ctx, "token rejected", "reason", err.Error())
				s.metrics.ObserveAuth("session", metrics.OutcomeRejected)
			} else {
				s.logger.Warn(ctx, "token check failed", "error", err)
				s.metrics.ObserveAuth("session", metrics.OutcomeError)
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		p := Principal{
			AccountID: claims.AccountID,
			Identity:  claims.Identity,
			TokenID:   claims.ID,
			ExpiresAt: claims.Expiry(),
		}

		ctx = context.WithValue(ctx, principalKey, p)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken accepts "Bearer <token>" with any scheme casing, or the raw
// token on its own.
func extractToken(header string) string {
	h := strings.TrimSpace(header)
	if h == "" {
		return ""
	}

	scheme, rest, found := strings.Cut(h, " ")
	if !found {
		if strings.EqualFold(h, common.BearerScheme) {
			return ""
		}
		return h
	}
	if !strings.EqualFold(scheme, common.BearerScheme) {
		return ""
	}
	return strings.TrimSpace(rest)
}

func isTokenError(err error) bool {
	return errors.Is(err, common.ErrInvalidToken) ||
		errors.Is(err, common.ErrMalformedToken) ||
		errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrTokenRevoked)
}
