package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/server/metrics"
	"github.com/go-chi/chi/v5"
)

const healthTimeout = 2 * time.Second

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type linkRequest struct {
	Platform string `json:"platform"`
	Token    string `json:"token"`
}

type linkResponse struct {
	Message  string `json:"message"`
	Platform string `json:"platform"`
}

type profileResponse struct {
	Email          string          `json:"email"`
	LinkedAccounts map[string]bool `json:"linkedAccounts"`
}

type tokensResponse struct {
	Tokens map[string]string `json:"tokens"`
}

type tokenResponse struct {
	Platform string `json:"platform"`
	Token    string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	a, err := s.accounts.Register(r.Context(), in.Email, in.Password)
	if err != nil {
		s.metrics.ObserveAuth("register", outcomeOf(err))
		writeServiceError(w, err)
		return
	}

	s.metrics.ObserveAuth("register", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusCreated, registerResponse{ID: a.ID, Email: a.Identity})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sess, err := s.accounts.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.metrics.ObserveAuth("login", outcomeOf(err))
		if errors.Is(err, common.ErrorUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, err)
		return
	}

	s.metrics.ObserveAuth("login", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt.UTC()})
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	var in linkRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	platform, err := s.accounts.LinkAccount(r.Context(), p.Identity, in.Platform, in.Token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, linkResponse{Message: "account linked", Platform: platform})
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	platform, err := s.accounts.UnlinkAccount(r.Context(), p.Identity, chi.URLParam(r, "platform"))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, linkResponse{Message: "account unlinked", Platform: platform})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	status, err := s.accounts.GetLinkedStatus(r.Context(), p.Identity)
	if err != nil {
		// a valid token for an account that no longer exists
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Email: p.Identity, LinkedAccounts: status})
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	tokens, err := s.accounts.GetLinkedTokens(r.Context(), p.Identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensResponse{Tokens: tokens})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	platform := chi.URLParam(r, "platform")

	name, token, err := s.accounts.GetLinkedToken(r.Context(), p.Identity, platform)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "platform not linked")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Platform: name, Token: token})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	var in changePasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.accounts.ChangePassword(r.Context(), p.Identity, in.CurrentPassword, in.NewPassword); err != nil {
		s.metrics.ObserveAuth("change_password", outcomeOf(err))
		writeServiceError(w, err)
		return
	}

	s.metrics.ObserveAuth("change_password", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, messageResponse{Message: "password changed"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context(), claimsFromContext(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, common.ErrorInternal):
		return metrics.OutcomeError
	case errors.Is(err, common.ErrorValidation):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailure
	}
}
