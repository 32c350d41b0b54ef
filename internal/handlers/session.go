package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/session"
	"go.uber.org/zap"
)

// SessionHandler issues and ends anonymous sessions.
type SessionHandler struct {
	manager      *session.Manager
	secureCookie bool
	logger       *zap.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(manager *session.Manager, secureCookie bool, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager:      manager,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

func (h *SessionHandler) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	var metadata map[string]string
	if req.Body != nil {
		metadata = req.Body.Metadata
	}

	s, created, err := h.manager.Init(ctx, req.SessionID, metadata)
	if err != nil {
		h.logger.Error("failed to init session", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to create session")
	}

	resp := &CreateSessionResponse{}
	resp.SetCookie = h.cookie(s.ID, s.ExpiresAt)
	resp.Body.SessionID = s.ID
	resp.Body.CreatedAt = s.CreatedAt
	resp.Body.IsNew = created

	if !s.ExpiresAt.IsZero() {
		expiresAt := s.ExpiresAt
		resp.Body.ExpiresAt = &expiresAt
	}

	return resp, nil
}

func (h *SessionHandler) Logout(ctx context.Context, req *LogoutRequest) (*LogoutResponse, error) {
	if err := h.manager.End(ctx, req.SessionID); err != nil {
		h.logger.Error("failed to end session", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to end session")
	}

	resp := &LogoutResponse{}
	resp.SetCookie = h.cookie("", time.Time{})
	resp.SetCookie.MaxAge = -1

	return resp, nil
}

func (h *SessionHandler) RefreshSession(ctx context.Context, req *RefreshSessionRequest) (*RefreshSessionResponse, error) {
	if req.SessionID == "" {
		return nil, huma.Error401Unauthorized("no session")
	}

	s, err := h.manager.Refresh(ctx, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			return nil, huma.Error404NotFound("session not found")
		case errors.Is(err, session.ErrExpired):
			return nil, huma.Error401Unauthorized("session expired")
		default:
			h.logger.Error("failed to refresh session", zap.Error(err))

			return nil, huma.Error500InternalServerError("failed to refresh session")
		}
	}

	resp := &RefreshSessionResponse{}
	resp.SetCookie = h.cookie(s.ID, s.ExpiresAt)

	if !s.ExpiresAt.IsZero() {
		expiresAt := s.ExpiresAt
		resp.Body.ExpiresAt = &expiresAt
	}

	return resp, nil
}

// cookie builds the session cookie. A zero expiry leaves it a browser-session cookie.
func (h *SessionHandler) cookie(value string, expiresAt time.Time) http.Cookie {
	c := http.Cookie{
		Name:     session.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	if !expiresAt.IsZero() {
		c.Expires = expiresAt.UTC()
	}

	return c
}
