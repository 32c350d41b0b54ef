package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/audit"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// URLHandler handles URL shortening operations.
type URLHandler struct {
	service        *shortener.Service
	baseURL        string
	defaultTTL     int
	publishCreated messaging.Publish[audit.URLCreatedEvent]
	publishDeleted messaging.Publish[audit.URLDeletedEvent]
	logger         *zap.Logger
}

// NewURLHandler creates a new URL handler. defaultTTL is in seconds and
// applies when a request omits ttl.
func NewURLHandler(
	service *shortener.Service,
	baseURL string,
	defaultTTL int,
	publishCreated messaging.Publish[audit.URLCreatedEvent],
	publishDeleted messaging.Publish[audit.URLDeletedEvent],
	logger *zap.Logger,
) *URLHandler {
	return &URLHandler{
		service:        service,
		baseURL:        baseURL,
		defaultTTL:     defaultTTL,
		publishCreated: publishCreated,
		publishDeleted: publishDeleted,
		logger:         logger,
	}
}

func (h *URLHandler) Shorten(ctx context.Context, req *ShortenRequest) (*ShortenResponse, error) {
	ttl := h.defaultTTL
	if req.Body.TTL != nil {
		ttl = *req.Body.TTL
	}

	shortURL, err := h.service.Shorten(ctx, shortener.QualifyScheme(req.Body.URL), ttl, req.SessionID)
	if err != nil {
		return nil, h.toHTTPError(err, "failed to save url")
	}

	event := &audit.URLCreatedEvent{
		Code:        string(shortURL.Code),
		OriginalURL: shortURL.OriginalURL,
		Owner:       shortURL.Owner,
		CreatedAt:   shortURL.CreatedAt,
		ExpiresAt:   shortURL.ExpiresAt,
	}

	if err := h.publishCreated(ctx, event); err != nil {
		h.logger.Error("failed to publish url created event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	resp := &ShortenResponse{}
	resp.Body.ShortURL = fmt.Sprintf("%s/%s", h.baseURL, shortURL.Code)
	resp.Body.ExpiresAt = shortURL.ExpiresAt

	return resp, nil
}

func (h *URLHandler) GetURL(ctx context.Context, req *GetURLRequest) (*GetURLResponse, error) {
	shortURL, err := h.service.Resolve(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, h.toHTTPError(err, "failed to get url")
	}

	resp := &GetURLResponse{}
	resp.Body.OriginalURL = shortURL.OriginalURL
	resp.Body.ExpiresAt = shortURL.ExpiresAt

	return resp, nil
}

func (h *URLHandler) ListURLs(ctx context.Context, req *ListURLsRequest) (*ListURLsResponse, error) {
	urls, err := h.service.List(ctx, req.SessionID, req.Limit, req.Offset)
	if err != nil {
		return nil, h.toHTTPError(err, "failed to list urls")
	}

	resp := &ListURLsResponse{}
	resp.Body.URLs = make([]URLItem, 0, len(urls))

	for _, u := range urls {
		resp.Body.URLs = append(resp.Body.URLs, URLItem{
			ShortCode:   string(u.Code),
			OriginalURL: u.OriginalURL,
			CreatedAt:   u.CreatedAt,
			ExpiresAt:   u.ExpiresAt,
		})
	}

	return resp, nil
}

func (h *URLHandler) DeleteURL(ctx context.Context, req *DeleteURLRequest) (*struct{}, error) {
	if err := h.service.Remove(ctx, shortener.Code(req.Code), req.SessionID); err != nil {
		return nil, h.toHTTPError(err, "failed to delete url")
	}

	// A successful delete proves the credential named the owner.
	event := &audit.URLDeletedEvent{
		Code:      req.Code,
		Owner:     req.SessionID,
		DeletedAt: time.Now(),
	}

	if err := h.publishDeleted(ctx, event); err != nil {
		h.logger.Error("failed to publish url deleted event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	return nil, nil
}

func (h *URLHandler) RedirectToURL(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	shortURL, err := h.service.Resolve(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, h.toHTTPError(err, "failed to get url")
	}

	return &RedirectResponse{
		Status:   http.StatusFound,
		Location: shortURL.OriginalURL,
	}, nil
}

// toHTTPError maps domain errors to API errors. Validation errors carry their
// reason; lookup and ownership errors only the outcome.
func (h *URLHandler) toHTTPError(err error, fallback string) error {
	switch {
	case errors.Is(err, shortener.ErrInvalidURL), errors.Is(err, shortener.ErrInvalidTTL):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("short url not found")
	case errors.Is(err, shortener.ErrForbidden):
		return huma.Error403Forbidden("short url belongs to another session")
	default:
		h.logger.Error(fallback, zap.Error(err))

		return huma.Error500InternalServerError(fallback)
	}
}
