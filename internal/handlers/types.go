package handlers

import (
	"net/http"
	"time"
)

// CreateSessionRequest is the request for starting or resuming a session.
type CreateSessionRequest struct {
	SessionID string `cookie:"session_id" doc:"Current session credential, if any"`
	Body      *struct {
		Metadata map[string]string `doc:"Free-form client metadata stored with a new session" json:"metadata,omitempty"`
	} `required:"false"`
}

// CreateSessionResponse returns the session bound to the response cookie.
type CreateSessionResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		SessionID string     `doc:"The session id"                               json:"session_id"`
		CreatedAt time.Time  `doc:"When the session was created"                 json:"created_at"`
		ExpiresAt *time.Time `doc:"When the session expires, absent if never"    json:"expires_at,omitempty"`
		IsNew     bool       `doc:"Whether this request created the session"     json:"is_new"`
	}
}

// LogoutRequest is the request for ending the current session.
type LogoutRequest struct {
	SessionID string `cookie:"session_id"`
}

// LogoutResponse clears the session cookie.
type LogoutResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
}

// RefreshSessionRequest is the request for extending the current session.
type RefreshSessionRequest struct {
	SessionID string `cookie:"session_id"`
}

// RefreshSessionResponse re-sends the session cookie with the new expiry.
type RefreshSessionResponse struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		ExpiresAt *time.Time `doc:"When the session now expires, absent if never" json:"expires_at,omitempty"`
	}
}

// ShortenRequest is the request body for creating a short URL.
type ShortenRequest struct {
	SessionID string `cookie:"session_id"`
	Body      struct {
		URL string `doc:"The URL to shorten"                                                 example:"https://example.com/very/long/path" json:"url"`
		TTL *int   `doc:"Lifetime in seconds, 43200 when omitted, at most the configured max" example:"3600"                               json:"ttl,omitempty"`
	}
}

// ShortenResponse is the response for a successfully created short URL.
type ShortenResponse struct {
	Body struct {
		ShortURL  string    `doc:"The full short URL"        example:"http://localhost:8888/abc123" json:"short_url"`
		ExpiresAt time.Time `doc:"When the short URL expires"                                        json:"expires_at"`
	}
}

// GetURLRequest is the request for looking up a short code.
type GetURLRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// GetURLResponse describes the target of a short code.
type GetURLResponse struct {
	Body struct {
		OriginalURL string    `doc:"The original URL"          json:"original_url"`
		ExpiresAt   time.Time `doc:"When the short URL expires" json:"expires_at"`
	}
}

// ListURLsRequest is the request for the caller's short URLs.
type ListURLsRequest struct {
	SessionID string `cookie:"session_id"`
	Limit     int    `doc:"Page size, 20 when unset, at most 100" query:"limit"`
	Offset    int    `doc:"Records to skip"                       query:"offset"`
}

// URLItem is one entry of a URL listing.
type URLItem struct {
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ListURLsResponse lists the caller's live short URLs, newest first.
type ListURLsResponse struct {
	Body struct {
		URLs []URLItem `json:"urls"`
	}
}

// DeleteURLRequest is the request for deleting an owned short URL.
type DeleteURLRequest struct {
	SessionID string `cookie:"session_id"`
	Code      string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectRequest is the request for redirecting a short URL.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectResponse sends the client to the original URL.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}
