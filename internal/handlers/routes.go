package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/ratelimit"
)

// RegisterRoutes registers the session and URL routes with their rate limit
// configuration.
func RegisterRoutes(api huma.API, sessionHandler *SessionHandler, urlHandler *URLHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/auth/session",
		Summary:     "Start or resume a session",
		Description: "Returns the session named by the session_id cookie, or creates a new one and sets the cookie.",
		Tags:        []string{"Sessions"},
	}, sessionHandler.CreateSession)

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodDelete,
		Path:          "/auth/logout",
		Summary:       "End the current session",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusNoContent,
	}, sessionHandler.Logout)

	huma.Register(api, huma.Operation{
		OperationID: "refresh-session",
		Method:      http.MethodPut,
		Path:        "/auth/session/refresh",
		Summary:     "Extend the current session",
		Description: "Moves the expiry of the current session forward and re-sends the cookie.",
		Tags:        []string{"Sessions"},
	}, sessionHandler.RefreshSession)

	// On top of the write scope limits.
	huma.Register(api, huma.Operation{
		OperationID: "shorten",
		Method:      http.MethodPost,
		Path:        "/api/v1/shorten",
		Summary:     "Create short URL",
		Description: "Creates a short URL owned by the current session. A URL without scheme is assumed to be https.",
		Tags:        []string{"URLs"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{
					{Window: time.Minute, Max: 10},
					{Window: 24 * time.Hour, Max: 200},
				},
			},
		},
	}, urlHandler.Shorten)

	huma.Register(api, huma.Operation{
		OperationID: "list-urls",
		Method:      http.MethodGet,
		Path:        "/api/v1/urls",
		Summary:     "List own short URLs",
		Description: "Lists the live short URLs of the current session, newest first.",
		Tags:        []string{"URLs"},
	}, urlHandler.ListURLs)

	huma.Register(api, huma.Operation{
		OperationID: "get-url",
		Method:      http.MethodGet,
		Path:        "/api/v1/urls/{code}",
		Summary:     "Look up a short URL",
		Tags:        []string{"URLs"},
	}, urlHandler.GetURL)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-url",
		Method:        http.MethodDelete,
		Path:          "/api/v1/urls/{code}",
		Summary:       "Delete own short URL",
		Tags:          []string{"URLs"},
		DefaultStatus: http.StatusNoContent,
	}, urlHandler.DeleteURL)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the original URL associated with the short code.",
		Tags:        []string{"URLs"},
		Responses: map[string]*huma.Response{
			"302": {Description: "Redirect to the original URL"},
		},
	}, urlHandler.RedirectToURL)
}
