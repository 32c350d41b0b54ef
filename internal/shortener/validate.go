package shortener

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MaxURLLength is the longest original URL accepted.
const MaxURLLength = 2048

// ValidateURL checks that rawURL is an absolute http or https URL with a host.
// The URL is not rewritten: what is validated is what gets stored.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is empty", ErrInvalidURL)
	}

	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, MaxURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidURL, parseReason(err))
	}

	// url.Parse lowercases the scheme.
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}

	if u.Host == "" || u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

// QualifyScheme trims rawURL and prefixes "https://" when it has no scheme
// but looks like a host name, the way the browser client normalizes input.
// Anything else is returned trimmed but otherwise untouched so that
// ValidateURL can reject it.
func QualifyScheme(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return trimmed
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return trimmed
	}

	if strings.Contains(trimmed, "://") {
		return trimmed
	}

	candidate := "https://" + trimmed

	u, err := url.Parse(candidate)
	if err != nil || !strings.Contains(u.Hostname(), ".") {
		return trimmed
	}

	return candidate
}

func parseReason(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}

	return err.Error()
}
