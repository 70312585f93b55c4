package providers

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the provider failure taxonomy. The pool and engine
// branch on these with errors.Is instead of provider-specific error types.
var (
	// ErrConfiguration covers bad or missing credentials; the provider is
	// discarded for the remainder of the run.
	ErrConfiguration = errors.New("provider configuration error")
	// ErrRateLimited covers 429/throttling responses; retried after a
	// backoff, then treated as transient.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrTransient covers network and parse failures; retried a bounded
	// number of times, after which the provider's contribution for the
	// current video is simply absent.
	ErrTransient = errors.New("transient provider error")
	// ErrArchiveSelection means a pack archive was fetched but contains no
	// file matching the requested episode; the candidate is blacklisted.
	ErrArchiveSelection = errors.New("archive selection error")
	// ErrNotFound marks an empty result; a valid terminal outcome, not a
	// failure.
	ErrNotFound = errors.New("no matching subtitle")
)

// Wrap tags an error with a taxonomy marker plus provider/operation context
// so callers can classify it with errors.Is.
func Wrap(marker error, provider, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := buildDetail(provider, operation, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ClassifyStatus maps an HTTP status code onto the taxonomy.
func ClassifyStatus(provider, operation string, status int, body string) error {
	body = strings.TrimSpace(body)
	switch {
	case status == 401 || status == 403:
		return Wrap(ErrConfiguration, provider, operation, fmt.Sprintf("authentication rejected (%d): %s", status, body), nil)
	case status == 429:
		return Wrap(ErrRateLimited, provider, operation, fmt.Sprintf("rate limited (%d)", status), nil)
	case status == 404:
		return Wrap(ErrNotFound, provider, operation, fmt.Sprintf("not found (%d)", status), nil)
	case status >= 400:
		return Wrap(ErrTransient, provider, operation, fmt.Sprintf("unexpected status %d: %s", status, body), nil)
	default:
		return nil
	}
}

func buildDetail(provider, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{provider, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "provider failure"
	}
	return strings.Join(parts, ": ")
}
