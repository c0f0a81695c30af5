package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the caller exceeded its request window.
	ErrRateLimited = errors.New("rate limit exceeded, try again later")
	// ErrUnsupportedContentType is returned for responses that are not HTML or plain text.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrContentTooLarge is returned when a body exceeds the configured cap.
	ErrContentTooLarge = errors.New("content too large")
	// ErrChallenged is returned when the origin served a bot-protection page.
	ErrChallenged = errors.New("blocked by bot challenge")
	// ErrBlockedByRobots is returned when robots.txt disallows the URL.
	ErrBlockedByRobots = errors.New("disallowed by robots.txt")
)

// FetchError describes a failed fetch of URL after Attempts tries.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Attempts == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// terminal reports whether err must not be retried.
func terminal(err error) bool {
	return errors.Is(err, ErrUnsupportedContentType) ||
		errors.Is(err, ErrContentTooLarge) ||
		errors.Is(err, ErrChallenged)
}

// statusError is a retryable non-2xx response.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}
