package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned for URLs without a scheme and host.
var ErrInvalidURL = errors.New("invalid url")

// Domain returns the lowercased hostname of rawURL without a leading "www.".
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), nil
}

// ValidURL reports whether rawURL is an absolute http(s) URL.
func ValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
}

// matchesDomain reports whether domain is d or a subdomain of d.
func matchesDomain(domain, d string) bool {
	return domain == d || strings.HasSuffix(domain, "."+d)
}
