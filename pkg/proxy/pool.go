// Package proxy rotates outbound page fetches across egress proxies and
// benches proxies that keep failing.
package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

type entry struct {
	url           *url.URL
	failures      int
	disabledUntil time.Time
}

// Pool hands out proxies round robin. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Config defines settings for a Pool.
type Config struct {
	// MaxFailures consecutive transport errors bench a proxy (3).
	MaxFailures int
	// Cooldown is how long a benched proxy is skipped (5m).
	Cooldown time.Duration
}

func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile adds one proxy URL per line. Blank lines and lines starting
// with '#' are ignored.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read proxy file: %w", err)
	}
	return p.Add(urls...)
}

// Add parses proxy URLs. A missing scheme means http.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*entry, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
		parsed = append(parsed, &entry{url: u})
	}

	p.mu.Lock()
	p.entries = append(p.entries, parsed...)
	p.mu.Unlock()
	return nil
}

// Len reports how many proxies are configured.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next proxy that is not cooling down, or nil when none is.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)
		if now.Before(e.disabledUntil) {
			continue
		}
		return e.url
	}
	return nil
}

// report records the outcome of a request sent through u.
func (p *Pool) report(u *url.URL, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.url != u {
			continue
		}
		if err == nil {
			e.failures = 0
			return
		}
		e.failures++
		if e.failures >= p.maxFailures {
			e.failures = 0
			e.disabledUntil = p.now().Add(p.cooldown)
		}
		return
	}
}

type proxyKey struct{}

// Transport returns a RoundTripper that sends each request through the next
// proxy. Requests go direct while every proxy is cooling down.
func (p *Pool) Transport() http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = func(req *http.Request) (*url.URL, error) {
		u, _ := req.Context().Value(proxyKey{}).(*url.URL)
		return u, nil
	}
	return &rotatingTransport{pool: p, base: base}
}

type rotatingTransport struct {
	pool *Pool
	base http.RoundTripper
}

func (t *rotatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	u := t.pool.Next()
	if u == nil {
		return t.base.RoundTrip(req)
	}
	req = req.WithContext(context.WithValue(req.Context(), proxyKey{}, u))
	resp, err := t.base.RoundTrip(req)
	t.pool.report(u, err)
	return resp, err
}
