// Package fetcher retrieves web pages for content extraction with caching,
// per-client rate limiting, bounded retries and size/type guards.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/verifis/internal/challenge"
	"github.com/FranksOps/verifis/internal/metrics"
	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/pkg/cache"
	"github.com/FranksOps/verifis/pkg/httpclient"
	"github.com/FranksOps/verifis/pkg/ratelimit"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
)

const (
	noTitle         = "No title"
	cacheKeyPrefix  = "page:"
	acceptHeader    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage  = "en-US,en;q=0.5"
	defaultMaxBytes = 5 << 20
)

var allowedContentTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"text/plain",
}

var (
	titleRe  = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Config configures a Fetcher. Zero values take the defaults noted per field.
type Config struct {
	// Timeout bounds each attempt (10s).
	Timeout time.Duration
	// MaxAttempts is the total number of tries per URL (3).
	MaxAttempts int
	// RetryBackoff is multiplied by the attempt number between tries (1s).
	RetryBackoff time.Duration
	// MaxBodyBytes caps the response body (5 MB).
	MaxBodyBytes int64
	// MaxTextChars caps FetchedPage.Text (10,000).
	MaxTextChars int
	// Concurrency is the FetchPages chunk size (3).
	Concurrency int
	// RespectRobots enables robots.txt enforcement.
	RespectRobots bool

	Client    *httpclient.Client
	Cache     cache.Cache[source.FetchedPage]
	Limiter   ratelimit.Keyed
	Detectors []challenge.Detector
	Logger    *slog.Logger
}

// Fetcher retrieves pages. It is safe for concurrent use.
type Fetcher struct {
	cfg    Config
	client *httpclient.Client
	robots *RobotsAuditor
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New initializes a Fetcher. A nil Cache gets a 500-entry memory cache fresh
// for 5 minutes and retained for 15; a nil Limiter allows 10 requests per
// client per minute.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBytes
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 10000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory[source.FetchedPage](cache.Options{
			Size:   500,
			Fresh:  5 * time.Minute,
			MaxAge: 15 * time.Minute,
		})
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewWindow(10, time.Minute, nil)
	}
	if cfg.Detectors == nil {
		cfg.Detectors = challenge.Defaults()
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = httpclient.New(httpclient.Config{Timeout: cfg.Timeout, MaxRedirects: 10})
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
	}

	f := &Fetcher{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger,
		sleep:  sleepCtx,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsAuditor(client, cfg.Logger)
	}
	return f, nil
}

// FetchPage returns the page at rawURL, from cache when fresh. clientIP may be
// empty, in which case no rate limit applies. Errors are *FetchError.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL, clientIP string) (source.FetchedPage, error) {
	key := cacheKeyPrefix + rawURL
	if page, ok := f.cfg.Cache.Get(ctx, key); ok {
		metrics.RecordCache("page", true)
		return page, nil
	}
	metrics.RecordCache("page", false)

	if clientIP != "" {
		ok, err := f.cfg.Limiter.Allow(ctx, clientIP)
		if err != nil {
			// Limiter backend errors fail open.
			f.logger.Warn("rate limiter unavailable, allowing request", "ip", clientIP, "err", err)
		} else if !ok {
			metrics.RateLimitedTotal.Inc()
			return source.FetchedPage{}, &FetchError{URL: rawURL, Err: ErrRateLimited}
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return source.FetchedPage{}, &FetchError{URL: rawURL, Err: fmt.Errorf("invalid url %q", rawURL)}
	}

	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, u, f.client.UserAgent())
		if err == nil && !allowed {
			return source.FetchedPage{}, &FetchError{URL: rawURL, Err: ErrBlockedByRobots}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.sleep(ctx, f.cfg.RetryBackoff*time.Duration(attempt-1)); err != nil {
				return source.FetchedPage{}, &FetchError{URL: rawURL, Attempts: attempt - 1, Err: err}
			}
		}

		page, err := f.attempt(ctx, u)
		if err == nil {
			page.URL = rawURL
			f.cfg.Cache.Set(ctx, key, page)
			return page, nil
		}
		lastErr = err
		f.logger.Debug("fetch attempt failed", "url", rawURL, "attempt", attempt, "err", err)

		if terminal(err) {
			return source.FetchedPage{}, &FetchError{URL: rawURL, Attempts: attempt, Err: err}
		}
		if ctx.Err() != nil {
			return source.FetchedPage{}, &FetchError{URL: rawURL, Attempts: attempt, Err: ctx.Err()}
		}
	}

	return source.FetchedPage{}, &FetchError{URL: rawURL, Attempts: f.cfg.MaxAttempts, Err: lastErr}
}

// attempt performs one GET under its own timeout.
func (f *Fetcher) attempt(ctx context.Context, u *url.URL) (source.FetchedPage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	domain := u.Hostname()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return source.FetchedPage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		metrics.RecordFetch(domain, metrics.StatusError, 0, time.Since(start))
		return source.FetchedPage{}, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	raw, err := f.readBody(resp)
	if err != nil {
		metrics.RecordFetch(domain, metrics.StatusError, len(raw), time.Since(start))
		return source.FetchedPage{}, err
	}

	if vendor, ok := challenge.Detect(challenge.Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}, f.cfg.Detectors); ok {
		metrics.RecordFetch(domain, metrics.StatusChallenged, len(raw), time.Since(start))
		return source.FetchedPage{}, fmt.Errorf("%w (%s)", ErrChallenged, vendor)
	}
	metrics.RecordFetch(domain, strconv.Itoa(resp.StatusCode), len(raw), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return source.FetchedPage{}, &statusError{status: resp.StatusCode}
	}
	if !allowedType(contentType) {
		return source.FetchedPage{}, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	body, err := decode(raw, contentType)
	if err != nil {
		return source.FetchedPage{}, fmt.Errorf("decode body: %w", err)
	}

	return source.FetchedPage{
		URL:         u.String(),
		Title:       Title(body),
		Text:        StripTags(body, f.cfg.MaxTextChars),
		HTML:        body,
		Status:      resp.StatusCode,
		ContentType: contentType,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// readBody enforces the size cap both from Content-Length and while reading.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	if resp.ContentLength > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %d bytes declared", ErrContentTooLarge, resp.ContentLength)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return raw, fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrContentTooLarge, f.cfg.MaxBodyBytes)
	}
	return raw, nil
}

// FetchPages fetches urls in sequential chunks of Concurrency, each chunk in
// parallel. Failures are logged and dropped.
func (f *Fetcher) FetchPages(ctx context.Context, urls []string, clientIP string) []source.FetchedPage {
	var (
		pages  []source.FetchedPage
		failed []string
	)

	for start := 0; start < len(urls); start += f.cfg.Concurrency {
		end := min(start+f.cfg.Concurrency, len(urls))
		chunk := urls[start:end]

		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		results := make([]*source.FetchedPage, len(chunk))
		for i, u := range chunk {
			g.Go(func() error {
				page, err := f.FetchPage(ctx, u, clientIP)
				if err != nil {
					mu.Lock()
					failed = append(failed, err.Error())
					mu.Unlock()
					return nil
				}
				results[i] = &page
				return nil
			})
		}
		_ = g.Wait()

		for _, p := range results {
			if p != nil {
				pages = append(pages, *p)
			}
		}
	}

	if len(failed) > 0 {
		f.logger.Warn("some pages failed to fetch", "failed", len(failed), "errors", failed)
	}
	return pages
}

func allowedType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		ct = mt
	}
	for _, t := range allowedContentTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return false
}

// decode converts raw to UTF-8 using the declared or sniffed charset.
func decode(raw []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw), nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Title returns the text of the first <title> element, or "No title".
func Title(doc string) string {
	m := titleRe.FindStringSubmatch(doc)
	if m == nil {
		return noTitle
	}
	t := strings.TrimSpace(html.UnescapeString(m[1]))
	if t == "" {
		return noTitle
	}
	return t
}

// StripTags removes scripts, styles and markup, collapses whitespace and caps
// the result at max characters.
func StripTags(doc string, max int) string {
	s := scriptRe.ReplaceAllString(doc, "")
	s = styleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	return truncateRunes(s, max)
}

func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
