//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/verifis/internal/extract"
	"github.com/FranksOps/verifis/internal/fetcher"
	"github.com/FranksOps/verifis/internal/pipeline"
	"github.com/FranksOps/verifis/internal/search"
	"github.com/FranksOps/verifis/internal/server"
	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/internal/storage"
	"github.com/FranksOps/verifis/internal/storage/sqlite"
	"github.com/FranksOps/verifis/pkg/httpclient"
	"github.com/FranksOps/verifis/pkg/proxy"
)

const claim = "The city council approved the new transit budget on Tuesday"

func articleHTML(title, lead string) string {
	filler := strings.Repeat("Commuters and business owners followed the debate closely over several weeks of hearings. ", 15)
	return fmt.Sprintf(`<!DOCTYPE html><html lang="en"><head><title>%s</title></head><body>
<nav>Home | World | Business</nav>
<article>
<h1>%s</h1>
<p class="byline">By Dana Reporter</p>
<p>%s</p>
<p>%s</p>
</article>
</body></html>`, title, title, lead, filler)
}

// pageServer serves every fake origin from one listener, keyed by Host.
func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host {
		case "www.reuters.com":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, articleHTML("Council passes transit budget",
				"The city council approved the transit budget late on Tuesday after a long session."))
		case "www.bbc.com":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, articleHTML("Transit spending approved",
				"Members of the council approved a larger budget for buses and trains."))
		case "challenge.net":
			w.Header().Set("Server", "cloudflare")
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `<html><body>cf-browser-verification</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func braveServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("X-Subscription-Token") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		type result struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		}
		var resp struct {
			Web struct {
				Results []result `json:"results"`
			} `json:"web"`
		}
		resp.Web.Results = []result{
			{"Council passes transit budget", "http://www.reuters.com/world/budget", "The council voted on Tuesday."},
			{"Budget reactions", "http://www.reuters.com/world/reactions", "Reactions to the vote."},
			{"Transit budget", "https://en.wikipedia.org/wiki/Transit_budget", "Encyclopedia entry."},
			{"Transit spending approved", "http://www.bbc.com/news/transit", "Members approved spending."},
			{"Blocked page", "http://challenge.net/story", "Behind a bot wall."},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntegration_SourcesEndToEnd(t *testing.T) {
	pages := pageServer(t)
	defer pages.Close()
	var searchHits atomic.Int32
	brave := braveServer(t, &searchHits)
	defer brave.Close()

	logger := quietLogger()
	pagesAddr := pages.Listener.Addr().String()

	fetchClient, err := httpclient.New(httpclient.Config{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, pagesAddr)
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	searchClient, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	chain := search.NewChain(search.BuildProviders(search.Credentials{
		BraveAPIKey:        "test-key",
		BraveEndpoint:      brave.URL,
		DuckDuckGoDisabled: true,
	}, searchClient, logger), search.ChainConfig{Logger: logger})

	f, err := fetcher.New(fetcher.Config{Client: fetchClient, MaxAttempts: 1, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}

	store, err := sqlite.New("file:integration?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p, err := pipeline.New(pipeline.Config{
		Searcher:  chain,
		Fetcher:   f,
		Extractor: extract.New(extract.Config{Logger: logger}),
		Store:     store,
		Logger:    logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	api := httptest.NewServer(server.New(p, server.Config{Logger: logger}).Handler())
	defer api.Close()

	body := fmt.Sprintf(`{"text":%q,"mode":"snippet"}`, claim)
	resp, err := http.Post(api.URL+"/v1/sources", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out pipeline.Output
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}

	// reuters.com/reactions is a duplicate and wikipedia is blacklisted.
	if out.TotalResults != 3 {
		t.Errorf("TotalResults = %d, want 3", out.TotalResults)
	}
	if len(out.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %+v", out.Sources)
	}
	domains := map[string]pipeline.Source{}
	for _, s := range out.Sources {
		domains[s.Domain] = s
	}
	for _, d := range []string{"reuters.com", "bbc.com"} {
		s, ok := domains[d]
		if !ok {
			t.Errorf("expected %s in %+v", d, out.Sources)
			continue
		}
		if s.Reliability != source.High {
			t.Errorf("%s reliability = %s", d, s.Reliability)
		}
		if s.Content == nil || s.Content.Excerpt == "" {
			t.Errorf("%s has no extracted content", d)
		}
		if s.Quote == "" {
			t.Errorf("%s has no relevant quote", d)
		}
	}

	// A second lookup is answered from the search cache.
	before := searchHits.Load()
	if _, err := p.Run(context.Background(), pipeline.Request{Text: claim}); err != nil {
		t.Fatal(err)
	}
	if searchHits.Load() != before {
		t.Errorf("expected cached search results, provider was called %d more times", searchHits.Load()-before)
	}

	runs, err := store.Query(context.Background(), storage.Filter{Provider: search.BraveName})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 persisted runs, got %d", len(runs))
	}
	if len(runs[0].Duplicates) != 1 || runs[0].Duplicates[0].DuplicateOf != "http://www.reuters.com/world/budget" {
		t.Errorf("unexpected duplicates %+v", runs[0].Duplicates)
	}
}

func TestIntegration_NoProvidersYieldsDiagnostic(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	logger := quietLogger()
	client, _ := httpclient.New(httpclient.Config{Timeout: 2 * time.Second})
	chain := search.NewChain(search.BuildProviders(search.Credentials{
		BraveAPIKey:        "k",
		BraveEndpoint:      failing.URL,
		DuckDuckGoEndpoint: failing.URL,
	}, client, logger), search.ChainConfig{Logger: logger})

	f, _ := fetcher.New(fetcher.Config{Logger: logger})
	p, err := pipeline.New(pipeline.Config{
		Searcher:  chain,
		Fetcher:   f,
		Extractor: extract.New(extract.Config{Logger: logger}),
		Logger:    logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), pipeline.Request{Text: claim})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Sources) != 1 || res.Sources[0].Reliability != source.Low || res.Sources[0].Domain != "duckduckgo.com" {
		t.Errorf("expected the manual search diagnostic, got %+v", res.Sources)
	}
}

func TestIntegration_ProxyRotation(t *testing.T) {
	var proxyHits atomic.Int32
	// The proxy answers for every origin itself.
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxyHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Proxied</title></head><body>proxied content</body></html>`)
	}))
	defer proxySrv.Close()

	pool := proxy.NewPool(proxy.Config{})
	if err := pool.Add(proxySrv.URL); err != nil {
		t.Fatal(err)
	}
	client, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second, Transport: pool.Transport()})
	if err != nil {
		t.Fatal(err)
	}
	f, err := fetcher.New(fetcher.Config{Client: client, MaxAttempts: 1, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}

	page, err := f.FetchPage(context.Background(), "http://example.com/testproxy", "")
	if err != nil {
		t.Fatalf("fetch through proxy failed: %v", err)
	}
	if proxyHits.Load() != 1 {
		t.Errorf("expected 1 proxy hit, got %d", proxyHits.Load())
	}
	if page.Title != "Proxied" || !strings.Contains(page.Text, "proxied content") {
		t.Errorf("unexpected page %+v", page)
	}
}
