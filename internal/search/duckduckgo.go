package search

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/pkg/httpclient"
)

// DuckDuckGoName identifies results from the DuckDuckGo Instant Answer API.
const DuckDuckGoName = "duckduckgo"

const duckDuckGoEndpoint = "https://api.duckduckgo.com/"

// DuckDuckGo is the free bottom-of-chain provider. Search never returns an
// error: failures and empty answers yield a single placeholder result that
// points the user at a manual search.
type DuckDuckGo struct {
	client   *httpclient.Client
	endpoint string
	logger   *slog.Logger
}

func NewDuckDuckGo(client *httpclient.Client, endpoint string, logger *slog.Logger) *DuckDuckGo {
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDuckGo{client: client, endpoint: endpoint, logger: logger}
}

func (d *DuckDuckGo) Name() string { return DuckDuckGoName }

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading        string     `json:"Heading"`
	AbstractText   string     `json:"AbstractText"`
	AbstractURL    string     `json:"AbstractURL"`
	AbstractSource string     `json:"AbstractSource"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]source.RawResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	var resp ddgResponse
	if err := d.client.GetJSON(ctx, d.endpoint+"?"+q.Encode(), nil, &resp); err != nil {
		d.logger.Warn("duckduckgo lookup failed, returning placeholder", "query", query, "err", err)
		return []source.RawResult{Placeholder(query)}, nil
	}

	var out []source.RawResult
	if resp.AbstractText != "" && resp.AbstractURL != "" {
		title := resp.Heading
		if resp.AbstractSource != "" {
			title += " - " + resp.AbstractSource
		}
		out = append(out, source.RawResult{
			Title:   title,
			URL:     resp.AbstractURL,
			Snippet: resp.AbstractText,
			Source:  DuckDuckGoName,
			Score:   0.6,
		})
	}
	for i, t := range flattenTopics(resp.RelatedTopics) {
		out = append(out, source.RawResult{
			Title:   topicTitle(t.Text),
			URL:     t.FirstURL,
			Snippet: t.Text,
			Source:  DuckDuckGoName,
			Score:   max(0.5-float64(i)*0.02, 0.1),
		})
	}

	if len(out) == 0 {
		return []source.RawResult{Placeholder(query)}, nil
	}
	return out, nil
}

func flattenTopics(topics []ddgTopic) []ddgTopic {
	var out []ddgTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics)...)
			continue
		}
		if t.Text != "" && t.FirstURL != "" {
			out = append(out, t)
		}
	}
	return out
}

// topicTitle uses the lead phrase of a related-topic text as its title.
func topicTitle(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	if r := []rune(text); len(r) > 80 {
		return string(r[:80])
	}
	return text
}

// Placeholder is the synthetic result directing the user to search manually.
func Placeholder(query string) source.RawResult {
	return source.RawResult{
		Title:       "Search manually: " + query,
		URL:         "https://duckduckgo.com/?q=" + url.QueryEscape(query),
		Snippet:     "No automated sources were found for this query. Search the web manually to verify it.",
		Source:      DuckDuckGoName,
		Score:       0.1,
		Placeholder: true,
	}
}
