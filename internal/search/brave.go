package search

import (
	"context"
	"net/url"
	"strconv"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/pkg/httpclient"
)

// BraveName identifies results from the Brave Search API.
const BraveName = "brave"

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search web API.
type Brave struct {
	client   *httpclient.Client
	apiKey   string
	endpoint string
	count    int
}

// NewBrave creates a Brave provider. endpoint may be empty for the public API.
func NewBrave(client *httpclient.Client, apiKey, endpoint string) *Brave {
	if endpoint == "" {
		endpoint = braveEndpoint
	}
	return &Brave{client: client, apiKey: apiKey, endpoint: endpoint, count: 10}
}

func (b *Brave) Name() string { return BraveName }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *Brave) Search(ctx context.Context, query string) ([]source.RawResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(b.count))

	var resp braveResponse
	err := b.client.GetJSON(ctx, b.endpoint+"?"+q.Encode(), map[string]string{
		"X-Subscription-Token": b.apiKey,
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]source.RawResult, 0, len(resp.Web.Results))
	for i, r := range resp.Web.Results {
		out = append(out, source.RawResult{
			Title:   cleanText(r.Title),
			URL:     r.URL,
			Snippet: cleanText(r.Description),
			Source:  BraveName,
			Score:   rankScore(i),
		})
	}
	return out, nil
}
