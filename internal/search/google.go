package search

import (
	"context"
	"net/url"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/pkg/httpclient"
)

// GoogleName identifies results from the Google Custom Search JSON API.
const GoogleName = "google"

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Google queries a Programmable Search Engine.
type Google struct {
	client   *httpclient.Client
	apiKey   string
	cx       string
	endpoint string
}

// NewGoogle creates a Google CSE provider for engine cx.
func NewGoogle(client *httpclient.Client, apiKey, cx, endpoint string) *Google {
	if endpoint == "" {
		endpoint = googleEndpoint
	}
	return &Google{client: client, apiKey: apiKey, cx: cx, endpoint: endpoint}
}

func (g *Google) Name() string { return GoogleName }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (g *Google) Search(ctx context.Context, query string) ([]source.RawResult, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("cx", g.cx)
	q.Set("q", query)
	q.Set("num", "10")

	var resp googleResponse
	if err := g.client.GetJSON(ctx, g.endpoint+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	out := make([]source.RawResult, 0, len(resp.Items))
	for i, it := range resp.Items {
		out = append(out, source.RawResult{
			Title:   cleanText(it.Title),
			URL:     it.Link,
			Snippet: cleanText(it.Snippet),
			Source:  GoogleName,
			Score:   rankScore(i),
		})
	}
	return out, nil
}
