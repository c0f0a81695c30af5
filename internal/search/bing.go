package search

import (
	"context"
	"net/url"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/pkg/httpclient"
)

// BingName identifies results from the Bing Web Search API.
const BingName = "bing"

const bingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

type Bing struct {
	client   *httpclient.Client
	apiKey   string
	endpoint string
}

func NewBing(client *httpclient.Client, apiKey, endpoint string) *Bing {
	if endpoint == "" {
		endpoint = bingEndpoint
	}
	return &Bing{client: client, apiKey: apiKey, endpoint: endpoint}
}

func (b *Bing) Name() string { return BingName }

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

func (b *Bing) Search(ctx context.Context, query string) ([]source.RawResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", "10")

	var resp bingResponse
	err := b.client.GetJSON(ctx, b.endpoint+"?"+q.Encode(), map[string]string{
		"Ocp-Apim-Subscription-Key": b.apiKey,
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]source.RawResult, 0, len(resp.WebPages.Value))
	for i, v := range resp.WebPages.Value {
		out = append(out, source.RawResult{
			Title:   cleanText(v.Name),
			URL:     v.URL,
			Snippet: cleanText(v.Snippet),
			Source:  BingName,
			Score:   rankScore(i),
		})
	}
	return out, nil
}
