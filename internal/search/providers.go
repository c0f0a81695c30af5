package search

import (
	"log/slog"

	"github.com/FranksOps/verifis/pkg/httpclient"
	"github.com/FranksOps/verifis/pkg/ratelimit"
)

// Credentials lists per-provider settings. A provider whose key is empty is
// left out of the chain.
type Credentials struct {
	BraveAPIKey   string
	BraveEndpoint string

	GoogleAPIKey   string
	GoogleCX       string
	GoogleEndpoint string

	BingAPIKey   string
	BingEndpoint string

	LLMName    string
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// DuckDuckGoDisabled removes the free fallback, mainly for tests.
	DuckDuckGoDisabled bool
	DuckDuckGoEndpoint string

	// RequestsPerSecond paces calls to each provider; 0 disables pacing.
	RequestsPerSecond float64
}

// BuildProviders returns the configured providers in priority order: Brave,
// Google, Bing, the LLM provider, then DuckDuckGo.
func BuildProviders(creds Credentials, client *httpclient.Client, logger *slog.Logger) []Provider {
	if logger == nil {
		logger = slog.Default()
	}

	var out []Provider
	add := func(p Provider) {
		if creds.RequestsPerSecond > 0 {
			p = Paced(p, ratelimit.NewPacer(creds.RequestsPerSecond, 0.1))
		}
		out = append(out, p)
	}

	if creds.BraveAPIKey != "" {
		add(NewBrave(client, creds.BraveAPIKey, creds.BraveEndpoint))
	}
	if creds.GoogleAPIKey != "" && creds.GoogleCX != "" {
		add(NewGoogle(client, creds.GoogleAPIKey, creds.GoogleCX, creds.GoogleEndpoint))
	}
	if creds.BingAPIKey != "" {
		add(NewBing(client, creds.BingAPIKey, creds.BingEndpoint))
	}
	if creds.LLMAPIKey != "" {
		add(NewLLM(LLMConfig{
			Name:       creds.LLMName,
			APIKey:     creds.LLMAPIKey,
			BaseURL:    creds.LLMBaseURL,
			Model:      creds.LLMModel,
			HTTPClient: client.Client,
		}))
	}
	if !creds.DuckDuckGoDisabled {
		add(NewDuckDuckGo(client, creds.DuckDuckGoEndpoint, logger))
	}

	names := make([]string, len(out))
	for i, p := range out {
		names[i] = p.Name()
	}
	logger.Info("search providers configured", "providers", names)
	return out
}
