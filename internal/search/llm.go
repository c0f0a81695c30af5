package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/sashabaranov/go-openai"
)

// LLMName is the default identifier for results from an LLM search provider.
const LLMName = "llm"

const llmSystemPrompt = "You are a fact-checking assistant. You answer only with a JSON array of sources."

const llmPromptTemplate = `For the following factual claim or search query, provide %d reliable sources that could verify or provide context for it.

Query: %s

For each source, provide:
- title: a descriptive title for the source
- url: the full URL of the source
- snippet: a brief excerpt or summary (2-3 sentences) explaining what the source says
- domain: the domain name of the URL
- confidence: a number between 0 and 1 indicating how relevant and reliable the source is

Prefer government (.gov) and educational (.edu) sites, reputable news organizations, research institutions and established fact-checking organizations.

Output ONLY a valid JSON array of objects with the keys title, url, snippet, domain and confidence. Do not include markdown formatting or any other text.`

var (
	fenceRe     = regexp.MustCompile("```(?:json)?\n?")
	jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)
)

// LLMConfig configures an OpenAI-compatible chat endpoint used as a search provider.
type LLMConfig struct {
	Name       string
	APIKey     string
	BaseURL    string
	Model      string
	MaxResults int
	HTTPClient *http.Client
}

// LLM asks a chat model to name sources for a query.
type LLM struct {
	client     *openai.Client
	name       string
	model      string
	maxResults int
}

// NewLLM creates the provider. Model defaults to gpt-4o-mini and MaxResults to 5.
func NewLLM(cfg LLMConfig) *LLM {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	if cfg.Name == "" {
		cfg.Name = LLMName
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &LLM{
		client:     openai.NewClientWithConfig(oc),
		name:       cfg.Name,
		model:      cfg.Model,
		maxResults: cfg.MaxResults,
	}
}

func (l *LLM) Name() string { return l.name }

func (l *LLM) Search(ctx context.Context, query string) ([]source.RawResult, error) {
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(llmPromptTemplate, l.maxResults, query)},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	return parseLLMSources(resp.Choices[0].Message.Content, l.name, l.maxResults)
}

type llmSource struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Snippet    string   `json:"snippet"`
	Domain     string   `json:"domain"`
	Confidence *float64 `json:"confidence"`
}

// parseLLMSources decodes a model reply into results. Markdown fences and
// surrounding prose are tolerated; confidences above 1 are read as percentages.
func parseLLMSources(reply, name string, max int) ([]source.RawResult, error) {
	text := fenceRe.ReplaceAllString(strings.TrimSpace(reply), "")
	if m := jsonArrayRe.FindString(text); m != "" {
		text = m
	}

	var items []llmSource
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}

	out := make([]source.RawResult, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.URL) == "" || strings.TrimSpace(it.Snippet) == "" {
			continue
		}
		score := 0.5
		if it.Confidence != nil {
			score = normalizeConfidence(*it.Confidence)
		}
		snippet := it.Snippet
		if r := []rune(snippet); len(r) > 300 {
			snippet = string(r[:300])
		}
		out = append(out, source.RawResult{
			Title:   strings.TrimSpace(it.Title),
			URL:     strings.TrimSpace(it.URL),
			Snippet: strings.TrimSpace(snippet),
			Source:  name,
			Score:   score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func normalizeConfidence(c float64) float64 {
	if c > 1 {
		c /= 100
	}
	return max(0, min(1, c))
}
