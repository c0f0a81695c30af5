// Package report renders pipeline runs and run history as text, JSON or HTML.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/verifis/internal/extract"
	"github.com/FranksOps/verifis/internal/ranker"
	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/internal/storage"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat validates a format name. An empty name means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Summary contains aggregated metrics about a set of pipeline runs.
type Summary struct {
	TotalRuns       int
	DegradedRuns    int
	TotalSources    int
	TotalDuplicates int
	ByMode          map[string]int
	ByProvider      map[string]int
	ByReliability   map[source.Reliability]int
	AvgDuration     time.Duration
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// GenerateSummary processes a slice of run records to generate summary metrics.
func GenerateSummary(runs []*storage.RunRecord) Summary {
	s := Summary{
		ByMode:        make(map[string]int),
		ByProvider:    make(map[string]int),
		ByReliability: make(map[source.Reliability]int),
	}

	if len(runs) == 0 {
		return s
	}

	s.StartTime = runs[0].CreatedAt
	s.EndTime = runs[0].CreatedAt

	var total time.Duration
	for _, r := range runs {
		s.TotalRuns++
		if r.Error != "" {
			s.DegradedRuns++
		}
		s.ByMode[r.Mode]++
		provider := r.Provider
		if provider == "" {
			provider = "none"
		}
		s.ByProvider[provider]++
		s.TotalSources += len(r.Sources)
		s.TotalDuplicates += len(r.Duplicates)
		for _, src := range r.Sources {
			s.ByReliability[src.Reliability]++
		}
		total += r.Duration

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.AvgDuration = total / time.Duration(len(runs))
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes v to the provided writer as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

var funcs = template.FuncMap{
	"sourceSummary": ranker.Summary,
	"contentSummary": func(c *source.ExtractedContent) string {
		if c == nil {
			return ""
		}
		return extract.Summary(*c)
	},
	"indent": func(prefix, s string) string {
		return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
	},
	"score": func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"upper": func(r source.Reliability) string { return strings.ToUpper(string(r)) },
	"join":  strings.Join,
	"sortedKeys": func(m map[string]int) []string {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	},
}

const runTextTmpl = `Verifis Run {{.ID}}
------------------
Time:      {{.CreatedAt.Format "2006-01-02 15:04:05"}} ({{.Duration}})
Mode:      {{.Mode}}
Provider:  {{if .Provider}}{{.Provider}}{{else}}none{{end}}
Queries:   {{join .Queries " | "}}
Candidates: {{.TotalResults}} ({{len .Duplicates}} duplicates superseded)
{{- if .Error}}
Note:      {{.Error}}
{{- end}}

Sources:
{{- range $i, $s := .Sources}}

[{{$i}}] {{$s.URL}} (relevance {{score $s.RelevanceScore}})
{{indent "    " (sourceSummary $s)}}
{{- with $s.Content}}
{{indent "    " (contentSummary $s.Content)}}
{{- end}}
{{- else}}
  None
{{- end}}
`

// WriteRunText writes a human-readable account of one run.
func WriteRunText(w io.Writer, run *storage.RunRecord) error {
	t, err := template.New("runText").Funcs(funcs).Parse(runTextTmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if err := t.Execute(w, run); err != nil {
		return fmt.Errorf("render run: %w", err)
	}
	return nil
}

const runHTMLTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Verifis Run {{.ID}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .source { padding: 16px; margin: 12px 0; background: #f4f4f4; border-radius: 5px; }
  .high { border-left: 6px solid green; }
  .medium { border-left: 6px solid orange; }
  .low { border-left: 6px solid red; }
  blockquote { font-style: italic; margin: 8px 0 8px 16px; }
  .meta { color: #777; font-size: 90%; }
</style>
</head>
<body>
  <h1>Verifis Run</h1>
  <p><strong>Time:</strong> {{.CreatedAt.Format "2006-01-02 15:04:05"}} ({{.Duration}})
     <strong>Mode:</strong> {{.Mode}}
     <strong>Provider:</strong> {{if .Provider}}{{.Provider}}{{else}}none{{end}}
     <strong>Candidates:</strong> {{.TotalResults}}</p>
  <p class="meta">Queries: {{join .Queries " | "}}</p>
  {{- if .Error}}
  <p><strong>Note:</strong> {{.Error}}</p>
  {{- end}}

  {{- range .Sources}}
  <div class="source {{.Reliability}}">
    <div><a href="{{.URL}}">{{.Title}}</a> <span class="meta">{{.Domain}}, {{upper .Reliability}}, relevance {{score .RelevanceScore}}</span></div>
    <p>{{.Snippet}}</p>
    {{- if .Quote}}
    <blockquote>&ldquo;{{.Quote}}&rdquo;</blockquote>
    {{- end}}
    {{- with .Content}}
    <p class="meta">{{if .Byline}}{{.Byline}}, {{end}}{{.ReadingTime}} min read</p>
    <p>{{.Excerpt}}</p>
    {{- end}}
  </div>
  {{- else}}
  <p>No sources found.</p>
  {{- end}}
</body>
</html>
`

// WriteRunHTML writes an HTML page for one run. Page-derived text is escaped.
func WriteRunHTML(w io.Writer, run *storage.RunRecord) error {
	t, err := htmltemplate.New("runHTML").Funcs(htmltemplate.FuncMap(funcs)).Parse(runHTMLTmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if err := t.Execute(w, run); err != nil {
		return fmt.Errorf("render run: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Verifis Run Summary
-------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Total Runs:    {{.TotalRuns}}
Degraded Runs: {{.DegradedRuns}}
Avg Duration:  {{.AvgDuration}}
Sources:       {{.TotalSources}} selected, {{.TotalDuplicates}} duplicates

Modes:
{{- range $mode := sortedKeys .ByMode}}
  {{$mode}}: {{index $.ByMode $mode}}
{{- else}}
  None
{{- end}}

Providers:
{{- range $p := sortedKeys .ByProvider}}
  {{$p}}: {{index $.ByProvider $p}}
{{- else}}
  None
{{- end}}

Reliability:
{{- range $tier, $count := .ByReliability}}
  {{$tier}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Verifis Run Summary</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Verifis Run Summary</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Total Runs</div>
    <div class="stat-val">{{.TotalRuns}}</div>
  </div>
  <div class="stat-card">
    <div>Degraded</div>
    <div class="stat-val" style="color: {{if gt .DegradedRuns 0}}red{{else}}green{{end}};">{{.DegradedRuns}}</div>
  </div>
  <div class="stat-card">
    <div>Sources</div>
    <div class="stat-val">{{.TotalSources}}</div>
  </div>
  <div class="stat-card">
    <div>Avg Duration</div>
    <div class="stat-val">{{.AvgDuration}}</div>
  </div>

  <h3>Providers</h3>
  <table>
    <tr><th>Provider</th><th>Runs</th></tr>
    {{- range $p := sortedKeys .ByProvider}}
    <tr><td>{{$p}}</td><td>{{index $.ByProvider $p}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Source Reliability</h3>
  <table>
    <tr><th>Tier</th><th>Sources</th></tr>
    {{- range $tier, $count := .ByReliability}}
    <tr><td>{{$tier}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Funcs(htmltemplate.FuncMap(funcs)).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	return nil
}
