package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Fetch.Timeout != 10*time.Second || cfg.Fetch.MaxAttempts != 3 || cfg.Fetch.Concurrency != 3 {
		t.Errorf("unexpected fetch defaults %+v", cfg.Fetch)
	}
	if cfg.Fetch.MaxBodyBytes != 5<<20 {
		t.Errorf("MaxBodyBytes = %d", cfg.Fetch.MaxBodyBytes)
	}
	if cfg.Fetch.Cache.Fresh != 5*time.Minute || cfg.Fetch.Cache.MaxAge != 15*time.Minute {
		t.Errorf("unexpected page cache defaults %+v", cfg.Fetch.Cache)
	}
	if cfg.Fetch.RateLimit.Requests != 10 || cfg.Fetch.RateLimit.Window != time.Minute {
		t.Errorf("unexpected rate limit defaults %+v", cfg.Fetch.RateLimit)
	}
	if cfg.Search.Cache.Fresh != 5*time.Minute {
		t.Errorf("unexpected search cache ttl %v", cfg.Search.Cache.Fresh)
	}
	if cfg.Pipeline != (PipelineConfig{Candidates: 8, Enrich: 5, SnippetSources: 2, PageSources: 3}) {
		t.Errorf("unexpected pipeline defaults %+v", cfg.Pipeline)
	}
	if !reflect.DeepEqual(cfg.Source.Blacklist, source.DefaultBlacklist) {
		t.Errorf("blacklist = %v", cfg.Source.Blacklist)
	}
	if cfg.Storage.Backend != BackendNone || cfg.Server.Addr != ":8080" || cfg.Log.Level != "info" {
		t.Errorf("unexpected defaults %+v %+v %+v", cfg.Storage, cfg.Server, cfg.Log)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verifis.yaml")
	yml := `
fetch:
  timeout: 20s
  respect_robots: true
search:
  brave:
    api_key: from-file
  max_results: 7
storage:
  backend: json
  path: runs.ndjson
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VERIFIS_SEARCH_BRAVE_API_KEY", "from-env")
	t.Setenv("VERIFIS_PIPELINE_ENRICH", "4")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("addr", ":8080", "")
	fs.String("log-level", "info", "")
	if err := fs.Parse([]string{"--addr", ":9999"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, map[string]*pflag.Flag{
		"server.addr": fs.Lookup("addr"),
		"log.level":   fs.Lookup("log-level"),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Fetch.Timeout != 20*time.Second || !cfg.Fetch.RespectRobots {
		t.Errorf("file values not applied: %+v", cfg.Fetch)
	}
	if cfg.Search.Brave.APIKey != "from-env" {
		t.Errorf("env should override file, got %q", cfg.Search.Brave.APIKey)
	}
	if cfg.Search.MaxResults != 7 || cfg.Pipeline.Enrich != 4 {
		t.Errorf("max results %d enrich %d", cfg.Search.MaxResults, cfg.Pipeline.Enrich)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("flag should override default, got %q", cfg.Server.Addr)
	}
	// An unset flag leaves the file value alone.
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Storage.Backend != BackendJSON || cfg.Storage.Path != "runs.ndjson" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("", nil)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "dynamo" }, "unknown storage backend"},
		{"csv without path", func(c *Config) { c.Storage.Backend = BackendCSV }, "storage.path"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = BackendPostgres }, "storage.dsn"},
		{"sqlite without dsn", func(c *Config) { c.Storage.Backend = BackendSQLite }, ""},
		{"enrich above candidates", func(c *Config) { c.Pipeline.Enrich = 9 }, "pipeline.candidates"},
		{"zero rate limit", func(c *Config) { c.Fetch.RateLimit.Requests = 0 }, "rate_limit"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("expected error containing %q, got %v", tt.errSub, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	lvl, err := LogConfig{Level: "warn"}.SlogLevel()
	if err != nil || lvl != slog.LevelWarn {
		t.Errorf("SlogLevel = %v, %v", lvl, err)
	}
}

func TestCredentials(t *testing.T) {
	s := SearchConfig{
		RequestsPerSecond: 2,
		Google:            GoogleConfig{APIKey: "g", CX: "cx"},
		LLM:               LLMConfig{Name: "perplexity", APIKey: "k", Model: "sonar"},
		DuckDuckGo:        DuckDuckGoConfig{Disabled: true},
	}
	c := s.Credentials()
	if c.GoogleAPIKey != "g" || c.GoogleCX != "cx" || c.LLMName != "perplexity" || c.LLMModel != "sonar" {
		t.Errorf("unexpected credentials %+v", c)
	}
	if !c.DuckDuckGoDisabled || c.RequestsPerSecond != 2 {
		t.Errorf("unexpected credentials %+v", c)
	}
}

func TestSourceRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("domains:\n  high: [\"example.org\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err := SourceConfig{RulesFile: path}.Rules()
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if got := rules.Classify("example.org"); got != source.High {
		t.Errorf("Classify = %q, want high", got)
	}

	if _, err := (SourceConfig{RulesFile: filepath.Join(t.TempDir(), "missing.yaml")}).Rules(); err == nil {
		t.Error("expected error for a missing rules file")
	}
}
