// Package config loads verifis settings with viper. Precedence, lowest
// first: built-in defaults, an optional YAML file, VERIFIS_* environment
// variables, then bound command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/verifis/internal/search"
	"github.com/FranksOps/verifis/internal/source"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key; "fetch.timeout" is read
// from VERIFIS_FETCH_TIMEOUT.
const EnvPrefix = "VERIFIS"

// Storage backends accepted by storage.backend.
const (
	BackendNone     = "none"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendJSON     = "json"
	BackendCSV      = "csv"
)

type Config struct {
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Search   SearchConfig   `mapstructure:"search"`
	Source   SourceConfig   `mapstructure:"source"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type CacheConfig struct {
	Size   int           `mapstructure:"size"`
	Fresh  time.Duration `mapstructure:"fresh"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type FetchConfig struct {
	Timeout       time.Duration   `mapstructure:"timeout"`
	MaxAttempts   int             `mapstructure:"max_attempts"`
	RetryBackoff  time.Duration   `mapstructure:"retry_backoff"`
	MaxBodyBytes  int64           `mapstructure:"max_body_bytes"`
	MaxTextChars  int             `mapstructure:"max_text_chars"`
	Concurrency   int             `mapstructure:"concurrency"`
	UserAgent     string          `mapstructure:"user_agent"`
	RespectRobots bool            `mapstructure:"respect_robots"`
	// Proxies are egress proxies rotated per connection; ProxyFile adds
	// one URL per line.
	Proxies   []string        `mapstructure:"proxies"`
	ProxyFile string          `mapstructure:"proxy_file"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

type GoogleConfig struct {
	APIKey   string `mapstructure:"api_key"`
	CX       string `mapstructure:"cx"`
	Endpoint string `mapstructure:"endpoint"`
}

type LLMConfig struct {
	Name    string `mapstructure:"name"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type DuckDuckGoConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type SearchConfig struct {
	Timeout           time.Duration    `mapstructure:"timeout"`
	MaxResults        int              `mapstructure:"max_results"`
	RequestsPerSecond float64          `mapstructure:"requests_per_second"`
	Cache             CacheConfig      `mapstructure:"cache"`
	Brave             ProviderConfig   `mapstructure:"brave"`
	Google            GoogleConfig     `mapstructure:"google"`
	Bing              ProviderConfig   `mapstructure:"bing"`
	LLM               LLMConfig        `mapstructure:"llm"`
	DuckDuckGo        DuckDuckGoConfig `mapstructure:"duckduckgo"`
}

// Credentials converts the provider settings for search.BuildProviders.
func (s SearchConfig) Credentials() search.Credentials {
	return search.Credentials{
		BraveAPIKey:        s.Brave.APIKey,
		BraveEndpoint:      s.Brave.Endpoint,
		GoogleAPIKey:       s.Google.APIKey,
		GoogleCX:           s.Google.CX,
		GoogleEndpoint:     s.Google.Endpoint,
		BingAPIKey:         s.Bing.APIKey,
		BingEndpoint:       s.Bing.Endpoint,
		LLMName:            s.LLM.Name,
		LLMAPIKey:          s.LLM.APIKey,
		LLMBaseURL:         s.LLM.BaseURL,
		LLMModel:           s.LLM.Model,
		DuckDuckGoDisabled: s.DuckDuckGo.Disabled,
		DuckDuckGoEndpoint: s.DuckDuckGo.Endpoint,
		RequestsPerSecond:  s.RequestsPerSecond,
	}
}

type SourceConfig struct {
	Blacklist []string `mapstructure:"blacklist"`
	// RulesFile overrides the built-in reliability lists.
	RulesFile string `mapstructure:"rules_file"`
}

// Rules returns the reliability rules, read from RulesFile when set.
func (s SourceConfig) Rules() (source.Rules, error) {
	if s.RulesFile == "" {
		return source.DefaultRules(), nil
	}
	return source.LoadRules(s.RulesFile)
}

type ExtractConfig struct {
	DetectLanguage bool `mapstructure:"detect_language"`
	MinTextChars   int  `mapstructure:"min_text_chars"`
	MaxTextChars   int  `mapstructure:"max_text_chars"`
	ExcerptChars   int  `mapstructure:"excerpt_chars"`
	WordsPerMinute int  `mapstructure:"words_per_minute"`
	Concurrency    int  `mapstructure:"concurrency"`
}

type PipelineConfig struct {
	Candidates     int `mapstructure:"candidates"`
	Enrich         int `mapstructure:"enrich"`
	SnippetSources int `mapstructure:"snippet_sources"`
	PageSources    int `mapstructure:"page_sources"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// DSN is the sqlite or postgres DSN, or the mongo URI.
	DSN string `mapstructure:"dsn"`
	// Path is the file used by the json and csv backends.
	Path       string `mapstructure:"path"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RedisConfig struct {
	// Addr enables Redis-backed caches and rate limiting when set.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MetricsConfig struct {
	// Port 0 disables the metrics listener.
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Every key needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_backoff", time.Second)
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.max_text_chars", 10000)
	v.SetDefault("fetch.concurrency", 3)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.proxies", []string{})
	v.SetDefault("fetch.proxy_file", "")
	v.SetDefault("fetch.cache.size", 500)
	v.SetDefault("fetch.cache.fresh", 5*time.Minute)
	v.SetDefault("fetch.cache.max_age", 15*time.Minute)
	v.SetDefault("fetch.rate_limit.requests", 10)
	v.SetDefault("fetch.rate_limit.window", time.Minute)

	v.SetDefault("search.timeout", 10*time.Second)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.requests_per_second", 0.0)
	v.SetDefault("search.cache.size", 500)
	v.SetDefault("search.cache.fresh", 5*time.Minute)
	v.SetDefault("search.cache.max_age", 5*time.Minute)
	for _, k := range []string{
		"brave.api_key", "brave.endpoint",
		"google.api_key", "google.cx", "google.endpoint",
		"bing.api_key", "bing.endpoint",
		"llm.name", "llm.api_key", "llm.base_url", "llm.model",
		"duckduckgo.endpoint",
	} {
		v.SetDefault("search."+k, "")
	}
	v.SetDefault("search.duckduckgo.disabled", false)

	v.SetDefault("source.blacklist", source.DefaultBlacklist)
	v.SetDefault("source.rules_file", "")

	v.SetDefault("extract.detect_language", true)
	v.SetDefault("extract.min_text_chars", 100)
	v.SetDefault("extract.max_text_chars", 50000)
	v.SetDefault("extract.excerpt_chars", 300)
	v.SetDefault("extract.words_per_minute", 200)
	v.SetDefault("extract.concurrency", 3)

	v.SetDefault("pipeline.candidates", 8)
	v.SetDefault("pipeline.enrich", 5)
	v.SetDefault("pipeline.snippet_sources", 2)
	v.SetDefault("pipeline.page_sources", 3)

	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.database", "verifis")
	v.SetDefault("storage.collection", "runs")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "verifis:")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("metrics.port", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load builds a Config. file may be empty. flags maps config keys to
// command-line flags; a flag only overrides when it was set explicitly.
func Load(file string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	for key, f := range flags {
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendNone, BackendSQLite, BackendPostgres, BackendMongo:
	case BackendJSON, BackendCSV:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if (c.Storage.Backend == BackendPostgres || c.Storage.Backend == BackendMongo) && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the %s backend", c.Storage.Backend)
	}

	if c.Pipeline.Candidates < c.Pipeline.Enrich {
		return fmt.Errorf("pipeline.candidates (%d) must be at least pipeline.enrich (%d)",
			c.Pipeline.Candidates, c.Pipeline.Enrich)
	}
	if c.Fetch.RateLimit.Requests <= 0 || c.Fetch.RateLimit.Window <= 0 {
		return fmt.Errorf("fetch.rate_limit needs a positive request count and window")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return lvl, nil
}
