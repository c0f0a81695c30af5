package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FranksOps/verifis/internal/config"
	"github.com/FranksOps/verifis/internal/extract"
	"github.com/FranksOps/verifis/internal/fetcher"
	"github.com/FranksOps/verifis/internal/pipeline"
	"github.com/FranksOps/verifis/internal/ranker"
	"github.com/FranksOps/verifis/internal/search"
	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/internal/storage"
	"github.com/FranksOps/verifis/internal/storage/csvbackend"
	"github.com/FranksOps/verifis/internal/storage/jsonbackend"
	"github.com/FranksOps/verifis/internal/storage/mongobackend"
	"github.com/FranksOps/verifis/internal/storage/postgres"
	"github.com/FranksOps/verifis/internal/storage/sqlite"
	"github.com/FranksOps/verifis/pkg/cache"
	"github.com/FranksOps/verifis/pkg/httpclient"
	"github.com/FranksOps/verifis/pkg/proxy"
	"github.com/FranksOps/verifis/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

const defaultSQLiteDSN = "verifis.db"

// app holds the wired components of one process.
type app struct {
	pipeline *pipeline.Pipeline
	chain    *search.Chain
	store    storage.Backend
	redis    *redis.Client
	logger   *slog.Logger
}

func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

func newRedis(ctx context.Context, rc config.RedisConfig) (*redis.Client, error) {
	if rc.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", rc.Addr, err)
	}
	return client, nil
}

func newCache[V any](rdb *redis.Client, prefix string, cc config.CacheConfig, logger *slog.Logger) cache.Cache[V] {
	opts := cache.Options{Size: cc.Size, Fresh: cc.Fresh, MaxAge: cc.MaxAge}
	if rdb != nil {
		return cache.NewRedis[V](rdb, prefix, opts, logger)
	}
	return cache.NewMemory[V](opts)
}

func newLimiter(rdb *redis.Client, prefix string, rl config.RateLimitConfig) ratelimit.Keyed {
	if rdb != nil {
		return ratelimit.NewRedisWindow(rdb, rl.Requests, rl.Window, prefix+"rl:")
	}
	return ratelimit.NewWindow(rl.Requests, rl.Window, nil)
}

func newProxyTransport(fc config.FetchConfig) (http.RoundTripper, error) {
	if len(fc.Proxies) == 0 && fc.ProxyFile == "" {
		return nil, nil
	}
	pool := proxy.NewPool(proxy.Config{})
	if err := pool.Add(fc.Proxies...); err != nil {
		return nil, err
	}
	if fc.ProxyFile != "" {
		if err := pool.LoadFile(fc.ProxyFile); err != nil {
			return nil, err
		}
	}
	return pool.Transport(), nil
}

func openStore(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	switch sc.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendSQLite:
		dsn := sc.DSN
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		return sqlite.New(dsn)
	case config.BackendPostgres:
		return postgres.New(ctx, sc.DSN)
	case config.BackendMongo:
		return mongobackend.New(ctx, sc.DSN, sc.Database, sc.Collection)
	case config.BackendJSON:
		return jsonbackend.New(sc.Path)
	case config.BackendCSV:
		return csvbackend.New(sc.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// newSearchChain builds the provider chain with its result cache.
func newSearchChain(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (*search.Chain, error) {
	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Search.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}
	providers := search.BuildProviders(cfg.Search.Credentials(), client, logger)
	return search.NewChain(providers, search.ChainConfig{
		MaxResults: cfg.Search.MaxResults,
		Cache:      newCache[search.Resolution](rdb, cfg.Redis.Prefix+"search:", cfg.Search.Cache, logger),
		Logger:     logger,
	}), nil
}

// newApp wires every component from cfg. The caller must Close the result.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	rdb, err := newRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = rdb

	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	a.chain, err = newSearchChain(cfg, rdb, logger)
	if err != nil {
		return fail(err)
	}

	transport, err := newProxyTransport(cfg.Fetch)
	if err != nil {
		return fail(fmt.Errorf("configure proxies: %w", err))
	}
	fetchClient, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: 10,
		UserAgent:    cfg.Fetch.UserAgent,
		Transport:    transport,
	})
	if err != nil {
		return fail(fmt.Errorf("create fetch client: %w", err))
	}
	f, err := fetcher.New(fetcher.Config{
		Timeout:       cfg.Fetch.Timeout,
		MaxAttempts:   cfg.Fetch.MaxAttempts,
		RetryBackoff:  cfg.Fetch.RetryBackoff,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
		MaxTextChars:  cfg.Fetch.MaxTextChars,
		Concurrency:   cfg.Fetch.Concurrency,
		RespectRobots: cfg.Fetch.RespectRobots,
		Client:        fetchClient,
		Cache:         newCache[source.FetchedPage](rdb, cfg.Redis.Prefix+"page:", cfg.Fetch.Cache, logger),
		Limiter:       newLimiter(rdb, cfg.Redis.Prefix, cfg.Fetch.RateLimit),
		Logger:        logger,
	})
	if err != nil {
		return fail(err)
	}

	ex := extract.New(extract.Config{
		MinTextChars:   cfg.Extract.MinTextChars,
		MaxTextChars:   cfg.Extract.MaxTextChars,
		ExcerptChars:   cfg.Extract.ExcerptChars,
		WordsPerMinute: cfg.Extract.WordsPerMinute,
		Concurrency:    cfg.Extract.Concurrency,
		DetectLanguage: cfg.Extract.DetectLanguage,
		Logger:         logger,
	})

	rules, err := cfg.Source.Rules()
	if err != nil {
		return fail(err)
	}

	a.store, err = openStore(ctx, cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err))
	}

	a.pipeline, err = pipeline.New(pipeline.Config{
		Searcher:       a.chain,
		Fetcher:        f,
		Extractor:      ex,
		Deduplicator:   source.NewDeduplicator(rules, cfg.Source.Blacklist, logger),
		Ranker:         ranker.New(logger),
		Store:          a.store,
		Candidates:     cfg.Pipeline.Candidates,
		Enrich:         cfg.Pipeline.Enrich,
		SnippetSources: cfg.Pipeline.SnippetSources,
		PageSources:    cfg.Pipeline.PageSources,
		Logger:         logger,
	})
	if err != nil {
		return fail(err)
	}
	return a, nil
}
