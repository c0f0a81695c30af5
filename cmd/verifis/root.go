package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/FranksOps/verifis/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "verifis",
		Short:        "Find and rank web sources that corroborate a piece of text",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile, flagBindings(cmd))
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("storage", "none", "run history backend (none, sqlite, postgres, mongo, json, csv)")
	pf.String("storage-dsn", "", "sqlite/postgres DSN or mongo URI")
	pf.String("storage-path", "", "file for the json and csv backends")
	pf.String("redis-addr", "", "redis address for shared caches and rate limits")

	cmd.AddCommand(
		newSourcesCmd(opts),
		newServeCmd(opts),
		newRunsCmd(opts),
		newCacheCmd(opts),
	)
	return cmd
}

// flagKeys maps config keys to flag names. Flags that a subcommand does not
// define are skipped.
var flagKeys = map[string]string{
	"log.level":       "log-level",
	"log.format":      "log-format",
	"storage.backend": "storage",
	"storage.dsn":     "storage-dsn",
	"storage.path":    "storage-path",
	"redis.addr":      "redis-addr",
	"server.addr":     "addr",
	"metrics.port":    "metrics-port",
}

func flagBindings(cmd *cobra.Command) map[string]*pflag.Flag {
	out := make(map[string]*pflag.Flag, len(flagKeys))
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			out[key] = f
		}
	}
	return out
}

func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	level, err := lc.SlogLevel()
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch lc.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}
}
