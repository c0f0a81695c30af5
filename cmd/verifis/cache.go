package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the search result cache",
		Long: `The search result cache only outlives a single command when it is
shared through Redis (redis.addr).`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print cache occupancy and the configured providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rdb, err := newRedis(cmd.Context(), opts.cfg.Redis)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}
			chain, err := newSearchChain(opts.cfg, rdb, opts.logger)
			if err != nil {
				return err
			}
			stats := chain.CacheStats(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Cached queries: %d\nProviders:      %s\n",
				stats.Size, strings.Join(chain.Providers(), ", "))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached query resolution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rdb, err := newRedis(cmd.Context(), opts.cfg.Redis)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}
			chain, err := newSearchChain(opts.cfg, rdb, opts.logger)
			if err != nil {
				return err
			}
			if err := chain.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "search cache cleared")
			return nil
		},
	})
	return cmd
}
