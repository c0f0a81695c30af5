package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/verifis/internal/config"
	"github.com/FranksOps/verifis/internal/report"
	"github.com/FranksOps/verifis/internal/storage"
	"github.com/spf13/cobra"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var (
		filter  storage.Filter
		since   time.Duration
		format  string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Query the persisted run history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if opts.cfg.Storage.Backend == config.BackendNone {
				return errors.New("no storage backend configured: set storage.backend or --storage")
			}
			if since > 0 {
				t := time.Now().UTC().Add(-since)
				filter.Since = &t
			}

			store, err := openStore(cmd.Context(), opts.cfg.Storage)
			if err != nil {
				return fmt.Errorf("open %s storage: %w", opts.cfg.Storage.Backend, err)
			}
			defer store.Close()

			runs, err := store.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary {
				s := report.GenerateSummary(runs)
				switch f {
				case report.FormatJSON:
					return report.WriteJSON(out, s)
				case report.FormatHTML:
					return report.WriteHTML(out, s)
				default:
					return report.WriteText(out, s)
				}
			}

			switch f {
			case report.FormatJSON:
				return report.WriteJSON(out, runs)
			case report.FormatHTML:
				for _, r := range runs {
					if err := report.WriteRunHTML(out, r); err != nil {
						return err
					}
				}
			default:
				for _, r := range runs {
					if err := report.WriteRunText(out, r); err != nil {
						return err
					}
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&filter.Mode, "mode", "", "only runs in this mode")
	fl.StringVar(&filter.Provider, "provider", "", "only runs answered by this provider")
	fl.DurationVar(&since, "since", 0, "only runs newer than this age, e.g. 24h")
	fl.IntVar(&filter.Limit, "limit", 20, "maximum runs to return (0 for all)")
	fl.IntVar(&filter.Offset, "offset", 0, "runs to skip, newest first")
	fl.StringVarP(&format, "format", "o", string(report.FormatText), "output format (text, json, html)")
	fl.BoolVar(&summary, "summary", false, "print aggregate statistics instead of individual runs")
	return cmd
}
