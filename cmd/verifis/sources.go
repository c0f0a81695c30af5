package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FranksOps/verifis/internal/pipeline"
	"github.com/FranksOps/verifis/internal/report"
	"github.com/spf13/cobra"
)

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		mode   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "sources [text]",
		Short: "Run one source lookup and print the result",
		Long: `Derives search queries from the text, searches the configured providers,
fetches and ranks the candidate pages and prints the selected sources.
The text is taken from the arguments, from --file, or from stdin with --file -.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := pipeline.ParseMode(mode)
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			text, err := readInput(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Run(cmd.Context(), pipeline.Request{Text: text, Mode: m})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch f {
			case report.FormatText:
				return report.WriteRunText(out, res.Record)
			case report.FormatHTML:
				return report.WriteRunHTML(out, res.Record)
			default:
				return report.WriteJSON(out, res.Output)
			}
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the text from a file, or - for stdin")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(pipeline.ModeSnippet), "lookup mode (snippet, page)")
	cmd.Flags().StringVarP(&format, "format", "o", string(report.FormatJSON), "output format (json, text, html)")
	return cmd
}

func readInput(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", errors.New("no input text: pass it as arguments or use --file")
	}
}
