package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/saadiq/gmail-to-md/config"
	"github.com/saadiq/gmail-to-md/filter"
	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/report"
	"github.com/saadiq/gmail-to-md/source"
)

const snippetLength = 80

// Prepare loads the configuration and logger for a subcommand. The returned
// cleanup must be called once the command finishes.
type Prepare func(cmd *cobra.Command) (config.Config, *slog.Logger, func() error, error)

type ListOptions struct {
	Snippets bool
	Top      int
}

// NewListCommand returns the command that prints matching messages without exporting them.
func NewListCommand(prepare Prepare) *cobra.Command {
	var opts ListOptions

	c := &cobra.Command{
		Use:   "list",
		Short: "List messages matching the query without exporting them",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, logger, cleanup, err := prepare(c)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			src, err := OpenSource(cfg, logger)
			if err != nil {
				return err
			}
			defer src.Close()

			flt, err := NewFilter(cfg)
			if err != nil {
				return err
			}

			return List(c.Context(), src, flt, cfg, opts, report.New(os.Stdout, "info"), logger)
		},
	}

	c.Flags().BoolVar(&opts.Snippets, "snippets", false, "Show a short plain-text preview of each body")
	c.Flags().IntVarP(&opts.Top, "top", "t", 0, "Also print the N most frequent senders")
	return c
}

// List prints the headers of every listed message that passes flt. Messages
// that cannot be read are logged and left out.
func List(ctx context.Context, src source.Source, flt *filter.Filter, cfg config.Config, opts ListOptions, printer *report.Printer, logger *slog.Logger) error {
	ids, err := src.ListIDs(ctx, cfg.Query, cfg.MaxEmails)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	needBody := opts.Snippets || (flt != nil && flt.Active())
	rows := make([]model.Headers, 0, len(ids))
	senders := make(map[string]int)
	var snippets map[string]string
	if opts.Snippets {
		snippets = make(map[string]string, len(ids))
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var h model.Headers
		if needBody {
			rec, err := src.Fetch(ctx, id, false)
			if err != nil {
				logger.Warn("message not listed", "messageID", id, "err", err)
				continue
			}
			if flt != nil && flt.Active() && !flt.Allows(rec) {
				continue
			}
			h = model.Headers{ID: rec.ID, Subject: rec.Subject, From: rec.From, To: rec.To, Date: rec.Date}
			if snippets != nil {
				snippets[id] = report.Snippet(rec, snippetLength)
			}
		} else {
			h, err = src.Headers(ctx, id)
			if err != nil {
				logger.Warn("message not listed", "messageID", id, "err", err)
				continue
			}
		}

		if h.ID == "" {
			h.ID = id
		}
		rows = append(rows, h)
		if h.From != "" {
			senders[h.From]++
		}
	}

	if err := printer.Headers(rows, snippets); err != nil {
		return fmt.Errorf("render listing: %w", err)
	}
	if opts.Top > 0 {
		printer.TopSenders(senders, opts.Top)
	}
	logger.Debug("listing complete", "listed", len(ids), "shown", len(rows))
	return nil
}
