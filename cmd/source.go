package cmd

import (
	"fmt"
	"log/slog"

	"github.com/saadiq/gmail-to-md/config"
	"github.com/saadiq/gmail-to-md/filter"
	"github.com/saadiq/gmail-to-md/imap"
	"github.com/saadiq/gmail-to-md/mbox"
	"github.com/saadiq/gmail-to-md/source"
)

// OpenSource builds the message source selected by cfg.
func OpenSource(cfg config.Config, logger *slog.Logger) (source.Source, error) {
	if cfg.SourceKind() == config.SourceMbox {
		src, err := mbox.Open(mbox.Options{Path: cfg.MboxPath}, logger)
		if err != nil {
			return nil, fmt.Errorf("mbox.Open: %w", err)
		}
		return src, nil
	}

	src, err := imap.NewSource(imap.Options{
		Host:               cfg.IMAPHost,
		Port:               cfg.IMAPPort,
		Username:           cfg.IMAPUser,
		Password:           cfg.IMAPPass,
		UseTLS:             cfg.UseTLS,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Mailbox:            cfg.Mailbox,
		SinceDays:          cfg.SinceDays,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("imap.NewSource: %w", err)
	}
	return src, nil
}

// NewFilter compiles the include/exclude patterns of cfg.
func NewFilter(cfg config.Config) (*filter.Filter, error) {
	f, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		return nil, fmt.Errorf("create filter: %w", err)
	}
	return f, nil
}
