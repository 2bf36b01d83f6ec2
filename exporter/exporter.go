// Package exporter writes one message record as a document plus its binaries.
package exporter

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/saadiq/gmail-to-md/document"
	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/placement"
	"github.com/saadiq/gmail-to-md/sanitize"
	"github.com/saadiq/gmail-to-md/sink"
)

const (
	DefaultLabel = "export"

	documentExt      = ".md"
	noSubject        = "no_subject"
	timestampLayout  = "2006-01-02_15-04-05"
	exportDateLayout = "2006-01-02"
	attachmentsDir   = "attachments"
	imagesDir        = "images"
)

type Options struct {
	OutputDir string
	// Label names the folder documents are grouped under.
	Label string
	// RunDate selects the <date>_export folder.
	RunDate        time.Time
	RemoveQuotes   bool
	DownloadImages bool
	// SizeLimitBytes bounds saved attachments; negative means unlimited.
	SizeLimitBytes int64
	BoldPlainLines bool
}

type Result struct {
	ID           string
	DocumentPath string
	Placement    placement.Result
}

type Exporter struct {
	sink      sink.Sink
	assembler *document.Assembler
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

func New(s sink.Sink, opts Options, logger *slog.Logger) *Exporter {
	if opts.RunDate.IsZero() {
		opts.RunDate = time.Now()
	}
	if strings.TrimSpace(opts.Label) == "" {
		opts.Label = DefaultLabel
	}
	return &Exporter{
		sink:      s,
		assembler: document.NewAssembler(nil),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Folder is the directory holding this run's documents.
func (e *Exporter) Folder() string {
	return filepath.Join(
		e.opts.OutputDir,
		e.opts.RunDate.Format(exportDateLayout)+"_export",
		sanitize.Sanitize(e.opts.Label, sanitize.DefaultMaxLength),
	)
}

// Sink returns the sink documents are written to.
func (e *Exporter) Sink() sink.Sink {
	return e.sink
}

// Export writes rec. The document is written first so its final name is
// known, binaries are placed under directories named after it, and the
// document is then rewritten with the resolved paths.
func (e *Exporter) Export(rec model.MessageRecord) (Result, error) {
	folder := e.Folder()
	docPath := sanitize.UniquePath(filepath.Join(folder, e.documentName(rec)), e.sink.Exists)
	docOpts := document.Options{RemoveQuotes: e.opts.RemoveQuotes, BoldPlainLines: e.opts.BoldPlainLines}

	draft := e.assembler.Assemble(rec, docOpts)
	if err := e.sink.WriteText(docPath, draft.String()); err != nil {
		return Result{}, errors.Wrapf(err, "write document for %s", rec.ID)
	}

	result := Result{ID: rec.ID, DocumentPath: docPath}
	if !e.opts.DownloadImages {
		return result, nil
	}

	stem := strings.TrimSuffix(filepath.Base(docPath), documentExt)
	result.Placement = placement.Place(e.sink, rec.Attachments, rec.InlineImages, placement.Options{
		AttachmentsDir:  filepath.Join(folder, attachmentsDir, stem),
		InlineImagesDir: filepath.Join(folder, imagesDir, stem),
		BaseDir:         folder,
		SizeLimitBytes:  e.opts.SizeLimitBytes,
	})

	for _, err := range result.Placement.Failures {
		if e.logger != nil {
			e.logger.Warn("binary not saved", "messageID", rec.ID, "err", err)
		}
	}

	placed := rec
	placed.Attachments = result.Placement.Attachments
	placed.InlineImages = result.Placement.InlineImages
	docOpts.IncludeImagePaths = true

	final := e.assembler.Assemble(placed, docOpts)
	if err := e.sink.WriteText(docPath, final.String()); err != nil {
		return result, errors.Wrapf(err, "rewrite document for %s", rec.ID)
	}
	return result, nil
}

// Relative returns path relative to Folder, using / separators.
func (e *Exporter) Relative(path string) string {
	rel, err := filepath.Rel(e.Folder(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (e *Exporter) documentName(rec model.MessageRecord) string {
	ts := rec.ParsedDate
	if ts.IsZero() {
		ts = e.now()
	}
	subject := rec.Subject
	if subject == "" {
		subject = noSubject
	}
	return ts.Format(timestampLayout) + "_" + sanitize.Sanitize(subject, sanitize.DefaultMaxLength) + documentExt
}
