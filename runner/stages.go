package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/saadiq/gmail-to-md/exporter"
	"github.com/saadiq/gmail-to-md/filter"
	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/source"
	"github.com/saadiq/gmail-to-md/stats"
)

var ErrMessageIDMissing = errors.New("listed message missing id")

// StateKey scopes a message identifier to the source it came from.
func StateKey(sourceName, id string) string {
	return sourceName + "#" + id
}

// NewLister adds the stage that lists identifiers from src and feeds them to the export stage.
func NewLister(src source.Source, r *Runner) {
	cfg := r.Config()
	r.AddStage("source", func(ctx context.Context) error {
		defer r.CloseIDs()

		ids, err := src.ListIDs(ctx, cfg.Query, cfg.MaxEmails)
		if err != nil {
			err = fmt.Errorf("list messages: %w", err)
			r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeError, Err: err})
			return err
		}
		r.logger.Info("messages listed", "count", len(ids), "query", cfg.Query, "max", cfg.MaxEmails)

		for _, id := range ids {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.ids <- model.Envelope{ID: id}:
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeListed, MessageID: id})
			}
		}
		return nil
	})
}

type exportStage struct {
	runner   *Runner
	source   source.Source
	exporter *exporter.Exporter
	filter   *filter.Filter
}

// NewExportStage adds the stage that fetches, filters and exports each listed
// message in order. A failing message is counted and the stage moves on.
func NewExportStage(src source.Source, exp *exporter.Exporter, flt *filter.Filter, r *Runner) error {
	if exp == nil {
		return fmt.Errorf("exporter must not be nil")
	}
	if r.Tracker() == nil {
		return fmt.Errorf("tracker must not be nil")
	}
	stage := &exportStage{runner: r, source: src, exporter: exp, filter: flt}
	r.AddStage("export", stage.run)
	return nil
}

func (s *exportStage) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-s.runner.IDs():
			if !ok {
				return nil
			}
			if envelope.Err != nil {
				s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, Err: envelope.Err})
				continue
			}
			if envelope.ID == "" {
				s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, Err: ErrMessageIDMissing})
				continue
			}
			if err := s.exportOne(ctx, envelope.ID); err != nil {
				return err
			}
		}
	}
}

// exportOne returns an error only when the run cannot continue.
func (s *exportStage) exportOne(ctx context.Context, id string) error {
	cfg := s.runner.Config()
	logger := s.runner.Logger()
	tracker := s.runner.Tracker()
	key := StateKey(cfg.SourceName(), id)

	if !cfg.Reexport && tracker.AlreadyExported(key) {
		s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeAlreadyExported, MessageID: id})
		logger.Debug("already exported", "messageID", id)
		return nil
	}

	rec, err := s.source.Fetch(ctx, id, cfg.DownloadImages)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.messageFailed(id, fmt.Errorf("fetch message %s: %w", id, err))
		return nil
	}

	if s.filter != nil && s.filter.Active() && !s.filter.Allows(rec) {
		s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeFiltered, MessageID: id})
		logger.Debug("filtered", "messageID", id, "subject", rec.Subject)
		return nil
	}

	res, err := s.exporter.Export(rec)
	if err != nil {
		s.messageFailed(id, err)
		return nil
	}

	for _, path := range res.Placement.Written {
		s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeBinaryWritten, MessageID: id, Detail: path})
	}
	for _, name := range res.Placement.Skipped {
		s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeAttachmentSkipped, MessageID: id, Detail: name})
		logger.Info("attachment over size limit", "messageID", id, "filename", name, "limitMB", cfg.SizeLimitMB)
	}
	for _, failure := range res.Placement.Failures {
		s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeBinaryFailed, MessageID: id, Err: failure})
	}

	rel := s.exporter.Relative(res.DocumentPath)
	if cfg.DryRun {
		s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeDryRunExport, MessageID: id, Detail: rel})
		logger.Debug("dry-run export", "messageID", id, "document", res.DocumentPath)
		return nil
	}

	if err := tracker.MarkExported(key, rel); err != nil {
		err = fmt.Errorf("record export of %s: %w", id, err)
		s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, MessageID: id, Err: err})
		return err
	}

	s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeExported, MessageID: id, Detail: rel})
	logger.Debug("exported message", "messageID", id, "document", res.DocumentPath)
	return nil
}

func (s *exportStage) messageFailed(id string, err error) {
	s.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, MessageID: id, Err: err})
	s.runner.Logger().Warn("message not exported", "messageID", id, "err", err)
}
