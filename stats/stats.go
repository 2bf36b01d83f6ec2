package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Stage string

const (
	StageSource Stage = "source"
	StageExport Stage = "export"
)

type EventType string

const (
	EventTypeListed            EventType = "listed"
	EventTypeExported          EventType = "exported"
	EventTypeDryRunExport      EventType = "dry_run_exported"
	EventTypeAlreadyExported   EventType = "already_exported"
	EventTypeFiltered          EventType = "filtered"
	EventTypeBinaryWritten     EventType = "binary_written"
	EventTypeAttachmentSkipped EventType = "attachment_skipped"
	EventTypeBinaryFailed      EventType = "binary_failed"
	EventTypeError             EventType = "error"
)

type Event struct {
	Stage     Stage
	Type      EventType
	MessageID string
	Err       error
	Detail    string
}

type Summary struct {
	Listed             int
	Exported           int
	DryRunExported     int
	AlreadyExported    int
	Filtered           int
	BinariesWritten    int
	AttachmentsSkipped int
	BinaryFailures     int
	Errors             int
	LastError          error
	// Documents holds the paths of exported documents in export order.
	Documents []string
}

// Failed counts messages that could not be exported.
func (s Summary) Failed() int {
	return s.Errors
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"listed", s.Listed,
		"exported", s.Exported,
		"dryRunExported", s.DryRunExported,
		"alreadyExported", s.AlreadyExported,
		"filtered", s.Filtered,
		"binariesWritten", s.BinariesWritten,
		"attachmentsSkipped", s.AttachmentsSkipped,
		"binaryFailures", s.BinaryFailures,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	summary.Documents = append([]string(nil), c.summary.Documents...)
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeListed:
		c.summary.Listed++
	case EventTypeExported, EventTypeDryRunExport:
		if evt.Type == EventTypeExported {
			c.summary.Exported++
		} else {
			c.summary.DryRunExported++
		}
		if evt.Detail != "" {
			c.summary.Documents = append(c.summary.Documents, evt.Detail)
		}
	case EventTypeAlreadyExported:
		c.summary.AlreadyExported++
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeBinaryWritten:
		c.summary.BinariesWritten++
	case EventTypeAttachmentSkipped:
		c.summary.AttachmentsSkipped++
	case EventTypeBinaryFailed:
		c.summary.BinaryFailures++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
	done      chan struct{}
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
		done:      make(chan struct{}),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	defer close(r.done)
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// Done is closed once the event stream has been drained.
func (r *Reporter) Done() <-chan struct{} {
	return r.done
}

// Started returns when the reporter was created.
func (r *Reporter) Started() time.Time {
	return r.started
}

// PrintTop writes the top N most frequent items in a map to w.
func PrintTop(w io.Writer, m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	pairs := make([]pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value == pairs[j].Value {
			return pairs[i].Key < pairs[j].Key
		}
		return pairs[i].Value > pairs[j].Value
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Fprintf(w, "%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}
