package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saadiq/gmail-to-md/config"
	"github.com/saadiq/gmail-to-md/model"
	"github.com/saadiq/gmail-to-md/state"
	"github.com/saadiq/gmail-to-md/stats"
)

type StageFunc func(context.Context) error

type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	ids    chan model.Envelope
	events chan stats.Event

	tracker state.Tracker

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeIDsOnce    sync.Once
	closeEventsOnce sync.Once
	since           time.Time
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	tracker, err := state.Open(cfg.StateBackend, cfg.StateDir, !cfg.DryRun)
	if err != nil {
		return nil, fmt.Errorf("state tracker: %w", err)
	}
	return NewWithTracker(cfg, tracker, logger), nil
}

// NewWithTracker builds a runner around an already opened tracker. The
// runner closes it when the pipeline finishes.
func NewWithTracker(cfg config.Config, tracker state.Tracker, logger *slog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		ids:     make(chan model.Envelope, 32),
		events:  make(chan stats.Event, 128),
		tracker: tracker,
	}
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) Tracker() state.Tracker {
	return r.tracker
}

func (r *Runner) IDWriter() chan<- model.Envelope {
	return r.ids
}

func (r *Runner) IDs() <-chan model.Envelope {
	return r.ids
}

func (r *Runner) CloseIDs() {
	r.closeIDsOnce.Do(func() {
		close(r.ids)
	})
}

func (r *Runner) EmitEvent(evt stats.Event) {
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, r.events); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

// Start blocks until every stage and stats subscriber has returned.
func (r *Runner) Start() error {
	r.since = time.Now()

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	if r.tracker != nil {
		if err := r.tracker.Close(); err != nil {
			r.fail(fmt.Errorf("close state tracker: %w", err))
		}
	}

	r.errMu.Lock()
	err := r.err
	r.errMu.Unlock()

	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration)
	return nil
}

// Interrupt stops every stage; Start then returns err.
func (r *Runner) Interrupt(err error) {
	r.fail(err)
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
