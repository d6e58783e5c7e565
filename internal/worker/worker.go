// Package worker runs periodic maintenance for the quota subsystem.
//
// The worker is a backstop, not a correctness requirement: expired quota
// cycles reset lazily on read, and the worker only catches profiles nobody
// has read since their cycle lapsed. It also completes abandoned chat
// sessions, purges expired auth sessions, and optionally exports daily
// usage reports to object storage.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verityair/concierge/internal/metrics"
)

// Store is the subset of repository queries the worker needs.
type Store interface {
	ResetExpiredCycles(ctx context.Context) (int64, error)
	CompleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteExpiredAuthSessions(ctx context.Context) (int64, error)
}

// Worker runs the maintenance loop.
type Worker struct {
	store   Store
	reports *ReportExporter // nil when export is disabled
	config  Config
	logger  *slog.Logger
	now     func() time.Time

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Worker. reports may be nil to disable report export.
func New(store Store, reports *ReportExporter, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		store:   store,
		reports: reports,
		config:  config,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins the maintenance loop. One run executes immediately so a
// restart doesn't delay overdue maintenance by a full poll interval.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("maintenance worker started", "poll_interval", w.config.PollInterval)
}

// Stop signals the loop to stop and waits for an in-flight run to finish,
// up to the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("stopping maintenance worker")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("maintenance worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("maintenance worker shutdown timeout exceeded")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.runOnce(ctx)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce executes every maintenance task. Tasks are independent; one
// failing does not stop the others.
func (w *Worker) runOnce(ctx context.Context) {
	w.runTask(ctx, "reset_expired_cycles", w.resetExpiredCycles)
	w.runTask(ctx, "complete_stale_sessions", w.completeStaleSessions)
	w.runTask(ctx, "purge_auth_sessions", w.purgeAuthSessions)
	if w.reports != nil {
		w.runTask(ctx, "export_usage_report", w.exportUsageReport)
	}
}

func (w *Worker) runTask(ctx context.Context, name string, task func(context.Context) error) {
	start := w.now()
	if err := task(ctx); err != nil {
		metrics.TaskFailed(name)
		w.logger.Error("maintenance task failed", "task", name, "error", err)
		return
	}
	metrics.TaskCompleted(name, w.now().Sub(start))
}

// resetExpiredCycles is the backstop for lazy cycle resets.
func (w *Worker) resetExpiredCycles(ctx context.Context) error {
	count, err := w.store.ResetExpiredCycles(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		metrics.CyclesReset.Add(float64(count))
		w.logger.Info("reset expired quota cycles", "count", count)
	}
	return nil
}

// completeStaleSessions closes chat sessions abandoned without a complete
// call. Stale sessions never consume additional quota; this is ledger
// hygiene so listings and stats don't show years-old open chats.
func (w *Worker) completeStaleSessions(ctx context.Context) error {
	cutoff := w.now().Add(-w.config.StaleSessionCutoff)
	count, err := w.store.CompleteStaleSessions(ctx, cutoff)
	if err != nil {
		return err
	}
	if count > 0 {
		w.logger.Info("completed stale chat sessions", "count", count, "cutoff", cutoff)
	}
	return nil
}

func (w *Worker) purgeAuthSessions(ctx context.Context) error {
	count, err := w.store.DeleteExpiredAuthSessions(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		w.logger.Info("purged expired auth sessions", "count", count)
	}
	return nil
}

func (w *Worker) exportUsageReport(ctx context.Context) error {
	day := w.now()
	since := day.Add(-w.config.ReportWindow)

	key, err := w.reports.Export(ctx, since, day)
	if err != nil {
		return err
	}
	w.logger.Info("exported usage report", "key", key)
	return nil
}
