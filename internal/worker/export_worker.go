package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"housesplit/internal/amqp"
	"housesplit/internal/core"
	"housesplit/internal/metrics"
	"housesplit/internal/sheets"
)

// Summarizer computes month summaries. The worker runs in its own process,
// so it drops any cached copy before recomputing.
type Summarizer interface {
	Summary(ctx context.Context, month core.MonthKey) (core.MonthSummary, error)
	Invalidate(months ...core.MonthKey)
}

// ExportWorker pushes recomputed month summaries to an external exporter
// whenever expenses change, with a periodic pass as a safety net for missed
// messages.
type ExportWorker struct {
	summaries Summarizer
	exporter  sheets.SummaryExporter
	backend   string
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportWorker(summaries Summarizer, exporter sheets.SummaryExporter, backend string, interval time.Duration) *ExportWorker {
	return &ExportWorker{
		summaries: summaries,
		exporter:  exporter,
		backend:   backend,
		interval:  interval,
		now:       time.Now,
	}
}

// HandleExpenseChanged processes a single expense.changed message from AMQP.
// Every month in the message is exported; the first failure does not stop
// the rest, and the joined error makes the message requeue.
func (w *ExportWorker) HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	slog.InfoContext(ctx, "Processing expense change",
		"action", msg.Action,
		"expense_ids", msg.ExpenseIDs,
		"month_keys", msg.MonthKeys)

	if len(msg.MonthKeys) == 0 {
		return nil
	}
	w.summaries.Invalidate(msg.MonthKeys...)
	return w.exportMonths(ctx, msg.MonthKeys)
}

// ExportRecent recomputes and exports months regardless of messages.
func (w *ExportWorker) ExportRecent(ctx context.Context, months []core.MonthKey) error {
	w.summaries.Invalidate(months...)
	return w.exportMonths(ctx, months)
}

// RecentMonths returns the current and previous month relative to now.
func RecentMonths(now time.Time) []core.MonthKey {
	current := core.MonthKeyOf(now)
	return []core.MonthKey{current.Prev(), current}
}

func (w *ExportWorker) exportMonths(ctx context.Context, months []core.MonthKey) error {
	var errs []error
	for _, month := range months {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := w.exportMonth(ctx, month); err != nil {
			slog.ErrorContext(ctx, "Failed to export month", "month_key", month, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *ExportWorker) exportMonth(ctx context.Context, month core.MonthKey) error {
	sum, err := w.summaries.Summary(ctx, month)
	if err != nil {
		metrics.Exports.WithLabelValues(w.backend, "error").Inc()
		return fmt.Errorf("compute summary for %s: %w", month, err)
	}

	ref, err := w.exporter.ExportMonth(ctx, sum)
	if err != nil {
		metrics.Exports.WithLabelValues(w.backend, "error").Inc()
		return fmt.Errorf("export %s: %w", month, err)
	}
	metrics.Exports.WithLabelValues(w.backend, "ok").Inc()

	slog.InfoContext(ctx, "Exported month",
		"month_key", month,
		"ref", ref,
		"total_cents", sum.Total.Cents,
		"outstanding_cents", sum.Outstanding().Cents)
	return nil
}

// Start runs ExportRecent once, then on every interval until Stop is called
// or ctx ends. Returns an error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("export worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Export worker started", "interval", w.interval, "backend", w.backend)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}
}

func (w *ExportWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.periodic(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.periodic(ctx)
		}
	}
}

func (w *ExportWorker) periodic(ctx context.Context) {
	if err := w.ExportRecent(ctx, RecentMonths(w.now())); err != nil {
		slog.ErrorContext(ctx, "Periodic export failed", "error", err)
	}
}
