// Package worker consumes ledger events: it reconciles the affected business and mirrors
// the event to the accountant's spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"cassa/internal/amqp"
	"cassa/internal/core"
	"cassa/internal/ledger"
	"cassa/internal/log"
	"cassa/internal/sheets"
)

// Reconciler recomputes stored balances from the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, businessID string) (ledger.Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]ledger.Reconciliation, error)
}

// Consumer delivers ledger events until its context is done.
type Consumer interface {
	ConsumeLedgerEvents(ctx context.Context, handler amqp.Handler) error
}

type LedgerWorker struct {
	reconciler Reconciler
	mirror     sheets.LedgerMirror
	logger     *log.Logger
}

func New(reconciler Reconciler, mirror sheets.LedgerMirror, logger *log.Logger) *LedgerWorker {
	if mirror == nil {
		mirror = sheets.NopMirror{}
	}
	if logger == nil {
		logger = log.Discard(log.ComponentWorker)
	}
	return &LedgerWorker{reconciler: reconciler, mirror: mirror, logger: logger}
}

// HandleEvent processes one ledger event. Returning an error requeues the message.
func (w *LedgerWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	e := msg.Event
	logger := w.logger.With(
		log.FieldBusinessID, e.BusinessID,
		log.FieldRecordKind, string(e.Kind),
		log.FieldRecordID, e.RecordID,
		log.FieldOperation, string(e.Op))

	rec, err := w.reconciler.Reconcile(ctx, e.BusinessID)
	switch {
	case core.IsNotFound(err):
		// Business gone since the event was published; nothing left to mirror.
		logger.WarnContext(ctx, "Dropping event for unknown business")
		return nil
	case err != nil:
		return fmt.Errorf("reconcile business %s: %w", e.BusinessID, err)
	}

	ref, err := w.mirror.MirrorEvent(ctx, e)
	if err != nil {
		return fmt.Errorf("mirror event: %w", err)
	}
	logger.InfoContext(ctx, "Processed ledger event", "sheets_ref", ref, "repaired", rec.Repaired)
	return nil
}

// ReconcileAll checks every business once.
func (w *LedgerWorker) ReconcileAll(ctx context.Context) error {
	start := time.Now()
	recs, err := w.reconciler.ReconcileAll(ctx)
	repaired := 0
	for _, r := range recs {
		if r.Repaired {
			repaired++
		}
	}
	w.logger.InfoContext(ctx, "Reconciliation pass completed",
		"businesses", len(recs),
		"repaired", repaired,
		"duration", time.Since(start).String())
	return err
}

// RunPeriodic reconciles every business on each tick until ctx is done.
func (w *LedgerWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ReconcileAll(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic reconciliation failed", log.FieldError, err)
			}
		}
	}
}

// Run reconciles once at startup, then consumes events and reconciles on interval
// until ctx is done or the consumer fails.
func (w *LedgerWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if err := w.ReconcileAll(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup reconciliation failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeLedgerEvents(gctx, w.HandleEvent)
	})
	g.Go(func() error {
		return w.RunPeriodic(gctx, interval)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
