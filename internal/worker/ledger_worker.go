// Package worker runs the background side of fintrack: periodic
// reconciliation sweeps plus reacting to ledger events from AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"

	"golang.org/x/sync/errgroup"
)

// EventSource delivers ledger events until ctx ends.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEventMessage) error) error
}

// Reconciler is the part of services.Reconciler the worker drives.
type Reconciler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// LedgerWorker keeps account totals honest: the reconciler sweeps on a
// timer and every consumed event re-checks the account it touched.
type LedgerWorker struct {
	reconciler  Reconciler
	events      EventSource
	stopTimeout time.Duration
}

// NewLedgerWorker wires the worker. events may be nil, in which case only
// the periodic sweeps run.
func NewLedgerWorker(reconciler Reconciler, events EventSource) *LedgerWorker {
	return &LedgerWorker{
		reconciler:  reconciler,
		events:      events,
		stopTimeout: 10 * time.Second,
	}
}

// Run blocks until ctx is cancelled or a component fails. A cancelled
// context is a clean exit.
func (w *LedgerWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.reconciler.Start(gctx); err != nil {
			return fmt.Errorf("start reconciler: %w", err)
		}
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), w.stopTimeout)
		defer cancel()
		return w.reconciler.Stop(stopCtx)
	})

	if w.events != nil {
		g.Go(func() error {
			err := w.events.ConsumeLedgerEvents(gctx, w.handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume ledger events: %w", err)
			}
			return nil
		})
	} else {
		slog.InfoContext(ctx, "No event source configured, relying on periodic sweeps only")
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *LedgerWorker) handle(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.DebugContext(ctx, "Processing ledger event",
		"type", msg.Type,
		"owner_id", msg.OwnerID,
		"account_id", msg.AccountID)
	return w.reconciler.HandleEvent(ctx, msg)
}
