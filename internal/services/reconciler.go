package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	// Interval between full sweeps (default: 10m)
	Interval time.Duration

	// OwnerID restricts sweeps to one owner; empty means everyone.
	OwnerID string
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{Interval: 10 * time.Minute}
}

// ReconcileReport summarises one sweep.
type ReconcileReport struct {
	Checked  int
	Repaired int
	Failed   int
}

// Reconciler finds accounts whose stored total drifted from the sum of
// their entries and writes the re-derived total back.
type Reconciler struct {
	store     ports.AccountStore
	publisher EventPublisher
	config    ReconcilerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconciler(store ports.AccountStore, publisher EventPublisher, config ReconcilerConfig) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcilerConfig().Interval
	}
	return &Reconciler{store: store, publisher: publisher, config: config}
}

// Start begins the sweep loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	go r.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Reconciler started", "interval", r.config.Interval, "owner_id", r.config.OwnerID)
	return nil
}

// Stop signals the loop and waits for it, or for ctx. Only the first of
// several concurrent calls waits; the rest return at once.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.running = false
	r.stopCh, r.doneCh = nil, nil
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Reconciler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}
	return nil
}

func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.sweepAndLog(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepAndLog(ctx)
		}
	}
}

func (r *Reconciler) sweepAndLog(ctx context.Context) {
	report, err := r.Sweep(ctx, r.config.OwnerID)
	if err != nil {
		slog.ErrorContext(ctx, "Reconcile sweep failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Reconcile sweep finished",
		"checked", report.Checked, "repaired", report.Repaired, "failed", report.Failed)
}

// Sweep checks every account of ownerID, or of everyone when it is empty.
func (r *Reconciler) Sweep(ctx context.Context, ownerID string) (ReconcileReport, error) {
	var report ReconcileReport
	refs, err := r.store.ListAccountRefs(ctx, ownerID)
	if err != nil {
		return report, fmt.Errorf("list accounts: %w", err)
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		repaired, err := r.ReconcileAccount(ctx, ref)
		switch {
		case err != nil && errors.Is(err, core.ErrNotFound):
			// deleted since listing
		case err != nil:
			report.Failed++
			slog.ErrorContext(ctx, "Failed to reconcile account",
				"owner_id", ref.OwnerID, "kind", ref.Kind, "account_id", ref.ID, "error", err)
		case repaired:
			report.Repaired++
		}
	}
	return report, nil
}

// ReconcileAccount repairs one account and reports whether it had drifted.
func (r *Reconciler) ReconcileAccount(ctx context.Context, ref ports.AccountRef) (bool, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		a, err := r.store.GetAccount(ctx, ref.OwnerID, ref.Kind, ref.ID)
		if err != nil {
			return false, err
		}
		expected := a.Version
		stored := a.Total
		if !a.Resum() {
			return false, nil
		}
		if err := a.CheckInvariant(); err != nil {
			// entries themselves exceed the target; nothing safe to write
			return false, err
		}

		err = r.store.UpdateAccount(ctx, a, expected)
		if errors.Is(err, core.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("write repaired total: %w", err)
		}

		slog.WarnContext(ctx, "Repaired ledger drift",
			"owner_id", a.OwnerID, "kind", a.Kind, "account_id", a.ID,
			"stored_total", stored.String(), "entries_total", a.Total.String())
		r.publish(ctx, a)
		return true, nil
	}
	return false, fmt.Errorf("reconcile %s %s: %w", ref.Kind, ref.ID, core.ErrVersionConflict)
}

// HandleEvent re-verifies the account an event refers to.
func (r *Reconciler) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	switch msg.Type {
	case amqp.EventAccountDeleted, amqp.EventTotalRepaired:
		return nil
	}
	ref := ports.AccountRef{OwnerID: msg.OwnerID, Kind: core.AccountKind(msg.Kind), ID: msg.AccountID}
	if _, err := r.ReconcileAccount(ctx, ref); err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	return nil
}

func (r *Reconciler) publish(ctx context.Context, a *core.LedgerAccount) {
	if r.publisher == nil {
		return
	}
	msg := amqp.NewLedgerEventMessage(amqp.EventTotalRepaired, a.OwnerID, string(a.Kind), a.ID, a.Version)
	msg.Total = core.FormatAmount(a.Total)
	if err := r.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish repair event", "account_id", a.ID, "error", err)
	}
}
