package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxWriteAttempts bounds the re-read and retry loop on version conflicts.
const maxWriteAttempts = 3

// lockStripes is the number of mutexes accounts are spread over. Two
// accounts may share a stripe; the version check still keeps them apart.
const lockStripes = 256

// EventPublisher publishes ledger events after a write has committed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// AmountNormalizer converts a raw amount into the canonical currency.
type AmountNormalizer interface {
	Normalize(ctx context.Context, amount decimal.Decimal, unit string) (decimal.Decimal, error)
}

// LedgerService owns goals and debts and every mutation of their entries.
type LedgerService struct {
	store      ports.AccountStore
	normalizer AmountNormalizer
	publisher  EventPublisher

	now   func() time.Time
	newID func() string

	locks [lockStripes]sync.Mutex
}

// NewLedgerService wires the service. publisher may be nil, in which case
// events are skipped.
func NewLedgerService(store ports.AccountStore, normalizer AmountNormalizer, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:      store,
		normalizer: normalizer,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

func lockKey(ownerID string, kind core.AccountKind, id string) string {
	return ownerID + "/" + string(kind) + "/" + id
}

func lockStripe(ownerID string, kind core.AccountKind, id string) int {
	h := fnv.New32a()
	h.Write([]byte(lockKey(ownerID, kind, id)))
	return int(h.Sum32() % lockStripes)
}

// accountLock serialises writers of one account within this process.
func (s *LedgerService) accountLock(ownerID string, kind core.AccountKind, id string) *sync.Mutex {
	return &s.locks[lockStripe(ownerID, kind, id)]
}

// normalizePositive converts and rejects results that round to zero or less.
func (s *LedgerService) normalizePositive(ctx context.Context, amount decimal.Decimal, unit string) (decimal.Decimal, error) {
	return normalizePositive(ctx, s.normalizer, amount, unit)
}

func normalizePositive(ctx context.Context, n AmountNormalizer, amount decimal.Decimal, unit string) (decimal.Decimal, error) {
	if n == nil {
		return decimal.Zero, fmt.Errorf("no normalizer configured: %w", core.ErrRateProviderUnavailable)
	}
	v, err := n.Normalize(ctx, amount, unit)
	if err != nil {
		return decimal.Zero, err
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s %s normalizes to %s: %w", amount, core.NormalizeUnit(unit), v, core.ErrAmountTooSmall)
	}
	return v, nil
}

// CreateAccount opens a new goal or debt with a zero total.
func (s *LedgerService) CreateAccount(ctx context.Context, ownerID string, kind core.AccountKind, in core.AccountInput) (*core.LedgerAccount, error) {
	if err := in.Validate(kind); err != nil {
		return nil, err
	}
	label := strings.TrimSpace(in.Label)

	taken, err := s.store.LabelTaken(ctx, ownerID, kind, label, "")
	if err != nil {
		return nil, fmt.Errorf("check label: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%s %q: %w", kind, label, core.ErrDuplicateLabel)
	}

	target, err := s.normalizePositive(ctx, in.Amount, in.Unit)
	if err != nil {
		return nil, err
	}

	a, err := core.NewLedgerAccount(s.newID(), ownerID, kind, label, target, s.now())
	if err != nil {
		return nil, err
	}
	a.ImageRef = strings.TrimSpace(in.ImageRef)

	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	slog.InfoContext(ctx, "Account created",
		"owner_id", ownerID, "kind", kind, "account_id", a.ID, "target", a.Target.String())
	s.publish(ctx, amqp.EventAccountCreated, a, "")
	return a, nil
}

// UpdateAccount replaces label and target. The new target may not fall
// below what is already recorded.
func (s *LedgerService) UpdateAccount(ctx context.Context, ownerID string, kind core.AccountKind, id string, in core.AccountInput) (*core.LedgerAccount, error) {
	if err := in.Validate(kind); err != nil {
		return nil, err
	}
	label := strings.TrimSpace(in.Label)

	if _, err := s.store.GetAccount(ctx, ownerID, kind, id); err != nil {
		return nil, err
	}
	taken, err := s.store.LabelTaken(ctx, ownerID, kind, label, id)
	if err != nil {
		return nil, fmt.Errorf("check label: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%s %q: %w", kind, label, core.ErrDuplicateLabel)
	}
	target, err := s.normalizePositive(ctx, in.Amount, in.Unit)
	if err != nil {
		return nil, err
	}

	return s.write(ctx, ownerID, kind, id, amqp.EventAccountUpdated, func(a *core.LedgerAccount) (*core.EntryChange, error) {
		if err := a.SetTarget(target); err != nil {
			return nil, err
		}
		a.Label = label
		if ref := strings.TrimSpace(in.ImageRef); ref != "" {
			a.ImageRef = ref
		}
		a.UpdatedAt = s.now()
		return nil, nil
	})
}

// DeleteAccount removes an account with all its entries.
func (s *LedgerService) DeleteAccount(ctx context.Context, ownerID string, kind core.AccountKind, id string) error {
	mu := s.accountLock(ownerID, kind, id)
	mu.Lock()
	err := s.store.DeleteAccount(ctx, ownerID, kind, id)
	mu.Unlock()
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account deleted", "owner_id", ownerID, "kind", kind, "account_id", id)
	s.publishEvent(ctx, amqp.NewLedgerEventMessage(amqp.EventAccountDeleted, ownerID, string(kind), id, 0))
	return nil
}

func (s *LedgerService) GetAccount(ctx context.Context, ownerID string, kind core.AccountKind, id string) (*core.LedgerAccount, error) {
	return s.store.GetAccount(ctx, ownerID, kind, id)
}

// ListAccounts returns the owner's goals or debts, newest first.
func (s *LedgerService) ListAccounts(ctx context.Context, ownerID string, kind core.AccountKind) ([]*core.LedgerAccount, error) {
	return s.store.ListAccounts(ctx, ownerID, kind)
}

// ListEntries returns an account's entries in insertion order.
func (s *LedgerService) ListEntries(ctx context.Context, ownerID string, kind core.AccountKind, id string) ([]core.Entry, error) {
	a, err := s.store.GetAccount(ctx, ownerID, kind, id)
	if err != nil {
		return nil, err
	}
	return a.Entries, nil
}

// AddEntry records a saved amount (goal) or a paid amount (debt).
func (s *LedgerService) AddEntry(ctx context.Context, ownerID string, kind core.AccountKind, accountID string, in core.EntryInput) (*core.LedgerAccount, core.Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, core.Entry{}, err
	}
	if _, err := s.store.GetAccount(ctx, ownerID, kind, accountID); err != nil {
		return nil, core.Entry{}, err
	}
	amount, err := s.normalizePositive(ctx, in.Amount, in.Unit)
	if err != nil {
		return nil, core.Entry{}, err
	}

	entryID := s.newID()
	var entry core.Entry
	a, err := s.write(ctx, ownerID, kind, accountID, amqp.EventEntryAdded, func(a *core.LedgerAccount) (*core.EntryChange, error) {
		change, err := a.AddEntry(entryID, amount, s.now())
		if err != nil {
			return nil, err
		}
		entry = change.Entry
		return &change, nil
	})
	if err != nil {
		return nil, core.Entry{}, err
	}
	return a, entry, nil
}

// UpdateEntry replaces an entry's amount, checking the bound by delta.
func (s *LedgerService) UpdateEntry(ctx context.Context, ownerID string, kind core.AccountKind, accountID, entryID string, in core.EntryInput) (*core.LedgerAccount, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	current, err := s.store.GetAccount(ctx, ownerID, kind, accountID)
	if err != nil {
		return nil, err
	}
	if _, ok := current.Entry(entryID); !ok {
		return nil, fmt.Errorf("entry %s: %w", entryID, core.ErrEntryNotFound)
	}
	amount, err := s.normalizePositive(ctx, in.Amount, in.Unit)
	if err != nil {
		return nil, err
	}

	return s.write(ctx, ownerID, kind, accountID, amqp.EventEntryUpdated, func(a *core.LedgerAccount) (*core.EntryChange, error) {
		change, err := a.UpdateEntry(entryID, amount, s.now())
		if err != nil {
			return nil, err
		}
		return &change, nil
	})
}

// DeleteEntry removes an entry and gives its amount back to the remaining
// capacity.
func (s *LedgerService) DeleteEntry(ctx context.Context, ownerID string, kind core.AccountKind, accountID, entryID string) (*core.LedgerAccount, error) {
	return s.write(ctx, ownerID, kind, accountID, amqp.EventEntryDeleted, func(a *core.LedgerAccount) (*core.EntryChange, error) {
		change, err := a.DeleteEntry(entryID, s.now())
		if err != nil {
			return nil, err
		}
		return &change, nil
	})
}

// write runs mutate against a fresh copy of the account under the account
// lock and persists the outcome with a version check. A nil change means an
// account-level update. Version conflicts re-read and retry.
func (s *LedgerService) write(
	ctx context.Context,
	ownerID string,
	kind core.AccountKind,
	id string,
	event string,
	mutate func(a *core.LedgerAccount) (*core.EntryChange, error),
) (*core.LedgerAccount, error) {
	mu := s.accountLock(ownerID, kind, id)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := s.store.GetAccount(ctx, ownerID, kind, id)
		if err != nil {
			return nil, err
		}
		expected := a.Version

		change, err := mutate(a)
		if err != nil {
			return nil, err
		}
		if change != nil {
			// re-derive from entries; identical under the invariant
			a.Resum()
			err = s.store.ApplyEntryChange(ctx, a, *change, expected)
		} else {
			err = s.store.UpdateAccount(ctx, a, expected)
		}
		if err == nil {
			entryID := ""
			if change != nil {
				entryID = change.Entry.ID
			}
			s.publish(ctx, event, a, entryID)
			return a, nil
		}
		if !errors.Is(err, core.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		slog.WarnContext(ctx, "Version conflict, retrying",
			"owner_id", ownerID, "kind", kind, "account_id", id, "attempt", attempt)
	}
	return nil, fmt.Errorf("write %s %s after %d attempts: %w", kind, id, maxWriteAttempts, lastErr)
}

func (s *LedgerService) publish(ctx context.Context, event string, a *core.LedgerAccount, entryID string) {
	msg := amqp.NewLedgerEventMessage(event, a.OwnerID, string(a.Kind), a.ID, a.Version)
	msg.EntryID = entryID
	msg.Total = core.FormatAmount(a.Total)
	s.publishEvent(ctx, msg)
}

// publishEvent never fails the caller: the write has already committed.
func (s *LedgerService) publishEvent(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping", "type", msg.Type, "account_id", msg.AccountID)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", msg.Type, "account_id", msg.AccountID, "error", err)
	}
}
