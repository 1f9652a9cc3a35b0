package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	handled  []string
	startErr error
}

func (f *fakeReconciler) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeReconciler) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeReconciler) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, msg.AccountID)
	return nil
}

func (f *fakeReconciler) snapshot() (bool, bool, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped, append([]string(nil), f.handled...)
}

// channelSource replays queued events, then waits for cancellation.
type channelSource struct {
	events []*amqp.LedgerEventMessage
	err    error
}

func (c *channelSource) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEventMessage) error) error {
	for _, msg := range c.events {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestLedgerWorker_HandlesEventsUntilCancelled(t *testing.T) {
	rec := &fakeReconciler{}
	src := &channelSource{events: []*amqp.LedgerEventMessage{
		amqp.NewLedgerEventMessage("entry_added", "u1", "goal", "g1", 1),
		amqp.NewLedgerEventMessage("entry_deleted", "u1", "debt", "d1", 2),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- NewLedgerWorker(rec, src).Run(ctx) }()

	require.Eventually(t, func() bool {
		_, _, handled := rec.snapshot()
		return len(handled) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	started, stopped, handled := rec.snapshot()
	assert.True(t, started)
	assert.True(t, stopped)
	assert.Equal(t, []string{"g1", "d1"}, handled)
}

func TestLedgerWorker_ConsumerFailureStopsReconciler(t *testing.T) {
	rec := &fakeReconciler{}
	src := &channelSource{err: errors.New("channel closed by broker")}

	err := NewLedgerWorker(rec, src).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consume ledger events")

	_, stopped, _ := rec.snapshot()
	assert.True(t, stopped)
}

func TestLedgerWorker_WithoutEventSource(t *testing.T) {
	rec := &fakeReconciler{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, NewLedgerWorker(rec, nil).Run(ctx))
	started, stopped, _ := rec.snapshot()
	assert.True(t, started)
	assert.True(t, stopped)
}

func TestLedgerWorker_StartFailure(t *testing.T) {
	rec := &fakeReconciler{startErr: errors.New("already running")}
	err := NewLedgerWorker(rec, nil).Run(context.Background())
	assert.ErrorContains(t, err, "start reconciler")
}
