package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubSender fails the first failures attempts, then delivers.
type stubSender struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	delivered chan OrderConfirmation
}

func newStubSender(failures int) *stubSender {
	return &stubSender{
		failures:  failures,
		delivered: make(chan OrderConfirmation, 16),
	}
}

func (s *stubSender) Send(_ context.Context, confirmation OrderConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("notification service unavailable")
	}
	s.delivered <- confirmation
	return nil
}

func (s *stubSender) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func TestDispatcher_DeliversAfterRetry(t *testing.T) {
	sender := newStubSender(2)
	d := NewDispatcher(sender, zap.NewNop(), 3, time.Millisecond, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(42)

	select {
	case confirmation := <-sender.delivered:
		assert.Equal(t, int64(42), confirmation.OrderID)
		assert.NotEmpty(t, confirmation.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation was never delivered")
	}
	assert.Equal(t, 3, sender.attemptCount(), "two failures plus the success")
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := newStubSender(100)
	d := NewDispatcher(sender, zap.NewNop(), 3, time.Millisecond, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(42)

	require.Eventually(t, func() bool {
		return sender.attemptCount() == 3
	}, 2*time.Second, 5*time.Millisecond)

	// No further attempts once the budget is spent.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, sender.attemptCount())
	assert.Empty(t, sender.delivered)
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	// No worker is running and the queue holds a single entry; the extra
	// enqueues must be dropped, not block the checkout path.
	d := NewDispatcher(newStubSender(0), zap.NewNop(), 3, time.Millisecond, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := int64(1); i <= 5; i++ {
			d.Enqueue(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked the caller")
	}
}

func TestDispatcher_EventIDsAreUnique(t *testing.T) {
	sender := newStubSender(0)
	d := NewDispatcher(sender, zap.NewNop(), 3, time.Millisecond, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(1)
	d.Enqueue(1)

	first := receiveConfirmation(t, sender.delivered)
	second := receiveConfirmation(t, sender.delivered)
	assert.NotEqual(t, first.EventID, second.EventID)
}

func receiveConfirmation(t *testing.T, ch <-chan OrderConfirmation) OrderConfirmation {
	t.Helper()
	select {
	case confirmation := <-ch:
		return confirmation
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation was never delivered")
		return OrderConfirmation{}
	}
}
