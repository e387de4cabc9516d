package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("order-1", "customer-1", "sku-1", 2, 900)
	require.NoError(t, err)
	return o
}

func TestNew_Validation(t *testing.T) {
	_, err := New("o", "c", "p", 0, 100)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("o", "c", "p", 1, -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	o, err := New("o", "c", "p", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.False(t, o.Terminal())
}

func TestHappyPathTransitions(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.MarkInventoryChecked())
	require.NoError(t, o.MarkPaymentProcessing())
	require.NoError(t, o.MarkPaymentCompleted())
	require.NoError(t, o.MarkShippingPrepared())
	require.NoError(t, o.MarkCompleted())

	assert.Equal(t, StatusCompleted, o.Status)
	assert.True(t, o.Terminal())
}

func TestFailedIsReachableFromEveryTransientState(t *testing.T) {
	steps := []func(*Order) error{
		nil,
		(*Order).MarkInventoryChecked,
		(*Order).MarkPaymentProcessing,
		(*Order).MarkPaymentCompleted,
		(*Order).MarkShippingPrepared,
	}

	for depth := range steps {
		o := newTestOrder(t)
		for _, step := range steps[1 : depth+1] {
			require.NoError(t, step(o))
		}
		require.NoError(t, o.MarkFailed("boom"))
		assert.Equal(t, StatusFailed, o.Status)
		assert.Equal(t, "boom", o.FailureReason)
		assert.True(t, o.Terminal())
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	o := newTestOrder(t)

	// Cannot skip straight to payment from pending.
	assert.ErrorIs(t, o.MarkPaymentProcessing(), ErrInvalidStateTransition)
	assert.ErrorIs(t, o.MarkCompleted(), ErrInvalidStateTransition)

	// Cancellation is only legal before any work.
	require.NoError(t, o.MarkInventoryChecked())
	assert.ErrorIs(t, o.MarkCancelled(), ErrInvalidStateTransition)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.MarkFailed("declined"))

	assert.ErrorIs(t, o.MarkInventoryChecked(), ErrInvalidStateTransition)
	assert.ErrorIs(t, o.MarkFailed("again"), ErrInvalidStateTransition)
	assert.Equal(t, "declined", o.FailureReason)

	cancelled := newTestOrder(t)
	require.NoError(t, cancelled.MarkCancelled())
	assert.ErrorIs(t, cancelled.MarkFailed("late"), ErrInvalidStateTransition)
}

func TestCancelRequestFlag(t *testing.T) {
	o := newTestOrder(t)
	assert.False(t, o.CancelRequested())

	done := make(chan struct{})
	go func() {
		o.RequestCancel()
		close(done)
	}()
	<-done

	assert.True(t, o.CancelRequested())
}
