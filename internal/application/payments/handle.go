package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	dompayment "github.com/Zhima-Mochi/orderflow/internal/domain/payment"
)

var (
	// ErrAwaitTimeout is returned when the deadline passes before the
	// gateway produces a result. The task may still be running; callers
	// should Cancel the handle when they stop caring.
	ErrAwaitTimeout = errors.New("payments: await timed out")
	// ErrTaskCancelled is returned when the task was cancelled before it
	// could produce a result.
	ErrTaskCancelled = errors.New("payments: task cancelled")
	// ErrRunnerClosed is returned for tasks submitted after shutdown.
	ErrRunnerClosed = errors.New("payments: runner closed")
)

// Handle is the awaitable side of a submitted payment task. The result is
// produced exactly once; Await may be called multiple times and returns the
// same resolution to each caller.
type Handle struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc

	result dompayment.Result
	err    error
}

func newHandle(cancel context.CancelFunc) *Handle {
	if cancel == nil {
		cancel = func() {}
	}
	return &Handle{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// resolve records the task outcome and wakes every waiter. Later calls lose.
func (h *Handle) resolve(result dompayment.Result, err error) {
	h.once.Do(func() {
		h.result = result
		h.err = err
		close(h.done)
	})
}

// Await blocks until the task resolves, the timeout expires, or ctx is done.
// On timeout it returns ErrAwaitTimeout without cancelling the task; pairing
// the timeout with Cancel is the caller's decision.
func (h *Handle) Await(ctx context.Context, timeout time.Duration) (dompayment.Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.result, h.err
	case <-timer.C:
		return dompayment.Result{Status: dompayment.StatusFailed}, ErrAwaitTimeout
	case <-ctx.Done():
		return dompayment.Result{Status: dompayment.StatusFailed}, ctx.Err()
	}
}

// Cancel best-effort interrupts the in-flight task. Calling it after the
// task resolved is a no-op.
func (h *Handle) Cancel() {
	h.cancel()
	h.resolve(dompayment.Result{Status: dompayment.StatusFailed}, ErrTaskCancelled)
}

// Done reports whether the handle has resolved, without blocking.
func (h *Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
