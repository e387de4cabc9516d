package payments

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/orderflow/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway lets each test script the charge/refund behaviour.
type stubGateway struct {
	charges atomic.Int64
	refunds atomic.Int64

	chargeFn func(ctx context.Context, o *domorder.Order) (dompayment.Result, error)
	refundFn func(ctx context.Context, o *domorder.Order) (dompayment.Result, error)
}

func (g *stubGateway) Charge(ctx context.Context, o *domorder.Order) (dompayment.Result, error) {
	g.charges.Add(1)
	if g.chargeFn != nil {
		return g.chargeFn(ctx, o)
	}
	return dompayment.Result{Status: dompayment.StatusSuccess, TransactionID: "txn-1"}, nil
}

func (g *stubGateway) Refund(ctx context.Context, o *domorder.Order) (dompayment.Result, error) {
	g.refunds.Add(1)
	if g.refundFn != nil {
		return g.refundFn(ctx, o)
	}
	return dompayment.Result{Status: dompayment.StatusSuccess, TransactionID: "rfd-1"}, nil
}

// neverCompletes blocks until the task context is cancelled.
func neverCompletes(ctx context.Context, _ *domorder.Order) (dompayment.Result, error) {
	<-ctx.Done()
	return dompayment.Result{Status: dompayment.StatusFailed}, ctx.Err()
}

func testOrder(t *testing.T) *domorder.Order {
	t.Helper()
	o, err := domorder.New("order-1", "customer-1", "sku-1", 1, 500)
	require.NoError(t, err)
	return o
}

func shutdownRunner(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, r.Shutdown(ctx))
}

func TestSubmitCharge_Success(t *testing.T) {
	gw := &stubGateway{}
	r := NewRunner(gw, 2, nil)
	defer shutdownRunner(t, r)

	h := r.SubmitCharge(testOrder(t))
	result, err := h.Await(context.Background(), time.Second)

	require.NoError(t, err)
	assert.Equal(t, dompayment.StatusSuccess, result.Status)
	assert.Equal(t, "txn-1", result.TransactionID)
	assert.EqualValues(t, 1, gw.charges.Load())
}

func TestAwait_ReturnsSameResultToRepeatCallers(t *testing.T) {
	gw := &stubGateway{}
	r := NewRunner(gw, 1, nil)
	defer shutdownRunner(t, r)

	h := r.SubmitCharge(testOrder(t))
	first, err := h.Await(context.Background(), time.Second)
	require.NoError(t, err)
	second, err := h.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAwait_TimesOutOnStuckGateway(t *testing.T) {
	gw := &stubGateway{chargeFn: neverCompletes}
	r := NewRunner(gw, 1, nil)
	defer shutdownRunner(t, r)

	h := r.SubmitCharge(testOrder(t))

	start := time.Now()
	_, err := h.Await(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrAwaitTimeout)
	assert.Less(t, elapsed, 500*time.Millisecond)

	// Cancel after timeout interrupts the stuck task; the handle resolves.
	h.Cancel()
	result, err := h.Await(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrTaskCancelled)
	assert.Equal(t, dompayment.StatusFailed, result.Status)
	assert.True(t, h.Done())
}

func TestCancel_UnblocksWaiter(t *testing.T) {
	gw := &stubGateway{chargeFn: neverCompletes}
	r := NewRunner(gw, 1, nil)
	defer shutdownRunner(t, r)

	h := r.SubmitCharge(testOrder(t))

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.Cancel()
	}()

	_, err := h.Await(context.Background(), 5*time.Second)
	assert.ErrorIs(t, err, ErrTaskCancelled)
}

func TestCancel_AfterCompletionIsNoOp(t *testing.T) {
	gw := &stubGateway{}
	r := NewRunner(gw, 1, nil)
	defer shutdownRunner(t, r)

	h := r.SubmitCharge(testOrder(t))
	result, err := h.Await(context.Background(), time.Second)
	require.NoError(t, err)

	h.Cancel()

	again, err := h.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestAwait_HonoursCallerContext(t *testing.T) {
	gw := &stubGateway{chargeFn: neverCompletes}
	r := NewRunner(gw, 1, nil)
	defer shutdownRunner(t, r)

	h := r.SubmitCharge(testOrder(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.Await(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	// The task itself is still running; cancel it so shutdown drains fast.
	h.Cancel()
}

func TestSubmitRefund_RunsOnPool(t *testing.T) {
	gw := &stubGateway{}
	r := NewRunner(gw, 2, nil)
	defer shutdownRunner(t, r)

	h := r.SubmitRefund(testOrder(t))
	result, err := h.Await(context.Background(), time.Second)

	require.NoError(t, err)
	assert.Equal(t, dompayment.StatusSuccess, result.Status)
	assert.EqualValues(t, 1, gw.refunds.Load())
	assert.EqualValues(t, 0, gw.charges.Load())
}

func TestGatewayError_SurfacesThroughHandle(t *testing.T) {
	gwErr := errors.New("wire down")
	gw := &stubGateway{chargeFn: func(context.Context, *domorder.Order) (dompayment.Result, error) {
		return dompayment.Result{Status: dompayment.StatusFailed}, gwErr
	}}
	r := NewRunner(gw, 1, nil)
	defer shutdownRunner(t, r)

	h := r.SubmitCharge(testOrder(t))
	result, err := h.Await(context.Background(), time.Second)

	assert.ErrorIs(t, err, gwErr)
	assert.Equal(t, dompayment.StatusFailed, result.Status)
}

func TestSubmitAfterShutdown_FailsFast(t *testing.T) {
	gw := &stubGateway{}
	r := NewRunner(gw, 1, nil)
	shutdownRunner(t, r)

	h := r.SubmitCharge(testOrder(t))
	_, err := h.Await(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrRunnerClosed)
	assert.EqualValues(t, 0, gw.charges.Load())
}

func TestShutdown_CancelsInFlightTasks(t *testing.T) {
	gw := &stubGateway{chargeFn: neverCompletes}
	r := NewRunner(gw, 1, nil)

	h := r.SubmitCharge(testOrder(t))
	time.Sleep(20 * time.Millisecond) // let the pool pick it up

	// Short drain bound: the stuck task must be cancelled, not waited on.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	_, err := h.Await(context.Background(), time.Second)
	assert.Error(t, err)

	// Idempotent.
	assert.NoError(t, r.Shutdown(ctx))
}
