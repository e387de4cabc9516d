package payments

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/orderflow/internal/domain/payment"
	"github.com/Zhima-Mochi/orderflow/internal/observability"
)

const component = "payment_runner"

type taskKind string

const (
	kindCharge taskKind = "charge"
	kindRefund taskKind = "refund"
)

type task struct {
	kind   taskKind
	order  *domorder.Order
	ctx    context.Context
	handle *Handle
}

// Runner executes gateway calls on a fixed-size pool, sized independently of
// the order workers since payments are I/O-bound. Each submission returns a
// Handle the caller can await with a deadline or cancel.
type Runner struct {
	gateway dompayment.Gateway

	mu     sync.Mutex
	closed bool
	tasks  chan *task

	baseCtx context.Context
	cancel  context.CancelFunc
	poolWG  sync.WaitGroup
	taskWG  sync.WaitGroup

	log      observability.Logger
	executed observability.Counter   // payment_tasks_total{kind,outcome}
	latency  observability.Histogram // payment_task_duration_seconds{kind}
}

func NewRunner(gateway dompayment.Gateway, size int, tel observability.Telemetry) *Runner {
	if size <= 0 {
		size = 1
	}
	if tel == nil {
		tel = observability.NopTelemetry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		gateway:  gateway,
		tasks:    make(chan *task),
		baseCtx:  ctx,
		cancel:   cancel,
		log:      tel.Logger().With(observability.F("component", component)),
		executed: tel.Counter("payment_tasks_total"),
		latency:  tel.Histogram("payment_task_duration_seconds"),
	}

	r.poolWG.Add(size)
	for i := 0; i < size; i++ {
		go r.runLoop()
	}
	return r
}

// SubmitCharge dispatches a charge for the order. The returned handle never
// hangs: after shutdown it resolves immediately with ErrRunnerClosed.
func (r *Runner) SubmitCharge(o *domorder.Order) *Handle {
	return r.submit(kindCharge, o)
}

// SubmitRefund dispatches a refund, the compensation path after a payment
// that cannot be kept.
func (r *Runner) SubmitRefund(o *domorder.Order) *Handle {
	return r.submit(kindRefund, o)
}

func (r *Runner) submit(kind taskKind, o *domorder.Order) *Handle {
	taskCtx, taskCancel := context.WithCancel(r.baseCtx)
	h := newHandle(taskCancel)
	t := &task{kind: kind, order: o, ctx: taskCtx, handle: h}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		taskCancel()
		h.resolve(dompayment.Result{Status: dompayment.StatusFailed}, ErrRunnerClosed)
		return h
	}
	// Accepted: the task is now owed an execution (or an explicit abort).
	r.taskWG.Add(1)
	r.mu.Unlock()

	go func() {
		select {
		case r.tasks <- t:
		case <-r.baseCtx.Done():
			taskCancel()
			h.resolve(dompayment.Result{Status: dompayment.StatusFailed}, ErrRunnerClosed)
			r.taskWG.Done()
		}
	}()
	return h
}

func (r *Runner) runLoop() {
	defer r.poolWG.Done()
	for {
		select {
		case <-r.baseCtx.Done():
			return
		case t := <-r.tasks:
			r.execute(t)
		}
	}
}

func (r *Runner) execute(t *task) {
	defer r.taskWG.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("payment_task_panic",
				observability.F("kind", string(t.kind)),
				observability.F("order_id", t.order.ID),
				observability.F("panic", rec),
				observability.F("stack", string(debug.Stack())),
			)
			t.handle.resolve(dompayment.Result{Status: dompayment.StatusFailed},
				fmt.Errorf("payments: %s task panic: %v", t.kind, rec))
		}
	}()

	if err := t.ctx.Err(); err != nil {
		t.handle.resolve(dompayment.Result{Status: dompayment.StatusFailed}, ErrTaskCancelled)
		r.count(t.kind, "cancelled")
		return
	}

	start := time.Now()
	var (
		result dompayment.Result
		err    error
	)
	switch t.kind {
	case kindRefund:
		result, err = r.gateway.Refund(t.ctx, t.order)
	default:
		result, err = r.gateway.Charge(t.ctx, t.order)
	}
	r.observe(t.kind, time.Since(start))

	if err != nil {
		if t.ctx.Err() != nil {
			t.handle.resolve(dompayment.Result{Status: dompayment.StatusFailed}, ErrTaskCancelled)
			r.count(t.kind, "cancelled")
			return
		}
		t.handle.resolve(dompayment.Result{Status: dompayment.StatusFailed},
			fmt.Errorf("payments: %s: %w", t.kind, err))
		r.count(t.kind, "error")
		return
	}

	t.handle.resolve(result, nil)
	r.count(t.kind, string(result.Status))
}

// Shutdown stops accepting new tasks and drains the ones already accepted,
// so fire-and-forget refunds submitted just before shutdown still run. If
// the ctx deadline expires first, the remaining tasks are cancelled instead.
// Idempotent.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.taskWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		// Per policy: tasks that did not finish within the bound are
		// cancelled rather than waited on.
		r.log.Warn("payment_runner_drain_timeout")
	}

	// Stop the pool; any task still outstanding unwinds as cancelled.
	r.cancel()

	joined := make(chan struct{})
	go func() {
		r.poolWG.Wait()
		close(joined)
	}()

	timer := time.NewTimer(time.Second)
	defer timer.Stop()
	select {
	case <-joined:
		r.log.Info("payment_runner_stopped")
		return nil
	case <-timer.C:
		r.log.Warn("payment_runner_join_timeout")
		return fmt.Errorf("payments: shutdown: pool did not stop")
	}
}

func (r *Runner) count(kind taskKind, outcome string) {
	if r.executed != nil {
		r.executed.Add(1,
			observability.L("kind", string(kind)),
			observability.L("outcome", outcome),
		)
	}
}

func (r *Runner) observe(kind taskKind, d time.Duration) {
	if r.latency != nil {
		r.latency.Observe(d.Seconds(), observability.L("kind", string(kind)))
	}
}
