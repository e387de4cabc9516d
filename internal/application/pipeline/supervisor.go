package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Zhima-Mochi/orderflow/internal/application/inventory"
	"github.com/Zhima-Mochi/orderflow/internal/application/payments"
	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
	"github.com/Zhima-Mochi/orderflow/internal/observability"
)

// Options sizes the pipeline. Zero values fall back to conservative defaults.
type Options struct {
	WorkerCount    int
	PaymentTimeout time.Duration
	JoinTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.WorkerCount <= 0 {
		o.WorkerCount = 4
	}
	if o.PaymentTimeout <= 0 {
		o.PaymentTimeout = 5 * time.Second
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 10 * time.Second
	}
	return o
}

// Supervisor owns the queue, the worker pool, and the payment runner, and is
// the single place shutdown is coordinated from.
type Supervisor struct {
	queue     *Queue
	runner    *payments.Runner
	inventory *inventory.Service
	shipper   ShipmentPreparer
	opts      Options

	workers []*Worker
	wg      sync.WaitGroup

	startOnce    sync.Once
	shutdownOnce sync.Once
	cancel       context.CancelFunc

	log        observability.Logger
	queueDepth observability.Gauge // order_queue_depth
}

func NewSupervisor(
	queue *Queue,
	runner *payments.Runner,
	inv *inventory.Service,
	shipper ShipmentPreparer,
	opts Options,
	tel observability.Telemetry,
) *Supervisor {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	opts = opts.withDefaults()

	s := &Supervisor{
		queue:      queue,
		runner:     runner,
		inventory:  inv,
		shipper:    shipper,
		opts:       opts,
		log:        tel.Logger().With(observability.F("component", "supervisor")),
		queueDepth: tel.Gauge("order_queue_depth"),
	}
	for i := 0; i < opts.WorkerCount; i++ {
		s.workers = append(s.workers, newWorker(
			i, queue, inv, runner, shipper, opts.PaymentTimeout, tel,
		))
	}
	return s
}

// Start launches the worker pool. Idempotent; later calls are no-ops.
func (s *Supervisor) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.cancel = cancel

		for _, w := range s.workers {
			s.wg.Add(1)
			go func(w *Worker) {
				defer s.wg.Done()
				w.run(runCtx)
			}(w)
		}
		s.log.Info("pipeline_started",
			observability.F("workers", len(s.workers)),
		)
	})
}

// Enqueue hands a PENDING order to the pipeline. It blocks while the queue is
// at capacity and fails fast with ErrQueueClosed once shutdown has begun.
func (s *Supervisor) Enqueue(o *domorder.Order) error {
	if o == nil {
		return fmt.Errorf("pipeline: nil order")
	}
	if o.Status != domorder.StatusPending {
		return fmt.Errorf("pipeline: order %s not pending (status %s)", o.ID, o.Status)
	}

	if err := s.queue.Enqueue(o); err != nil {
		return err
	}
	if s.queueDepth != nil {
		s.queueDepth.Set(float64(s.queue.Len()))
	}
	return nil
}

// Shutdown drains and stops the pipeline: close the queue so intake fails
// fast and blocked dequeues see the end-of-work sentinel, join the workers
// within the configured bound, then stop the payment runner. If the bound
// expires, the worker contexts are cancelled so any payment await unwinds,
// and whatever is still queued is reported undrained. Idempotent.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.log.Info("pipeline_shutdown_begin",
			observability.F("queued", s.queue.Len()),
		)
		s.queue.Close()

		if !s.join(s.opts.JoinTimeout) {
			// Workers are wedged mid-order; cancel their contexts and give
			// them a moment to unwind.
			if s.cancel != nil {
				s.cancel()
			}
			if !s.join(time.Second) {
				err = fmt.Errorf("pipeline: %d workers did not stop within bound", s.running())
			}
			if undrained := s.queue.Len(); undrained > 0 {
				s.log.Warn("pipeline_shutdown_undrained",
					observability.F("orders", undrained),
				)
			}
		}

		if s.cancel != nil {
			s.cancel()
		}

		if rErr := s.runner.Shutdown(ctx); rErr != nil && err == nil {
			err = rErr
		}
		s.log.Info("pipeline_shutdown_done")
	})
	return err
}

// join waits for the worker pool up to the bound; true means all exited.
func (s *Supervisor) join(bound time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(bound)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Supervisor) running() int {
	// Best-effort count for the error message; the waitgroup itself does not
	// expose its counter.
	return len(s.workers)
}
