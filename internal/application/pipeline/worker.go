package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Zhima-Mochi/orderflow/internal/application/inventory"
	"github.com/Zhima-Mochi/orderflow/internal/application/payments"
	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/orderflow/internal/domain/payment"
	"github.com/Zhima-Mochi/orderflow/internal/observability"
	"github.com/Zhima-Mochi/orderflow/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	reasonInsufficientStock = "insufficient_stock"
	reasonPaymentDeclined   = "payment_declined"
	reasonPaymentTimeout    = "payment_timeout"
	reasonShutdown          = "worker_stopping"
	reasonShippingFailed    = "shipping_prepare_failed"
	reasonProcessingPanic   = "processing_panic"
)

// ShipmentPreparer is the post-payment bookkeeping step. A failure here, after
// money has moved, is what triggers the refund compensation path.
type ShipmentPreparer interface {
	Prepare(ctx context.Context, o *domorder.Order) error
}

// Worker is one consumer of the queue. It owns each dequeued order
// exclusively until the order reaches a terminal status; no other goroutine
// touches the order in between.
type Worker struct {
	id             int
	queue          *Queue
	inventory      *inventory.Service
	payments       *payments.Runner
	shipper        ShipmentPreparer
	paymentTimeout time.Duration

	tel       observability.Telemetry
	log       observability.Logger
	processed observability.Counter   // orders_processed_total{outcome}
	duration  observability.Histogram // order_processing_duration_seconds
}

func newWorker(
	id int,
	queue *Queue,
	inv *inventory.Service,
	runner *payments.Runner,
	shipper ShipmentPreparer,
	paymentTimeout time.Duration,
	tel observability.Telemetry,
) *Worker {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Worker{
		id:             id,
		queue:          queue,
		inventory:      inv,
		payments:       runner,
		shipper:        shipper,
		paymentTimeout: paymentTimeout,
		tel:            tel,
		log: tel.Logger().With(
			observability.F("component", "order_worker"),
			observability.F("worker_id", id),
		),
		processed: tel.Counter("orders_processed_total"),
		duration:  tel.Histogram("order_processing_duration_seconds"),
	}
}

// run is the consumer loop. It exits only on the queue's end-of-work sentinel
// or when ctx is cancelled between orders; a failure processing one order is
// contained to that order and never takes the loop down.
func (w *Worker) run(ctx context.Context) {
	w.log.Info("worker_started")
	defer w.log.Info("worker_stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		o, ok := w.queue.Dequeue()
		if !ok {
			return
		}

		w.process(ctx, o)
	}
}

func (w *Worker) process(ctx context.Context, o *domorder.Order) {
	start := time.Now()

	logger := w.log.With(
		observability.F("order_id", o.ID),
		observability.F("product_id", o.ProductID),
	)
	ctx = logctx.With(ctx, logger)

	ctx, span := w.tel.Tracer().Start(ctx, "pipeline.ProcessOrder",
		attribute.String("order.id", o.ID),
		attribute.String("order.product_id", o.ProductID),
		attribute.Int("order.quantity", o.Quantity),
	)

	defer func() {
		if rec := recover(); rec != nil {
			if !o.Terminal() {
				_ = o.MarkFailed(reasonProcessingPanic)
			}
			logger.Error("order_processing_panic",
				observability.F("panic", rec),
				observability.F("stack", string(debug.Stack())),
			)
			span.SetStatus(codes.Error, reasonProcessingPanic)
		}

		outcome := string(o.Status)
		w.observe(outcome, time.Since(start))
		span.SetAttributes(attribute.String("order.status", outcome))
		span.End()

		fields := []observability.Field{
			observability.F("status", outcome),
			observability.F("elapsed", time.Since(start).String()),
		}
		if o.FailureReason != "" {
			fields = append(fields, observability.F("reason", o.FailureReason))
		}
		logger.Info("order_done", fields...)
	}()

	if o.CancelRequested() {
		_ = o.MarkCancelled()
		return
	}

	if !w.inventory.Reserve(o.ProductID, o.Quantity) {
		_ = o.MarkFailed(reasonInsufficientStock)
		return
	}
	if err := o.MarkInventoryChecked(); err != nil {
		w.inventory.Release(o.ProductID, o.Quantity)
		_ = o.MarkFailed(fmt.Sprintf("invalid_state: %v", err))
		return
	}

	handle := w.payments.SubmitCharge(o)
	if err := o.MarkPaymentProcessing(); err != nil {
		handle.Cancel()
		w.inventory.Release(o.ProductID, o.Quantity)
		_ = o.MarkFailed(fmt.Sprintf("invalid_state: %v", err))
		return
	}

	result, err := handle.Await(ctx, w.paymentTimeout)
	if err != nil {
		handle.Cancel()
		w.inventory.Release(o.ProductID, o.Quantity)
		switch {
		case errors.Is(err, payments.ErrAwaitTimeout):
			logger.Warn("payment_await_timeout",
				observability.F("timeout", w.paymentTimeout.String()),
			)
			_ = o.MarkFailed(reasonPaymentTimeout)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Shutdown interrupted the wait; unwind this order and let the
			// loop head notice the cancelled context.
			_ = o.MarkFailed(reasonShutdown)
		default:
			_ = o.MarkFailed(fmt.Sprintf("payment_error: %v", err))
		}
		return
	}

	if result.Status != dompayment.StatusSuccess {
		w.inventory.Release(o.ProductID, o.Quantity)
		reason := reasonPaymentDeclined
		if result.Reason != "" {
			reason = fmt.Sprintf("%s: %s", reasonPaymentDeclined, result.Reason)
		}
		_ = o.MarkFailed(reason)
		return
	}

	if err := o.MarkPaymentCompleted(); err != nil {
		_ = o.MarkFailed(fmt.Sprintf("invalid_state: %v", err))
		return
	}

	if err := w.shipper.Prepare(ctx, o); err != nil {
		// Payment already succeeded: submit the refund before failing the
		// order. Fire-and-forget, the refund's own completion does not gate
		// the order's terminal status.
		w.payments.SubmitRefund(o)
		w.inventory.Release(o.ProductID, o.Quantity)
		logger.Warn("shipping_prepare_failed",
			observability.F("error", err.Error()),
			observability.F("transaction_id", result.TransactionID),
		)
		_ = o.MarkFailed(reasonShippingFailed)
		return
	}

	if err := o.MarkShippingPrepared(); err != nil {
		_ = o.MarkFailed(fmt.Sprintf("invalid_state: %v", err))
		return
	}
	_ = o.MarkCompleted()
}

func (w *Worker) observe(outcome string, d time.Duration) {
	if w.processed != nil {
		w.processed.Add(1, observability.L("outcome", outcome))
	}
	if w.duration != nil {
		w.duration.Observe(d.Seconds())
	}
}
