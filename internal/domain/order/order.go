package order

import (
	"errors"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount          = errors.New("order: amount must be zero or greater")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusInventoryChecked  Status = "inventory_checked"
	StatusPaymentProcessing Status = "payment_processing"
	StatusPaymentCompleted  Status = "payment_completed"
	StatusShippingPrepared  Status = "shipping_prepared"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

// transitions describes the legal edges of the processing state machine. Any
// edge not listed here is rejected with ErrInvalidStateTransition.
var transitions = map[Status][]Status{
	StatusPending:           {StatusInventoryChecked, StatusFailed, StatusCancelled},
	StatusInventoryChecked:  {StatusPaymentProcessing, StatusFailed},
	StatusPaymentProcessing: {StatusPaymentCompleted, StatusFailed},
	StatusPaymentCompleted:  {StatusShippingPrepared, StatusFailed},
	StatusShippingPrepared:  {StatusCompleted, StatusFailed},
}

// Order is a single unit of work flowing through the pipeline. Status is
// mutated only by the worker that dequeued the order; once a terminal status
// is reached the order is never touched again. The cancel-request flag is the
// one field an outside actor may flip concurrently, hence the atomic.
type Order struct {
	ID             string
	CustomerID     string
	ProductID      string
	Quantity       int
	Amount         int64
	IdempotencyKey string
	Status         Status
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	cancelRequested atomic.Bool
}

func New(id, customerID, productID string, quantity int, amount int64) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Order{
		ID:         id,
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   quantity,
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// RequestCancel flags the order for cancellation. Safe to call from any
// goroutine at any time; it only has an effect if the owning worker observes
// it before starting work on the order.
func (o *Order) RequestCancel() {
	o.cancelRequested.Store(true)
}

func (o *Order) CancelRequested() bool {
	return o.cancelRequested.Load()
}

func (o *Order) Terminal() bool {
	switch o.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (o *Order) MarkInventoryChecked() error {
	return o.transition(StatusInventoryChecked)
}

func (o *Order) MarkPaymentProcessing() error {
	return o.transition(StatusPaymentProcessing)
}

func (o *Order) MarkPaymentCompleted() error {
	return o.transition(StatusPaymentCompleted)
}

func (o *Order) MarkShippingPrepared() error {
	return o.transition(StatusShippingPrepared)
}

func (o *Order) MarkCompleted() error {
	return o.transition(StatusCompleted)
}

// MarkFailed records the reason alongside the terminal status.
func (o *Order) MarkFailed(reason string) error {
	if err := o.transition(StatusFailed); err != nil {
		return err
	}
	o.FailureReason = reason
	return nil
}

// MarkCancelled is only legal before any work has been done.
func (o *Order) MarkCancelled() error {
	return o.transition(StatusCancelled)
}

func (o *Order) transition(to Status) error {
	for _, next := range transitions[o.Status] {
		if next == to {
			o.Status = to
			o.touch()
			return nil
		}
	}
	return ErrInvalidStateTransition
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
