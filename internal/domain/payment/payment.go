package payment

import (
	"context"

	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is produced by the gateway and consumed exactly once by the worker
// that submitted the task.
type Result struct {
	Status        Status
	TransactionID string
	Reason        string
}

// Gateway is the external payment collaborator. Calls may be slow; both
// operations honour context cancellation. Refund is assumed idempotent-safe
// to retry by the provider, the core does not enforce that.
type Gateway interface {
	Charge(ctx context.Context, o *domorder.Order) (Result, error)
	Refund(ctx context.Context, o *domorder.Order) (Result, error)
}
