package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("catalog: product not found")

type Product struct {
	ID    string
	Name  string
	Price int64
}

// Catalog is the product lookup collaborator, used upstream of enqueue to
// price an order. It is never called from inside the worker loop.
type Catalog interface {
	Lookup(ctx context.Context, productID string) (*Product, error)
}
