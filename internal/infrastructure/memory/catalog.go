package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/orderflow/internal/domain/catalog"
)

type Catalog struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]*domain.Product),
	}
}

func (c *Catalog) Add(p *domain.Product) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = cloneProduct(p)
}

func (c *Catalog) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	clone := *p
	return &clone
}
