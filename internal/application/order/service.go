package order

import (
	"context"
	"errors"
	"fmt"

	domcatalog "github.com/Zhima-Mochi/orderflow/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/orderflow/internal/domain/order"
	"github.com/Zhima-Mochi/orderflow/internal/observability"
	"github.com/Zhima-Mochi/orderflow/internal/observability/logctx"
)

type IDGenerator interface {
	NewID() string
}

// Enqueuer is the pipeline boundary the intake service feeds.
type Enqueuer interface {
	Enqueue(o *domain.Order) error
}

// Service builds fully-formed PENDING orders and hands them to the pipeline.
// Pricing happens here, upstream of enqueue; the worker loop never calls the
// catalog.
type Service struct {
	catalog     domcatalog.Catalog
	idGenerator IDGenerator
	enqueuer    Enqueuer
	log         observability.Logger
}

func NewService(catalog domcatalog.Catalog, idGen IDGenerator, enqueuer Enqueuer, tel observability.Telemetry) *Service {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Service{
		catalog:     catalog,
		idGenerator: idGen,
		enqueuer:    enqueuer,
		log:         tel.Logger().With(observability.F("component", "order_service")),
	}
}

type CreateOrderInput struct {
	CustomerID     string
	ProductID      string
	Quantity       int
	IdempotencyKey string
}

type CreateOrderResult struct {
	Order *domain.Order
}

func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	logger := logctx.FromOr(ctx, s.log)

	if input.CustomerID == "" {
		return nil, errors.New("order: customer id is required")
	}
	if input.ProductID == "" {
		return nil, errors.New("order: product id is required")
	}

	product, err := s.catalog.Lookup(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("order: lookup product: %w", err)
	}

	entity, err := domain.New(
		s.idGenerator.NewID(),
		input.CustomerID,
		input.ProductID,
		input.Quantity,
		product.Price*int64(input.Quantity),
	)
	if err != nil {
		return nil, err
	}
	entity.IdempotencyKey = input.IdempotencyKey

	if err := s.enqueuer.Enqueue(entity); err != nil {
		logger.Warn("order_enqueue_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("order: enqueue: %w", err)
	}

	logger.Info("order_enqueued",
		observability.F("order_id", entity.ID),
		observability.F("product_id", entity.ProductID),
		observability.F("amount", entity.Amount),
	)
	return &CreateOrderResult{Order: entity}, nil
}
