package inventory

import (
	"errors"
	"sync"

	dominv "github.com/Zhima-Mochi/orderflow/internal/domain/inventory"
	"github.com/Zhima-Mochi/orderflow/internal/observability"
)

const component = "inventory_service"

// Service is the shared stock ledger. A single mutex guards the whole
// check-then-mutate span: it is not enough to protect the map alone, the
// compound "is there enough stock, then decrement" sequence must be one
// critical section or two concurrent reservations can both observe sufficient
// stock and drive the count negative.
type Service struct {
	mu    sync.Mutex
	items map[string]*dominv.Item

	log          observability.Logger
	reservations observability.Counter // inventory_reservations_total{outcome}
	stockGauge   observability.Gauge   // inventory_stock_units{product_id}
}

func NewService(tel observability.Telemetry) *Service {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Service{
		items:        make(map[string]*dominv.Item),
		log:          tel.Logger().With(observability.F("component", component)),
		reservations: tel.Counter("inventory_reservations_total"),
		stockGauge:   tel.Gauge("inventory_stock_units"),
	}
}

// SetStock seeds or overwrites the ledger entry for a product.
func (s *Service) SetStock(productID string, quantity int) error {
	item, err := dominv.NewItem(productID, quantity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items[productID] = item
	s.mu.Unlock()

	s.observeStock(productID, quantity)
	return nil
}

// HasStock is a snapshot check; the answer may be stale by the time a
// reservation is attempted. Use it for fast-fail only, never for correctness.
func (s *Service) HasStock(productID string, quantity int) bool {
	if quantity <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[productID]
	return ok && item.Quantity >= quantity
}

// Reserve atomically checks that at least quantity units are available and
// decrements by exactly that amount. Returns false and leaves the ledger
// untouched otherwise. No intermediate state is observable by other callers.
func (s *Service) Reserve(productID string, quantity int) bool {
	s.mu.Lock()
	item, ok := s.items[productID]
	if !ok {
		s.mu.Unlock()
		s.count("missing_product")
		return false
	}
	err := item.Deduct(quantity)
	remaining := item.Quantity
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, dominv.ErrInsufficientStock) {
			s.count("insufficient_stock")
		} else {
			s.count("rejected")
		}
		return false
	}

	s.count("reserved")
	s.observeStock(productID, remaining)
	return true
}

// Release returns quantity units to the ledger, the compensation path for a
// reservation whose downstream stage failed. Releasing an unknown product
// creates its entry so compensation never silently drops units.
func (s *Service) Release(productID string, quantity int) {
	if quantity <= 0 {
		return
	}

	s.mu.Lock()
	item, ok := s.items[productID]
	if !ok {
		item, _ = dominv.NewItem(productID, 0)
		s.items[productID] = item
	}
	_ = item.Restock(quantity)
	remaining := item.Quantity
	s.mu.Unlock()

	s.count("released")
	s.observeStock(productID, remaining)
}

// Stock reads the current count consistently with concurrent mutations.
func (s *Service) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[productID]
	if !ok {
		return 0
	}
	return item.Quantity
}

func (s *Service) count(outcome string) {
	if s.reservations != nil {
		s.reservations.Add(1, observability.L("outcome", outcome))
	}
}

func (s *Service) observeStock(productID string, quantity int) {
	if s.stockGauge != nil {
		s.stockGauge.Set(float64(quantity), observability.L("product_id", productID))
	}
}
