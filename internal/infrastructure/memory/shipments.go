package memory

import (
	"context"
	"sync"
	"time"

	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
)

// ShipmentRecord is the bookkeeping entry written once payment has cleared.
type ShipmentRecord struct {
	OrderID    string
	ProductID  string
	Quantity   int
	PreparedAt time.Time
}

// ShipmentLog is the in-memory shipment preparation step. Real deployments
// would hand this to a fulfilment system; the pipeline only needs the step to
// be able to fail so the refund compensation path is exercised.
type ShipmentLog struct {
	mu      sync.Mutex
	records []ShipmentRecord
}

func NewShipmentLog() *ShipmentLog {
	return &ShipmentLog{}
}

func (l *ShipmentLog) Prepare(ctx context.Context, o *domorder.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, ShipmentRecord{
		OrderID:    o.ID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		PreparedAt: time.Now().UTC(),
	})
	return nil
}

func (l *ShipmentLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *ShipmentLog) Records() []ShipmentRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ShipmentRecord, len(l.records))
	copy(out, l.records)
	return out
}
