package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/orderflow/internal/domain/payment"
	"github.com/google/uuid"
)

// Simulated is a stand-in payment provider for demos and tests: a seeded
// success rate plus artificial latency. Charges honour context cancellation
// mid-flight; refunds always succeed.
type Simulated struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	latency     time.Duration
}

func NewSimulated(successRate float64, latency time.Duration) *Simulated {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &Simulated{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		latency:     latency,
	}
}

func (g *Simulated) Charge(ctx context.Context, o *domorder.Order) (dompayment.Result, error) {
	if err := g.sleep(ctx); err != nil {
		return dompayment.Result{Status: dompayment.StatusFailed}, err
	}

	g.mu.Lock()
	ok := g.random.Float64() <= g.successRate
	g.mu.Unlock()

	if !ok {
		return dompayment.Result{
			Status: dompayment.StatusFailed,
			Reason: "card_declined",
		}, nil
	}
	return dompayment.Result{
		Status:        dompayment.StatusSuccess,
		TransactionID: uuid.NewString(),
	}, nil
}

func (g *Simulated) Refund(ctx context.Context, o *domorder.Order) (dompayment.Result, error) {
	if err := g.sleep(ctx); err != nil {
		return dompayment.Result{Status: dompayment.StatusFailed}, err
	}
	return dompayment.Result{
		Status:        dompayment.StatusSuccess,
		TransactionID: uuid.NewString(),
	}, nil
}

func (g *Simulated) sleep(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
