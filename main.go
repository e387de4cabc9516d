package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appInventory "github.com/Zhima-Mochi/orderflow/internal/application/inventory"
	appOrder "github.com/Zhima-Mochi/orderflow/internal/application/order"
	"github.com/Zhima-Mochi/orderflow/internal/application/payments"
	"github.com/Zhima-Mochi/orderflow/internal/application/pipeline"
	"github.com/Zhima-Mochi/orderflow/internal/domain/catalog"
	"github.com/Zhima-Mochi/orderflow/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/orderflow/internal/infrastructure/id"
	"github.com/Zhima-Mochi/orderflow/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/orderflow/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/orderflow/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/orderflow/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/orderflow/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/orderflow/internal/observability"
	"github.com/Zhima-Mochi/orderflow/internal/pkg/config"
	"github.com/Zhima-Mochi/orderflow/internal/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)
	logger := zaplogger.Wrap(baseLogger)

	metrics := prometrics.New(cfg.ServiceName, "pipeline")
	tel := telemetry.New(
		oteltrace.New(cfg.ServiceName),
		logger,
		map[string]observability.Counter{
			"orders_processed_total":       metrics.Counter("orders_processed_total", "Orders that reached a terminal status.", "outcome"),
			"inventory_reservations_total": metrics.Counter("inventory_reservations_total", "Reservation attempts by outcome.", "outcome"),
			"payment_tasks_total":          metrics.Counter("payment_tasks_total", "Payment tasks executed.", "kind", "outcome"),
		},
		map[string]observability.Histogram{
			"order_processing_duration_seconds": metrics.Histogram("order_processing_duration_seconds", "End-to-end order processing latency.", nil),
			"payment_task_duration_seconds":     metrics.Histogram("payment_task_duration_seconds", "Gateway call latency.", nil, "kind"),
		},
		map[string]observability.Gauge{
			"order_queue_depth":     metrics.Gauge("order_queue_depth", "Orders waiting in the queue."),
			"inventory_stock_units": metrics.Gauge("inventory_stock_units", "Current stock per product.", "product_id"),
		},
	)

	products := memory.NewCatalog()
	products.Add(&catalog.Product{ID: "sku-tea", Name: "oolong tea", Price: 450})
	products.Add(&catalog.Product{ID: "sku-mochi", Name: "mochi box", Price: 1200})

	inventoryService := appInventory.NewService(tel)
	for _, sku := range []string{"sku-tea", "sku-mochi"} {
		if err := inventoryService.SetStock(sku, cfg.InitialStock); err != nil {
			logger.Error("stock_seed_failed", observability.F("product_id", sku), observability.F("error", err.Error()))
			os.Exit(1)
		}
	}

	paymentGateway := gateway.NewSimulated(0.7, 150*time.Millisecond)
	runner := payments.NewRunner(paymentGateway, cfg.PaymentPoolSize, tel)

	queue := pipeline.NewQueue(cfg.QueueCapacity)
	shipments := memory.NewShipmentLog()
	supervisor := pipeline.NewSupervisor(queue, runner, inventoryService, shipments, pipeline.Options{
		WorkerCount:    cfg.WorkerCount,
		PaymentTimeout: cfg.PaymentTimeout,
		JoinTimeout:    cfg.JoinTimeout,
	}, tel)

	orderService := appOrder.NewService(products, id.NewUUIDGenerator(), supervisor, tel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor.Start(ctx)

	// Demo producer: a steady trickle of orders until interrupted.
	go func() {
		skus := []string{"sku-tea", "sku-mochi"}
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}

			_, err := orderService.CreateOrder(ctx, appOrder.CreateOrderInput{
				CustomerID: fmt.Sprintf("customer-%d", i%5),
				ProductID:  skus[i%len(skus)],
				Quantity:   1 + i%3,
			})
			if err != nil {
				logger.Warn("demo_order_rejected", observability.F("error", err.Error()))
			}
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.JoinTimeout+5*time.Second)
	defer cancel()

	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		logger.Error("pipeline_shutdown_error", observability.F("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("pipeline_stopped",
		observability.F("shipments_prepared", shipments.Count()),
	)
}
