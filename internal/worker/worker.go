package worker

import (
	"context"

	"pdv-service/internal/broker"
	"pdv-service/internal/models"
	"pdv-service/internal/util"

	"go.uber.org/zap"
)

// DashboardRefresher is the part of the report service the workers drive
type DashboardRefresher interface {
	InvalidateDashboard(ctx context.Context) error
	RefreshDashboard(ctx context.Context) error
}

// RefreshWorker invalidates the cached dashboard when another instance
// records a sale or changes an order status
type RefreshWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	reports      DashboardRefresher
	logger       *zap.Logger
}

// NewRefreshWorker creates a new refresh worker. Events raised by
// instanceID itself are skipped; the local bus already handled them.
func NewRefreshWorker(consumer *broker.Consumer, instanceID string, reports DashboardRefresher) *RefreshWorker {
	w := &RefreshWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(instanceID),
		reports:      reports,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnSaleCompleted(w.handleSaleCompleted)
	w.eventHandler.OnStatusChanged(w.handleStatusChanged)

	return w
}

func (w *RefreshWorker) handleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	w.logger.Debug("Remote sale completed",
		zap.String("order_id", event.OrderID),
		zap.String("origin", event.Origin))
	return w.reports.InvalidateDashboard(ctx)
}

func (w *RefreshWorker) handleStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	w.logger.Debug("Remote order status changed",
		zap.String("order_id", event.OrderID),
		zap.String("to", string(event.To)),
		zap.String("origin", event.Origin))
	return w.reports.InvalidateDashboard(ctx)
}

// Start starts the worker
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting dashboard refresh worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *RefreshWorker) Stop() error {
	w.logger.Info("Stopping dashboard refresh worker")
	return w.consumer.Close()
}
