package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pdv-service/internal/eventbus"
	"pdv-service/internal/models"
	"pdv-service/internal/store"
	"pdv-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderNumberAssignment selects how order numbers are allocated
type OrderNumberAssignment string

const (
	// OrderNumberSequence increments a counter row inside the order transaction.
	OrderNumberSequence OrderNumberAssignment = "sequence"
	// OrderNumberOptimisticRetry takes MAX+1 and retries on a unique violation.
	OrderNumberOptimisticRetry OrderNumberAssignment = "optimistic"
)

// ParseOrderNumberAssignment validates a configured strategy name
func ParseOrderNumberAssignment(raw string) (OrderNumberAssignment, error) {
	switch a := OrderNumberAssignment(strings.ToLower(strings.TrimSpace(raw))); a {
	case OrderNumberSequence, OrderNumberOptimisticRetry:
		return a, nil
	case "":
		return OrderNumberSequence, nil
	default:
		return "", fmt.Errorf("unknown order number strategy %q", raw)
	}
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// OrderServiceConfig tunes order creation and status handling
type OrderServiceConfig struct {
	NumberAssignment  OrderNumberAssignment
	MaxRetries        int
	StrictTransitions bool
	InstanceID        string
}

// OrderService handles order business logic
type OrderService struct {
	store  *store.Store
	bus    *eventbus.Bus
	cfg    OrderServiceConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store, bus *eventbus.Bus, cfg OrderServiceConfig) *OrderService {
	if cfg.NumberAssignment == "" {
		cfg.NumberAssignment = OrderNumberSequence
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &OrderService{
		store:  store,
		bus:    bus,
		cfg:    cfg,
		logger: util.GetLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	UserID         string             `json:"userId"`
	Items          []OrderItemRequest `json:"items" binding:"required"`
	CustomerName   *string            `json:"customerName,omitempty"`
	PaymentMethod  string             `json:"paymentMethod" binding:"required"`
	IdempotencyKey string             `json:"idempotencyKey,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  int     `json:"quantity"`
	Note      *string `json:"note,omitempty"`
}

// CreateOrderResult carries the persisted order. Replayed is set when the
// idempotency key matched an order created earlier.
type CreateOrderResult struct {
	Order    *models.Order
	Replayed bool
}

// OrderList is one page of orders
type OrderList struct {
	Orders []models.Order `json:"orders"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// CreateOrder validates the cart, prices it against current products and
// persists the order with its items in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	method, err := validateCreateOrder(req)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	attempts := 1
	if s.cfg.NumberAssignment == OrderNumberOptimisticRetry {
		attempts += s.cfg.MaxRetries
	}

	var result *CreateOrderResult
	for attempt := 1; ; attempt++ {
		result, err = s.createOnce(ctx, req, method)
		if err == nil || !models.IsConflict(err) {
			break
		}

		if req.IdempotencyKey != "" {
			existing, lookupErr := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				result, err = &CreateOrderResult{Order: existing, Replayed: true}, nil
				break
			}
		}

		util.OrderNumberConflictsTotal.Inc()
		if attempt >= attempts {
			err = retriesExhausted(attempt, err)
			break
		}
		s.logger.Debug("Order number collision, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	if err != nil {
		util.RecordError(span, err)
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		if models.IsPersistence(err) {
			s.logger.Error("Failed to create order", zap.Error(err))
		}
		return nil, err
	}

	order := result.Order
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int64("order.number", order.OrderNumber),
		attribute.Bool("order.replayed", result.Replayed),
	)

	if result.Replayed {
		util.OrderReplaysTotal.Inc()
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", order.ID))
		return result, nil
	}

	total, _ := order.Total.Float64()
	util.OrdersCreatedTotal.WithLabelValues(string(order.PaymentMethod)).Inc()
	util.SalesValueTotal.Add(total)
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)))

	s.publish(ctx, models.EventTypeSaleCompleted, &models.SaleCompletedEvent{
		BaseEvent:     s.newBaseEvent(models.EventTypeSaleCompleted),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		ItemCount:     len(order.Items),
	})

	return result, nil
}

func (s *OrderService) createOnce(ctx context.Context, req *CreateOrderRequest, method models.PaymentMethod) (*CreateOrderResult, error) {
	var result *CreateOrderResult

	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				result = &CreateOrderResult{Order: existing, Replayed: true}
				return nil
			}
		}

		user, err := tx.GetUser(ctx, req.UserID)
		if err != nil {
			return err
		}

		createdAt := s.now()
		order := &models.Order{
			ID:            uuid.New().String(),
			Status:        models.OrderStatusPending,
			PaymentMethod: method,
			CustomerName:  req.CustomerName,
			UserID:        user.ID,
			UserName:      user.Name,
			CreatedAt:     createdAt,
			UpdatedAt:     createdAt,
			Items:         make([]models.OrderItem, 0, len(req.Items)),
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			order.IdempotencyKey = &key
		}

		total := decimal.Zero
		for _, item := range req.Items {
			product, err := tx.GetProduct(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if !product.Available {
				return models.NewValidationError("items", "product %s is not available", product.Name)
			}
			if product.TrackStock {
				ok, err := tx.DecrementStock(ctx, product.ID, item.Quantity)
				if err != nil {
					return err
				}
				if !ok {
					return models.NewValidationError("items", "insufficient stock for product %s", product.Name)
				}
			}

			subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(subtotal)
			order.Items = append(order.Items, models.OrderItem{
				ProductID:     product.ID,
				ProductName:   product.Name,
				Quantity:      item.Quantity,
				UnitPrice:     product.Price,
				Subtotal:      subtotal,
				Note:          item.Note,
				StockReserved: product.TrackStock,
			})
		}
		order.Total = total

		number, err := s.nextOrderNumber(ctx, tx)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		result = &CreateOrderResult{Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *OrderService) nextOrderNumber(ctx context.Context, tx *store.Tx) (int64, error) {
	if s.cfg.NumberAssignment == OrderNumberOptimisticRetry {
		return tx.NextMaxNumber(ctx)
	}
	return tx.NextSequenceNumber(ctx)
}

func validateCreateOrder(req *CreateOrderRequest) (models.PaymentMethod, error) {
	if req == nil {
		return "", models.NewValidationError("", "request body is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return "", models.NewValidationError("userId", "is required")
	}
	if len(req.Items) == 0 {
		return "", models.NewValidationError("items", "must contain at least one item")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return "", models.NewValidationError(fmt.Sprintf("items[%d].productId", i), "is required")
		}
		if item.Quantity < 1 {
			return "", models.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be at least 1, got %d", item.Quantity)
		}
	}
	method, ok := models.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return "", models.NewValidationError("paymentMethod", "unsupported payment method %q", req.PaymentMethod)
	}
	return method, nil
}

// retriesExhausted reports the last collision in the message only, so the
// result never matches IsConflict.
func retriesExhausted(attempts int, last error) error {
	return &models.PersistenceError{
		Op:  fmt.Sprintf("assign order number after %d attempts", attempts),
		Err: errors.New(last.Error()),
	}
}

func failureReason(err error) string {
	switch {
	case models.IsPersistence(err):
		return "db_error"
	case models.IsValidation(err):
		return "validation"
	case models.IsNotFound(err):
		return "not_found"
	case models.IsConflict(err):
		return "conflict"
	default:
		return "db_error"
	}
}

// UpdateOrderStatus moves an order to a new status. Only status and
// updated_at change; cancelling returns stock of tracked products.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, rawStatus string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus",
		attribute.String("order.id", orderID),
		attribute.String("order.status", rawStatus))
	defer span.End()

	next, ok := models.ParseOrderStatus(rawStatus)
	if !ok {
		return nil, models.NewValidationError("status", "invalid status %q", rawStatus)
	}

	var (
		updated *models.Order
		from    models.OrderStatus
		changed bool
	)
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		updated = order

		if order.Status == next {
			return nil
		}
		if s.cfg.StrictTransitions && !order.Status.CanTransitionTo(next) {
			return models.NewValidationError("status", "cannot change order from %s to %s", order.Status, next)
		}

		at := s.now()
		if err := tx.UpdateOrderStatus(ctx, order.ID, next, at); err != nil {
			return err
		}

		switch {
		case next == models.OrderStatusCancelled:
			if err := releaseStock(ctx, tx, order); err != nil {
				return err
			}
		case from == models.OrderStatusCancelled:
			if err := s.reserveAgain(ctx, tx, order); err != nil {
				return err
			}
		}

		order.Status = next
		order.UpdatedAt = at
		changed = true
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if !changed {
		return updated, nil
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(string(from), string(next)).Inc()
	s.logger.Info("Order status updated",
		zap.String("order_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)))

	s.publish(ctx, models.EventTypeOrderStatusChanged, &models.OrderStatusChangedEvent{
		BaseEvent:   s.newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     updated.ID,
		OrderNumber: updated.OrderNumber,
		From:        from,
		To:          next,
	})

	return updated, nil
}

// releaseStock returns the units held by each reserved line. A line whose
// product stopped tracking stock gives nothing back and loses its flag, so
// a later revival does not take units again.
func releaseStock(ctx context.Context, tx *store.Tx, order *models.Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		if !item.StockReserved {
			continue
		}
		restored, err := tx.RestoreStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !restored {
			if err := tx.SetStockReserved(ctx, item.ID, false); err != nil {
				return err
			}
			item.StockReserved = false
		}
	}
	return nil
}

// reserveAgain takes stock back out when a cancelled order is revived. Only
// lines that held stock before the cancellation are reserved again.
func (s *OrderService) reserveAgain(ctx context.Context, tx *store.Tx, order *models.Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		if !item.StockReserved {
			continue
		}
		product, err := tx.GetProduct(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if !product.TrackStock {
			if err := tx.SetStockReserved(ctx, item.ID, false); err != nil {
				return err
			}
			item.StockReserved = false
			continue
		}
		ok, err := tx.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewValidationError("status", "insufficient stock for product %s", product.Name)
		}
	}
	return nil
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	return s.store.GetOrder(ctx, orderID)
}

// ListOrders returns a page of orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) (*OrderList, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		return nil, models.NewValidationError("offset", "must not be negative")
	}

	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountOrders(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &OrderList{Orders: orders, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *OrderService) newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Origin:    s.cfg.InstanceID,
		Timestamp: s.now(),
	}
}

// publish notifies subscribers. The order is already committed, so handler
// failures are only logged.
func (s *OrderService) publish(ctx context.Context, event string, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("Event subscribers failed",
			zap.String("event", event),
			zap.Error(err))
	}
}
