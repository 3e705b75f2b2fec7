package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pdv-service/internal/eventbus"
	"pdv-service/internal/models"
	"pdv-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventSink accepts keyed events for delivery to other instances
type EventSink interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// relayTimeout bounds how long a sale waits on Kafka
const relayTimeout = 3 * time.Second

// Relay forwards events raised on this instance's bus to Kafka
type Relay struct {
	sink       EventSink
	instanceID string
	logger     *zap.Logger
}

// NewRelay creates a relay for events originating at instanceID
func NewRelay(sink EventSink, instanceID string) *Relay {
	return &Relay{sink: sink, instanceID: instanceID, logger: util.GetLogger()}
}

// Attach subscribes the relay to bus and returns the unsubscribe function
func (r *Relay) Attach(bus *eventbus.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(models.EventTypeSaleCompleted, r.forward),
		bus.Subscribe(models.EventTypeOrderStatusChanged, r.forward),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (r *Relay) forward(ctx context.Context, payload interface{}) error {
	var (
		base    models.BaseEvent
		orderID string
	)
	switch e := payload.(type) {
	case *models.SaleCompletedEvent:
		base, orderID = e.BaseEvent, e.OrderID
	case *models.OrderStatusChangedEvent:
		base, orderID = e.BaseEvent, e.OrderID
	default:
		return fmt.Errorf("unsupported event payload %T", payload)
	}

	if base.Origin != r.instanceID {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()

	if err := r.sink.PublishEvent(ctx, "order-"+orderID, payload); err != nil {
		r.logger.Warn("Failed to relay event",
			zap.String("event_type", base.EventType),
			zap.String("order_id", orderID),
			zap.Error(err))
		return err
	}
	return nil
}

// EventHandler routes events received from other instances
type EventHandler struct {
	instanceID      string
	onSaleCompleted func(context.Context, *models.SaleCompletedEvent) error
	onStatusChanged func(context.Context, *models.OrderStatusChangedEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a handler that ignores events from instanceID
func NewEventHandler(instanceID string) *EventHandler {
	return &EventHandler{instanceID: instanceID, logger: util.GetLogger()}
}

// OnSaleCompleted registers a handler for SaleCompleted events
func (eh *EventHandler) OnSaleCompleted(handler func(context.Context, *models.SaleCompletedEvent) error) {
	eh.onSaleCompleted = handler
}

// OnStatusChanged registers a handler for OrderStatusChanged events
func (eh *EventHandler) OnStatusChanged(handler func(context.Context, *models.OrderStatusChangedEvent) error) {
	eh.onStatusChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	if baseEvent.Origin == eh.instanceID {
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID),
		zap.String("origin", baseEvent.Origin))

	switch baseEvent.EventType {
	case models.EventTypeSaleCompleted:
		if eh.onSaleCompleted != nil {
			var event models.SaleCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleCompleted event: %w", err)
			}
			return eh.onSaleCompleted(ctx, &event)
		}

	case models.EventTypeOrderStatusChanged:
		if eh.onStatusChanged != nil {
			var event models.OrderStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderStatusChanged event: %w", err)
			}
			return eh.onStatusChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
