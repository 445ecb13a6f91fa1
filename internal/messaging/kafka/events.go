package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType тип события заказа; он же event_type строки outbox.
type EventType string

const (
	// EventTypeOrderPlaced: шапка и позиции записаны.
	EventTypeOrderPlaced EventType = "order.placed"
	// EventTypeOrderItemsFailed: шапка записана, позиции нет.
	EventTypeOrderItemsFailed EventType = "order.items_failed"
)

const (
	TopicOrderEvents    = "storefront.order.events"
	TopicOrderEventsDLQ = "storefront.order.events.dlq"
)

// OrderEvent тело сообщения в TopicOrderEvents. Суммы передаются строкой
// с двумя знаками, как их показывает витрина.
type OrderEvent struct {
	EventType  EventType   `json:"event_type"`
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Total      string      `json:"total,omitempty"`
	ItemCount  int         `json:"item_count,omitempty"`
	Lines      []EventLine `json:"lines,omitempty"`

	Reason      string `json:"reason,omitempty"`
	Compensated bool   `json:"compensated,omitempty"`
}

// EventLine позиция заказа в событии.
type EventLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// NewOrderPlaced собирает событие об оформленном заказе; occurred_at берётся из PlacedAt.
func NewOrderPlaced(order *domain.Order) OrderEvent {
	lines := make([]EventLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, EventLine{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			Price:     line.Product.Price.String(),
		})
	}
	return OrderEvent{
		EventType:  EventTypeOrderPlaced,
		OrderID:    order.ID,
		UserID:     order.Identity.ID,
		OccurredAt: order.PlacedAt.UTC(),
		Total:      order.Total.String(),
		ItemCount:  order.ItemCount(),
		Lines:      lines,
	}
}

// NewOrderItemsFailed собирает событие о шапке без позиций.
func NewOrderItemsFailed(orderID, userID string, cause error, compensated bool, at time.Time) OrderEvent {
	ev := OrderEvent{
		EventType:   EventTypeOrderItemsFailed,
		OrderID:     orderID,
		UserID:      userID,
		OccurredAt:  at.UTC(),
		Compensated: compensated,
	}
	if cause != nil {
		ev.Reason = cause.Error()
	}
	return ev
}
