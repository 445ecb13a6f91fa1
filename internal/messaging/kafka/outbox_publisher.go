package kafka

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Заголовки сообщения: тело остаётся ровно тем JSON, что лежит в outbox.
const (
	HeaderOutboxID      = "outbox-id"
	HeaderEventType     = "event-type"
	HeaderAggregateType = "aggregate-type"
)

// TopicPublisher пишет строки outbox в один топик. Ключ сообщения: id заказа.
type TopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher; пустой topic означает TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *TopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &TopicPublisher{producer: producer, topic: topic}
}

// Topic возвращает топик назначения.
func (p *TopicPublisher) Topic() string { return p.topic }

// Publish отправляет событие. Повторная отправка того же outbox-id возможна,
// потребители дедуплицируют по заголовку outbox-id.
func (p *TopicPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	return p.producer.Send(p.topic, key, msg.Payload, map[string]string{
		HeaderOutboxID:      msg.ID,
		HeaderEventType:     msg.EventType,
		HeaderAggregateType: msg.AggregateType,
	})
}

// LogPublisher пишет события в лог; работает, когда Kafka не настроена.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт LogPublisher.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log")
	}
	return &LogPublisher{logger: logger}
}

// Publish никогда не возвращает ошибку.
func (p *LogPublisher) Publish(msg domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"order_id":   msg.AggregateID,
		"event_type": msg.EventType,
	}).Info(string(msg.Payload))
	return nil
}

var (
	_ domain.OutboxPublisher = (*TopicPublisher)(nil)
	_ domain.OutboxPublisher = (*LogPublisher)(nil)
)
