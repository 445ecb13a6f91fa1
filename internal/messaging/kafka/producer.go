// Package kafka доставляет события заказов витрины в Kafka.
package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultClientID = "storefront"

var errProducerClosed = errors.New("kafka producer is not initialized")

// ProducerOption меняет sarama.Config до создания producer.
type ProducerOption func(*sarama.Config)

// WithClientID задаёт client.id, под которым витрина видна брокеру.
func WithClientID(id string) ProducerOption {
	return func(cfg *sarama.Config) {
		if id != "" {
			cfg.ClientID = id
		}
	}
}

// WithSendTimeout ограничивает ожидание ответа брокера на одно сообщение.
func WithSendTimeout(timeout time.Duration) ProducerOption {
	return func(cfg *sarama.Config) {
		if timeout > 0 {
			cfg.Producer.Timeout = timeout
		}
	}
}

// ProducerConfig конфигурация sync producer: подтверждение от всех реплик и
// идемпотентная запись, чтобы ретраи sarama не дублировали события.
func ProducerConfig(opts ...ProducerOption) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = defaultClientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Net.MaxOpenRequests = 1
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Producer синхронно пишет сообщения; ключ сообщения определяет партицию,
// поэтому события одного заказа идут по порядку.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducer подключается к brokers.
func NewProducer(brokers []string, logger *log.Entry, opts ...ProducerOption) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, ProducerConfig(opts...))
	if err != nil {
		return nil, fmt.Errorf("kafka producer for %v: %w", brokers, err)
	}
	return NewProducerFromSync(sp, logger), nil
}

// NewProducerFromSync оборачивает готовый SyncProducer, например mocks.SyncProducer.
func NewProducerFromSync(sp sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{sync: sp, logger: logger}
}

// Send отправляет готовое тело сообщения с заголовками.
func (p *Producer) Send(topic, key string, value []byte, headers map[string]string) error {
	if p == nil || p.sync == nil {
		return errProducerClosed
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	entry := p.logger.WithFields(log.Fields{"topic": topic, "key": key})
	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		entry.WithError(err).Error("kafka send failed")
		return fmt.Errorf("kafka send to %s: %w", topic, err)
	}
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("kafka message sent")
	return nil
}

// PublishJSON сериализует v и отправляет его без заголовков.
func (p *Producer) PublishJSON(topic, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kafka encode %T: %w", v, err)
	}
	return p.Send(topic, key, body, nil)
}

// Close дожидается отправки буферов и закрывает соединения.
func (p *Producer) Close() error {
	if p == nil || p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
