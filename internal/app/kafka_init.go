package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// initKafkaProducer подключается к brokers; пустой список отключает Kafka (nil, nil).
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, logger.WithField("component", "kafka"), kafka.WithSendTimeout(shutdownTimeout))
	if err != nil {
		logger.WithError(err).Warn("kafka unavailable, order events go to the log")
		return nil, err
	}
	logger.WithField("brokers", brokers).Info("kafka producer connected")
	return producer, nil
}

// outboxPublishers выбирает, куда воркер отправляет события заказов и куда
// уходят события, исчерпавшие попытки. Без Kafka DLQ нет.
func outboxPublishers(producer *kafka.Producer, logger *log.Entry) (publisher, dlq domain.OutboxPublisher) {
	if producer == nil {
		return kafka.NewLogPublisher(logger.WithField("component", "outbox-log")), nil
	}
	return kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		kafka.NewOutboxPublisher(producer, kafka.TopicOrderEventsDLQ)
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close failed")
		return
	}
	logger.Debug("kafka producer closed")
}
