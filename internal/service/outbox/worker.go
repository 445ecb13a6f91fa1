package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
	defaultMaxAttempts  = 3
	defaultBackoff      = 50 * time.Millisecond
	maxBackoff          = 5 * time.Second
)

// Результаты публикации, которые попадают в метку result.
const (
	resultSent      = "sent"
	resultRetry     = "retry_error"
	resultFailed    = "failed"
	resultDLQFailed = "dlq_failed"
)

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics включает счётчики публикаций и gauge backlog.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithDLQPublisher задаёт получателя событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlq = publisher }
}

// WithPollInterval задаёт паузу между циклами.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithBatchSize ограничивает число событий за цикл.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(attempts int) Option {
	return func(w *Worker) {
		if attempts > 0 {
			w.maxAttempts = attempts
		}
	}
}

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше она удваивается.
// Ноль отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) {
		if delay < 0 {
			delay = 0
		}
		w.backoff = delay
	}
}

// Worker переносит события заказов из outbox в publisher (Kafka или лог).
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	logger    *log.Entry
	metrics   *metrics.OutboxMetrics
	now       func() time.Time

	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	backoff      time.Duration
}

// BatchResult итог одного цикла.
type BatchResult struct {
	Sent   int
	Failed int
}

// NewWorker создаёт воркер; без repo или publisher Run сразу выходит.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Worker {
	w := &Worker{
		repo:         repo,
		publisher:    publisher,
		logger:       log.WithField("component", "outbox-worker"),
		now:          func() time.Time { return time.Now().UTC() },
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		backoff:      defaultBackoff,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run разбирает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if res := w.ProcessOnce(ctx); res.Sent+res.Failed > 0 {
			w.logger.WithFields(log.Fields{"sent": res.Sent, "failed": res.Failed}).Debug("outbox batch processed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce забирает один батч и публикует его по порядку. Событие, которое
// не ушло за maxAttempts попыток, уходит в DLQ и помечается failed.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var res BatchResult
	if ctx.Err() != nil {
		return res
	}
	defer w.observeBacklog()

	batch, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("outbox pull failed")
		return res
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		entry := w.logger.WithFields(log.Fields{
			"outbox_id":  msg.ID,
			"order_id":   msg.AggregateID,
			"event_type": msg.EventType,
		})

		if err := w.deliver(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// Остановка: событие остаётся pending до следующего запуска.
				break
			}
			res.Failed++
			w.count(resultFailed)
			entry.WithError(err).Error("order event was not published")
			w.deadLetter(entry, msg, err)
			if err := w.repo.MarkFailed(msg.ID); err != nil {
				entry.WithError(err).Warn("outbox mark failed")
			}
			continue
		}

		res.Sent++
		if err := w.repo.MarkSent(msg.ID); err != nil {
			entry.WithError(err).Warn("outbox mark sent")
		}
	}
	return res
}

func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) error {
	delay := w.backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.publisher.Publish(msg); err == nil {
			w.count(resultSent)
			return nil
		}
		w.count(resultRetry)
		if attempt == w.maxAttempts {
			return fmt.Errorf("%d attempts: %w", attempt, err)
		}
		if delay == 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxBackoff)
	}
}

// deadLetterEnvelope оборачивает исходное событие для топика DLQ.
type deadLetterEnvelope struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	OrderID       string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Error         string          `json:"publish_error"`
	FailedAt      time.Time       `json:"dlq_published_at"`
}

func (w *Worker) deadLetter(entry *log.Entry, msg domain.OutboxMessage, cause error) {
	if w.dlq == nil {
		return
	}

	env := deadLetterEnvelope{
		OutboxID:      msg.ID,
		AggregateType: msg.AggregateType,
		OrderID:       msg.AggregateID,
		EventType:     msg.EventType,
		Error:         cause.Error(),
		FailedAt:      w.now(),
	}
	if json.Valid(msg.Payload) {
		env.Payload = msg.Payload
	}
	body, err := json.Marshal(env)
	if err == nil {
		dead := msg
		dead.Payload = body
		err = w.dlq.Publish(dead)
	}
	if err != nil {
		w.count(resultDLQFailed)
		entry.WithError(err).Warn("dead letter publish failed")
	}
}

func (w *Worker) observeBacklog() {
	if w.metrics == nil {
		return
	}
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("outbox stats failed")
		return
	}
	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

func (w *Worker) count(result string) {
	if w.metrics != nil {
		w.metrics.RecordPublish(result)
	}
}
