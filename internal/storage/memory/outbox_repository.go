package memory

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultOutboxLimit = 100
	defaultOutboxLease = 30 * time.Second
)

type outboxEntry struct {
	msg          domain.OutboxMessage
	createdAt    time.Time
	claimedUntil time.Time
}

// OutboxRepository очередь событий заказов в памяти процесса. Отправленные
// события удаляются сразу, отказавшие остаются в Failed до перезапуска.
type OutboxRepository struct {
	mu     sync.Mutex
	queue  []*outboxEntry
	byID   map[string]*outboxEntry
	failed []domain.OutboxMessage
	lease  time.Duration
	now    func() time.Time
}

// OutboxOption настраивает OutboxRepository.
type OutboxOption func(*OutboxRepository)

// WithOutboxLease задаёт, сколько захваченное событие не выдаётся повторно.
func WithOutboxLease(lease time.Duration) OutboxOption {
	return func(r *OutboxRepository) {
		if lease > 0 {
			r.lease = lease
		}
	}
}

// NewOutboxRepository создаёт пустую очередь.
func NewOutboxRepository(opts ...OutboxOption) *OutboxRepository {
	r := &OutboxRepository{
		byID:  make(map[string]*outboxEntry),
		lease: defaultOutboxLease,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue ставит событие в конец очереди.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byID[msg.ID]; dup {
		return domain.OutboxMessage{}, fmt.Errorf("outbox message %s already queued", msg.ID)
	}
	e := &outboxEntry{msg: msg, createdAt: r.now()}
	r.queue = append(r.queue, e)
	r.byID[msg.ID] = e
	return msg, nil
}

// PullPending захватывает до limit свободных событий в порядке постановки.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var batch []domain.OutboxMessage
	for _, e := range r.queue {
		if len(batch) == limit {
			break
		}
		if e.claimedUntil.After(now) {
			continue
		}
		e.claimedUntil = now.Add(r.lease)
		batch = append(batch, e.msg)
	}
	return batch, nil
}

// Stats считает все события в очереди, захваченные тоже.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := domain.OutboxStats{PendingCount: len(r.queue)}
	if len(r.queue) > 0 {
		stats.OldestPendingAt = r.queue[0].createdAt
	}
	return stats, nil
}

// MarkSent убирает событие из очереди.
func (r *OutboxRepository) MarkSent(id string) error {
	_, err := r.remove(id)
	return err
}

// MarkFailed убирает событие из очереди и откладывает его в Failed.
func (r *OutboxRepository) MarkFailed(id string) error {
	e, err := r.remove(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.failed = append(r.failed, e.msg)
	r.mu.Unlock()
	return nil
}

// Failed возвращает события, которые воркер не смог доставить.
func (r *OutboxRepository) Failed() []domain.OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.failed)
}

func (r *OutboxRepository) remove(id string) (*outboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("outbox message %s: %w", id, domain.ErrOutboxPublish)
	}
	delete(r.byID, id)
	r.queue = slices.DeleteFunc(r.queue, func(q *outboxEntry) bool { return q == e })
	return e, nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
