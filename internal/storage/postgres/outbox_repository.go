package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultOutboxBatch = 100
	// defaultClaimLease: столько времени захваченное событие скрыто от других воркеров.
	defaultClaimLease = 30 * time.Second
)

// OutboxRepository хранит события заказов в таблице outbox_messages.
// PullPending захватывает строки через SKIP LOCKED, поэтому несколько
// реплик могут разбирать очередь одновременно.
type OutboxRepository struct {
	db    *sql.DB
	lease time.Duration
	now   func() time.Time
}

// OutboxOption настраивает OutboxRepository.
type OutboxOption func(*OutboxRepository)

// WithClaimLease задаёт срок захвата события воркером.
func WithClaimLease(lease time.Duration) OutboxOption {
	return func(r *OutboxRepository) {
		if lease > 0 {
			r.lease = lease
		}
	}
}

// NewOutboxRepository создаёт outbox поверх соединения store.
func NewOutboxRepository(store *Store, opts ...OutboxOption) *OutboxRepository {
	r := &OutboxRepository{
		db:    store.DB(),
		lease: defaultClaimLease,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue записывает событие в статусе pending.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Payload == nil {
		msg.Payload = []byte{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	const query = `
		INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $6)`
	if _, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, r.now(),
	); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("outbox enqueue %s/%s: %w", msg.AggregateID, msg.EventType, err)
	}
	return msg, nil
}

// PullPending захватывает до limit событий, которые никто не держит, и
// возвращает их в порядке записи.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := r.now()
	const query = `
		WITH batch AS (
			SELECT id FROM outbox_messages
			WHERE status = 'pending' AND (claimed_until IS NULL OR claimed_until < $1)
			ORDER BY created_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_messages o
		SET claimed_until = $3
		FROM batch
		WHERE o.id = batch.id
		RETURNING o.id, o.aggregate_type, o.aggregate_id, o.event_type, o.payload, o.created_at`
	rows, err := r.db.QueryContext(ctx, query, now, limit, now.Add(r.lease))
	if err != nil {
		return nil, fmt.Errorf("outbox claim: %w", err)
	}
	defer rows.Close()

	type claimed struct {
		msg       domain.OutboxMessage
		createdAt time.Time
	}
	var batch []claimed
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.msg.ID, &c.msg.AggregateType, &c.msg.AggregateID,
			&c.msg.EventType, &c.msg.Payload, &c.createdAt); err != nil {
			return nil, fmt.Errorf("outbox claim scan: %w", err)
		}
		batch = append(batch, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox claim rows: %w", err)
	}

	// RETURNING не сохраняет порядок подзапроса.
	slices.SortFunc(batch, func(a, b claimed) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return cmp.Compare(a.msg.ID, b.msg.ID)
	})

	messages := make([]domain.OutboxMessage, len(batch))
	for i, c := range batch {
		messages[i] = c.msg
	}
	return messages, nil
}

// Stats считает backlog: и свободные, и захваченные события в статусе pending.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		count  int
		oldest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = 'pending'`,
	).Scan(&count, &oldest)
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}

	stats := domain.OutboxStats{PendingCount: count}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

// MarkSent закрывает событие после успешной публикации.
func (r *OutboxRepository) MarkSent(id string) error {
	return r.finish(id, "sent")
}

// MarkFailed закрывает событие, которое воркер больше не будет повторять.
func (r *OutboxRepository) MarkFailed(id string) error {
	return r.finish(id, "failed")
}

func (r *OutboxRepository) finish(id, status string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	const query = `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, claimed_until = NULL, updated_at = $3
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, r.now())
	if err != nil {
		return fmt.Errorf("outbox mark %s %s: %w", id, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("outbox mark %s %s: %w", id, status, err)
	}
	if affected == 0 {
		return fmt.Errorf("outbox message %s: %w", id, domain.ErrOutboxPublish)
	}
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
