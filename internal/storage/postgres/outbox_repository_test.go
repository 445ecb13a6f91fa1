package postgres

import (
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newMockOutbox(t *testing.T, opts ...OutboxOption) (*OutboxRepository, sqlmock.Sqlmock, time.Time) {
	t.Helper()

	store, mock := newMockStore(t)
	repo := NewOutboxRepository(store, opts...)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	return repo, mock, now
}

func TestOutboxRepository_EnqueueAssignsID(t *testing.T) {
	repo, mock, now := newMockOutbox(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
		WithArgs(sqlmock.AnyArg(), "order", "order-1", "order.placed", []byte(`{}`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.placed",
		Payload:       []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOutboxRepository_PullPendingClaimsWithLease(t *testing.T) {
	repo, mock, now := newMockOutbox(t, WithClaimLease(time.Minute))

	older := now.Add(-2 * time.Minute)
	newer := now.Add(-time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
		WithArgs(now, 10, now.Add(time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow("evt-2", "order", "order-2", "order.placed", []byte(`{"n":2}`), newer).
			AddRow("evt-1", "order", "order-1", "order.placed", []byte(`{"n":1}`), older))

	batch, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(batch) != 2 || batch[0].ID != "evt-1" || batch[1].ID != "evt-2" {
		t.Fatalf("batch must be ordered by creation time, got %+v", batch)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOutboxRepository_PullPendingDefaultLimit(t *testing.T) {
	repo, mock, now := newMockOutbox(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
		WithArgs(now, defaultOutboxBatch, now.Add(defaultClaimLease)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at"}))

	batch, err := repo.PullPending(0)
	if err != nil || len(batch) != 0 {
		t.Fatalf("expected empty batch, got %+v, %v", batch, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	repo, mock, now := newMockOutbox(t)

	oldest := now.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*), MIN(created_at) FROM outbox_messages`)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "min"}).AddRow(3, oldest))

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 3 || !stats.OldestPendingAt.Equal(oldest) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOutboxRepository_StatsEmptyBacklog(t *testing.T) {
	repo, mock, _ := newMockOutbox(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "min"}).AddRow(0, nil))

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOutboxRepository_MarkSentReleasesClaim(t *testing.T) {
	repo, mock, now := newMockOutbox(t)

	mock.ExpectExec(regexp.QuoteMeta(`claimed_until = NULL`)).
		WithArgs("evt-1", "sent", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkSent("evt-1"); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOutboxRepository_MarkFailedUnknownMessage(t *testing.T) {
	repo, mock, now := newMockOutbox(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox_messages`)).
		WithArgs("missing", "failed", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkFailed("missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
}

func TestOutboxRepository_MarkPropagatesDBError(t *testing.T) {
	repo, mock, _ := newMockOutbox(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox_messages`)).
		WillReturnResult(driver.ResultNoRows)

	err := repo.MarkSent("evt-1")
	if err == nil || errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected rows affected error, got %v", err)
	}
}
