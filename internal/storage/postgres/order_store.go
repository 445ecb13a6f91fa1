package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const opTimeout = 5 * time.Second

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

// OrderStore — PostgreSQL-хранилище шапок (orders) и позиций (order_items).
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore создаёт хранилище заказов поверх Store.
func NewOrderStore(store *Store) *OrderStore {
	return &OrderStore{db: store.DB()}
}

// InsertHeader вставляет шапку; id и created_at генерирует база.
func (s *OrderStore) InsertHeader(ctx context.Context, header domain.OrderHeader) (domain.HeaderReceipt, error) {
	if header.UserID == "" {
		return domain.HeaderReceipt{}, domain.ErrLoginRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var receipt domain.HeaderReceipt
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, total)
		VALUES ($1, $2)
		RETURNING id::text, created_at
	`, header.UserID, header.Total.Decimal()).Scan(&receipt.ID, &receipt.CreatedAt)
	if err != nil {
		return domain.HeaderReceipt{}, fmt.Errorf("insert order header: %w", err)
	}
	receipt.CreatedAt = receipt.CreatedAt.UTC()

	return receipt, nil
}

// InsertLineItems вставляет все позиции в одной транзакции.
func (s *OrderStore) InsertLineItems(ctx context.Context, items []domain.OrderLineItem) (err error) {
	if len(items) == 0 {
		return domain.ErrItemsRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
		`, item.OrderID, item.ProductID, item.Quantity, item.Price.Decimal())
		if err != nil {
			if isMissingOrder(err) {
				return fmt.Errorf("insert order item %s: %w", item.ProductID, domain.ErrOrderNotFound)
			}
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order items: %w", err)
	}
	return nil
}

// DeleteHeader удаляет шапку вместе с позициями (ON DELETE CASCADE).
func (s *OrderStore) DeleteHeader(ctx context.Context, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		if isMissingOrder(err) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("delete order header: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for delete order: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// isMissingOrder: FK на несуществующую шапку или id не в формате uuid.
func isMissingOrder(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation || pgErr.Code == pgInvalidTextRepr
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

var (
	_ domain.OrderStore         = (*OrderStore)(nil)
	_ domain.OrderHeaderDeleter = (*OrderStore)(nil)
)
