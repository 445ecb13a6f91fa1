package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderRecord — сохранённая шапка заказа вместе с позициями.
type OrderRecord struct {
	ID        string
	UserID    string
	Total     domain.Money
	CreatedAt time.Time
	Items     []domain.OrderLineItem
}

// OrderStore — in-memory хранилище шапок и позиций заказов.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*OrderRecord
	now    func() time.Time
}

// NewOrderStore создаёт пустое хранилище заказов.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*OrderRecord),
		now:    time.Now,
	}
}

// InsertHeader сохраняет шапку и возвращает сгенерированный id.
func (s *OrderStore) InsertHeader(_ context.Context, header domain.OrderHeader) (domain.HeaderReceipt, error) {
	if header.UserID == "" {
		return domain.HeaderReceipt{}, domain.ErrLoginRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &OrderRecord{
		ID:        uuid.NewString(),
		UserID:    header.UserID,
		Total:     header.Total,
		CreatedAt: s.now().UTC(),
	}
	s.orders[rec.ID] = rec
	return domain.HeaderReceipt{ID: rec.ID, CreatedAt: rec.CreatedAt}, nil
}

// InsertLineItems добавляет позиции. Все позиции должны ссылаться на
// существующие шапки, иначе не сохраняется ни одна.
func (s *OrderStore) InsertLineItems(_ context.Context, items []domain.OrderLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if _, ok := s.orders[item.OrderID]; !ok {
			return fmt.Errorf("order %s: %w", item.OrderID, domain.ErrOrderNotFound)
		}
		if item.Quantity <= 0 {
			return domain.ErrItemQtyInvalid
		}
	}
	for _, item := range items {
		rec := s.orders[item.OrderID]
		rec.Items = append(rec.Items, item)
	}
	return nil
}

// DeleteHeader удаляет шапку вместе с позициями.
func (s *OrderStore) DeleteHeader(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(s.orders, orderID)
	return nil
}

// Get возвращает копию заказа.
func (s *OrderStore) Get(orderID string) (OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.orders[orderID]
	if !ok {
		return OrderRecord{}, domain.ErrOrderNotFound
	}
	return copyRecord(rec), nil
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (s *OrderStore) ListByUser(userID string) []OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]OrderRecord, 0)
	for _, rec := range s.orders {
		if rec.UserID == userID {
			result = append(result, copyRecord(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func copyRecord(rec *OrderRecord) OrderRecord {
	c := *rec
	c.Items = append([]domain.OrderLineItem(nil), rec.Items...)
	return c
}

var (
	_ domain.OrderStore         = (*OrderStore)(nil)
	_ domain.OrderHeaderDeleter = (*OrderStore)(nil)
)
