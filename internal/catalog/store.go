// Package catalog хранит товары, видимые в сессии витрины.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Filter отбирает товары по категории и бренду. Пустые поля не фильтруют.
type Filter struct {
	Category domain.Category
	Brand    domain.Brand
}

// Match проверяет товар по фильтру.
func (f Filter) Match(p domain.Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Brand != "" && p.Brand != f.Brand {
		return false
	}
	return true
}

// Store — каталог сессии. Загружается один раз после входа и очищается при выходе.
type Store struct {
	source domain.CatalogSource
	logger *log.Entry

	mu       sync.RWMutex
	products []domain.Product
	loaded   bool
}

// NewStore создаёт пустой каталог поверх источника.
func NewStore(source domain.CatalogSource, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Store{source: source, logger: logger}
}

// Load загружает товары из источника, заменяя текущий список.
func (s *Store) Load(ctx context.Context) error {
	products, err := s.source.ListProducts(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("catalog load failed")
		return fmt.Errorf("load catalog: %w", err)
	}

	s.mu.Lock()
	s.products = append([]domain.Product(nil), products...)
	s.loaded = true
	s.mu.Unlock()

	s.logger.WithField("products", len(products)).Debug("catalog loaded")
	return nil
}

// Reset очищает каталог (после выхода пользователь не видит товаров).
func (s *Store) Reset() {
	s.mu.Lock()
	s.products = nil
	s.loaded = false
	s.mu.Unlock()
}

// Loaded сообщает, загружался ли каталог с последнего Reset.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// List возвращает товары, подходящие под фильтр, в порядке источника.
func (s *Store) List(f Filter) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Lookup ищет товар по id.
func (s *Store) Lookup(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *Store) repository() (domain.CatalogRepository, error) {
	repo, ok := s.source.(domain.CatalogRepository)
	if !ok {
		return nil, domain.ErrCatalogReadOnly
	}
	return repo, nil
}

// Add создаёт товар в репозитории и добавляет его в каталог сессии.
func (s *Store) Add(ctx context.Context, p domain.Product) (domain.Product, error) {
	if errs := p.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	repo, err := s.repository()
	if err != nil {
		return domain.Product{}, err
	}

	created, err := repo.CreateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.mu.Lock()
	s.products = append(s.products, created)
	s.mu.Unlock()
	return created, nil
}

// Update сохраняет изменения товара и заменяет его в каталоге сессии.
func (s *Store) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		return domain.Product{}, domain.ErrProductIDRequired
	}
	if errs := p.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	repo, err := s.repository()
	if err != nil {
		return domain.Product{}, err
	}

	updated, err := repo.UpdateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product %s: %w", p.ID, err)
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == updated.ID {
			s.products[i] = updated
			break
		}
	}
	s.mu.Unlock()
	return updated, nil
}

// Delete удаляет товар. Позиции корзины с этим товаром не трогаются.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrProductIDRequired
	}
	repo, err := s.repository()
	if err != nil {
		return err
	}

	if err := repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}
