package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CatalogRepository — in-memory каталог товаров с сохранением порядка добавления.
type CatalogRepository struct {
	mu       sync.RWMutex
	products []domain.Product
}

// NewCatalogRepository создаёт каталог с начальным набором товаров.
func NewCatalogRepository(seed []domain.Product) *CatalogRepository {
	return &CatalogRepository{products: append([]domain.Product(nil), seed...)}
}

func (r *CatalogRepository) ListProducts(context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Product(nil), r.products...), nil
}

func (r *CatalogRepository) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for _, existing := range r.products {
		if existing.ID == p.ID {
			return domain.Product{}, domain.ErrProductExists
		}
	}
	r.products = append(r.products, p)
	return p, nil
}

func (r *CatalogRepository) UpdateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.products {
		if r.products[i].ID == p.ID {
			r.products[i] = p
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

func (r *CatalogRepository) DeleteProduct(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.products {
		if r.products[i].ID == id {
			r.products = append(r.products[:i], r.products[i+1:]...)
			return nil
		}
	}
	return domain.ErrProductNotFound
}

// SeedProducts возвращает стартовый ассортимент для локального запуска.
func SeedProducts() []domain.Product {
	lme := domain.BrandLongMoneyExotics
	return []domain.Product{
		{
			ID:          "lme-pp1",
			Name:        "Strawberry Goyard",
			Category:    domain.CategoryPrePackaged,
			Brand:       lme,
			Price:       3999,
			Description: "Premium pre-packaged flower with a sweet strawberry aroma.",
			ImageURL:    "https://i.imgur.com/Fm4rXLu.jpeg",
			InStock:     true,
		},
		{
			ID:          "lme-pp2",
			Name:        "Popsicle Goyard",
			Category:    domain.CategoryPrePackaged,
			Brand:       lme,
			Price:       3999,
			Description: "Exclusive pre-packaged flower with a cool, refreshing flavor profile.",
			ImageURL:    "https://i.imgur.com/5zJaC9v.jpeg",
			InStock:     true,
		},
		{
			ID:          "lme-pp3",
			Name:        "Green Apple Goyard",
			Category:    domain.CategoryPrePackaged,
			Brand:       lme,
			Price:       3999,
			Description: "A tangy and potent pre-packaged flower with a crisp green apple taste.",
			ImageURL:    "https://i.imgur.com/zBwLB7C.jpeg",
			InStock:     true,
		},
		{
			ID:          "lme-m1",
			Name:        "Long Money Exotics Sticker",
			Category:    domain.CategoryMerch,
			Brand:       lme,
			Price:       700,
			Description: "High-quality vinyl sticker featuring the Long Money Exotics logo.",
			ImageURL:    "https://i.imgur.com/s01nTdc.jpeg",
			InStock:     true,
		},
		{
			ID:          "lme-m2",
			Name:        "Long Money Exotics Beanie (Grey)",
			Category:    domain.CategoryMerch,
			Brand:       lme,
			Price:       2500,
			Description: "A stylish and comfortable grey beanie with the Long Money Exotics logo.",
			ImageURL:    "https://i.imgur.com/BUNigf2.jpeg",
			InStock:     true,
		},
	}
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)
