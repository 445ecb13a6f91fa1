package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `id, name, category, brand, price, description, image_url, in_stock`

// CatalogRepository — каталог товаров в таблице products.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{db: store.DB()}
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+productColumns,
		p.ID, p.Name, string(p.Category), string(p.Brand), p.Price.Decimal(), p.Description, p.ImageURL, p.InStock,
	)
	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, domain.ErrProductExists
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2,
		    category = $3,
		    brand = $4,
		    price = $5,
		    description = $6,
		    image_url = $7,
		    in_stock = $8,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, string(p.Category), string(p.Brand), p.Price.Decimal(), p.Description, p.ImageURL, p.InStock,
	)
	updated, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for delete product: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p        domain.Product
		category string
		brand    string
		price    decimal.Decimal
	)
	if err := row.Scan(&p.ID, &p.Name, &category, &brand, &price, &p.Description, &p.ImageURL, &p.InStock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, err
		}
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	p.Category = domain.Category(category)
	p.Brand = domain.Brand(brand)
	p.Price = domain.NewMoneyFromDecimal(price)
	return p, nil
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)
