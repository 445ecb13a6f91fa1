package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestCatalogRepositoryCRUD(t *testing.T) {
	repo := NewCatalogRepository(SeedProducts())
	ctx := context.Background()

	products, err := repo.ListProducts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 5 || products[0].ID != "lme-pp1" {
		t.Fatalf("unexpected seed %+v", products)
	}

	created, err := repo.CreateProduct(ctx, domain.Product{Name: "Gummies", Category: domain.CategoryEdibles, Price: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, err := repo.CreateProduct(ctx, created); !errors.Is(err, domain.ErrProductExists) {
		t.Fatalf("expected ErrProductExists, got %v", err)
	}

	created.InStock = false
	if _, err := repo.UpdateProduct(ctx, created); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.UpdateProduct(ctx, domain.Product{ID: "missing"}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	if err := repo.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteProduct(ctx, created.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	products, _ = repo.ListProducts(ctx)
	if len(products) != 5 {
		t.Fatalf("expected 5 products, got %d", len(products))
	}
}

func TestSeedProductsAreValid(t *testing.T) {
	for _, p := range SeedProducts() {
		if errs := p.Validate(); len(errs) != 0 {
			t.Errorf("%s: %v", p.ID, errs)
		}
	}
}
