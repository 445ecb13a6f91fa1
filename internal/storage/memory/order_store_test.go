package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOrderStoreTwoPhaseWrite(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()

	receipt, err := store.InsertHeader(ctx, domain.OrderHeader{UserID: "user-1", Total: 7998})
	if err != nil {
		t.Fatalf("insert header: %v", err)
	}
	if receipt.ID == "" || receipt.CreatedAt.IsZero() {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	items := []domain.OrderLineItem{{OrderID: receipt.ID, ProductID: "lme-pp1", Quantity: 2, Price: 3999}}
	if err := store.InsertLineItems(ctx, items); err != nil {
		t.Fatalf("insert items: %v", err)
	}

	rec, err := store.Get(receipt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Total != 7998 || len(rec.Items) != 1 || rec.Items[0].Quantity != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if got := store.ListByUser("user-1"); len(got) != 1 {
		t.Fatalf("expected 1 order for user, got %d", len(got))
	}
}

func TestOrderStoreItemsRequireHeader(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()

	receipt, _ := store.InsertHeader(ctx, domain.OrderHeader{UserID: "user-1", Total: 100})
	err := store.InsertLineItems(ctx, []domain.OrderLineItem{
		{OrderID: receipt.ID, ProductID: "a", Quantity: 1, Price: 100},
		{OrderID: "missing", ProductID: "b", Quantity: 1, Price: 100},
	})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	rec, _ := store.Get(receipt.ID)
	if len(rec.Items) != 0 {
		t.Fatalf("expected no items written, got %d", len(rec.Items))
	}
}

func TestOrderStoreDeleteHeader(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()

	receipt, _ := store.InsertHeader(ctx, domain.OrderHeader{UserID: "user-1", Total: 100})
	if err := store.DeleteHeader(ctx, receipt.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(receipt.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if err := store.DeleteHeader(ctx, receipt.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on second delete, got %v", err)
	}
}

func TestOrderStoreHeaderRequiresUser(t *testing.T) {
	store := NewOrderStore()
	if _, err := store.InsertHeader(context.Background(), domain.OrderHeader{Total: 100}); !errors.Is(err, domain.ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
}
