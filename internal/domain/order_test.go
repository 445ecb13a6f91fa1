package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания заказа с одной позицией 39.99 × 2.
func makeOrder() domain.Order {
	return domain.Order{
		ID:       "ord-1",
		Identity: domain.Identity{ID: "user-1", Email: "buyer@example.com", Name: "buyer"},
		Lines: []domain.CartLine{
			{
				Product:  domain.Product{ID: "lme-pp1", Name: "Pre-Pack", Price: 3999},
				Quantity: 2,
			},
		},
		Total:    7998,
		PlacedAt: time.Now().UTC(),
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
	if order.ItemCount() != 2 {
		t.Fatalf("expected item count 2, got %d", order.ItemCount())
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no id",
			mut:  func(o *domain.Order) { o.ID = "" },
			want: domain.ErrOrderIDRequired,
		},
		{
			name: "no lines",
			mut: func(o *domain.Order) {
				o.Lines = nil
				o.Total = 0
			},
			want: domain.ErrItemsRequired,
		},
		{
			name: "zero qty",
			mut: func(o *domain.Order) {
				o.Lines[0].Quantity = 0
				o.Total = 0
			},
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "total mismatch",
			mut:  func(o *domain.Order) { o.Total = 1 },
			want: domain.ErrAmountMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			errs := order.ValidateInvariants()
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v in %v", tc.want, errs)
			}
		})
	}
}

func TestLineItems(t *testing.T) {
	order := makeOrder()
	items := domain.LineItems("ord-1", order.Lines)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	want := domain.OrderLineItem{OrderID: "ord-1", ProductID: "lme-pp1", Quantity: 2, Price: 3999}
	if items[0] != want {
		t.Fatalf("unexpected line item: %+v", items[0])
	}
}
