package domain_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestProductDetailViewRequiresID(t *testing.T) {
	if _, err := domain.ProductDetailView(""); !errors.Is(err, domain.ErrProductIDRequired) {
		t.Fatalf("expected ErrProductIDRequired, got %v", err)
	}

	view, err := domain.ProductDetailView("lme-m1")
	if err != nil {
		t.Fatal(err)
	}
	id, ok := view.ProductID()
	if !ok || id != "lme-m1" {
		t.Fatalf("unexpected product id %q %v", id, ok)
	}
	if view.String() != "product_detail(lme-m1)" {
		t.Fatalf("unexpected string %q", view.String())
	}
}

func TestViewGating(t *testing.T) {
	cases := []struct {
		view      domain.ViewState
		identity  bool
		privilege bool
	}{
		{domain.LoginView(), false, false},
		{domain.BrowsingView(), true, false},
		{domain.CartView(), true, false},
		{domain.ConfirmationView(), true, false},
		{domain.AdminView(), true, true},
	}
	for _, tc := range cases {
		if tc.view.RequiresIdentity() != tc.identity {
			t.Errorf("%s: RequiresIdentity mismatch", tc.view)
		}
		if tc.view.RequiresPrivilege() != tc.privilege {
			t.Errorf("%s: RequiresPrivilege mismatch", tc.view)
		}
		if _, ok := tc.view.ProductID(); ok {
			t.Errorf("%s: unexpected product id", tc.view)
		}
	}

	var zero domain.ViewState
	if zero.Kind() != domain.ViewLogin {
		t.Fatalf("zero view must read as login, got %s", zero.Kind())
	}
}

func TestParseViewKind(t *testing.T) {
	if k, err := domain.ParseViewKind("cart"); err != nil || k != domain.ViewCart {
		t.Fatalf("unexpected %q %v", k, err)
	}
	if _, err := domain.ParseViewKind("checkout"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewView(t *testing.T) {
	view, err := domain.NewView(domain.ViewCart, "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if view.Kind() != domain.ViewCart {
		t.Fatalf("unexpected kind %s", view.Kind())
	}
	if _, ok := view.ProductID(); ok {
		t.Fatal("cart view must not carry a product id")
	}

	if _, err := domain.NewView(domain.ViewProductDetail, ""); !errors.Is(err, domain.ErrProductIDRequired) {
		t.Fatalf("expected ErrProductIDRequired, got %v", err)
	}
	if _, err := domain.NewView("checkout", ""); err == nil {
		t.Fatal("expected error for unknown view")
	}
}
