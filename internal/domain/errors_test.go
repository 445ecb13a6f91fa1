package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("boom")

	cases := []struct {
		err  error
		want error
	}{
		{&domain.AuthenticationError{Reason: "invalid credentials", Err: cause}, domain.ErrAuthentication},
		{&domain.SignOutError{Err: cause}, domain.ErrSignOut},
		{&domain.OrderCreationError{Err: cause}, domain.ErrOrderCreation},
		{&domain.OrderItemsError{OrderID: "ord-1", Err: cause}, domain.ErrOrderItems},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("op: %w", tc.err)
		if !errors.Is(wrapped, tc.want) {
			t.Errorf("%v does not match %v", tc.err, tc.want)
		}
		if !errors.Is(wrapped, cause) {
			t.Errorf("%v does not unwrap to cause", tc.err)
		}
	}

	var itemsErr *domain.OrderItemsError
	if !errors.As(fmt.Errorf("wrap: %w", &domain.OrderItemsError{OrderID: "ord-1", Err: cause}), &itemsErr) {
		t.Fatal("expected errors.As to find OrderItemsError")
	}
	if itemsErr.OrderID != "ord-1" {
		t.Fatalf("unexpected order id %q", itemsErr.OrderID)
	}
}

func TestIsRetryable(t *testing.T) {
	if !domain.IsRetryable(&domain.OrderCreationError{Err: errors.New("x")}) {
		t.Fatal("header failure must be retryable")
	}
	if domain.IsRetryable(&domain.OrderItemsError{OrderID: "ord-1", Err: errors.New("x")}) {
		t.Fatal("items failure must not be retryable")
	}
}

func TestDisplayName(t *testing.T) {
	if got := domain.DisplayName("alice@example.com", ""); got != "alice" {
		t.Fatalf("expected alice, got %q", got)
	}
	if got := domain.DisplayName("alice@example.com", " Verde "); got != "Verde" {
		t.Fatalf("expected Verde, got %q", got)
	}
}
