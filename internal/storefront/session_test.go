package storefront

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestSession_StartsAtLoginWithoutIdentity(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	screen := s.Screen()
	assert.Equal(t, domain.ViewLogin, screen.View.Kind())
	assert.Nil(t, s.Identity())

	screen = s.Navigate(domain.CartView())
	assert.Equal(t, domain.ViewLogin, screen.View.Kind())

	_, err := s.Products(catalog.Filter{})
	assert.ErrorIs(t, err, domain.ErrLoginRequired)
}

func TestSession_SignInLoadsCatalog(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	screen, err := s.SignIn(context.Background(), domain.Credentials{Email: aliceEmail, Password: alicePassword})
	require.NoError(t, err)
	assert.Equal(t, domain.ViewBrowsing, screen.View.Kind())
	require.NotNil(t, s.Identity())
	assert.Equal(t, "Alice Co", s.Identity().Name)

	products, err := s.Products(catalog.Filter{})
	require.NoError(t, err)
	assert.Len(t, products, 6)

	merch, err := s.Products(catalog.Filter{Category: domain.CategoryMerch})
	require.NoError(t, err)
	assert.Len(t, merch, 2)
}

func TestSession_SignInFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	screen, err := s.SignIn(context.Background(), domain.Credentials{Email: aliceEmail, Password: "wrong-password"})
	require.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Equal(t, domain.ViewLogin, screen.View.Kind())
	assert.Nil(t, s.Identity())
}

func TestSession_ResumesExistingProviderSession(t *testing.T) {
	f := newFixture(t)
	provider := f.auth.Connect()
	_, err := provider.SignIn(context.Background(), domain.Credentials{Email: aliceEmail, Password: alicePassword})
	require.NoError(t, err)

	f.deps.Auth = connectorFunc(func() domain.AuthProvider { return provider })
	s := f.open(t)

	assert.Equal(t, domain.ViewBrowsing, s.Screen().View.Kind())
	products, err := s.Products(catalog.Filter{})
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}

func TestSession_PlaceOrderSuccess(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	view, err := s.AddToCart("lme-pp1", 2)
	require.NoError(t, err)
	assert.Equal(t, "79.98", view.Subtotal.String())

	screen, err := s.PlaceOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ViewConfirmation, screen.View.Kind())
	require.NotNil(t, screen.Order)
	assert.Equal(t, domain.Money(7998), screen.Order.Total)
	assert.Empty(t, s.Cart().Lines)

	rec, err := f.store.Get(screen.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, rec.UserID)
	require.Len(t, rec.Items, 1)
	assert.Equal(t, 2, rec.Items[0].Quantity)

	screen = s.StartNewOrder()
	assert.Equal(t, domain.ViewBrowsing, screen.View.Kind())
	assert.Nil(t, screen.Order)
}

func TestSession_PlaceOrderCompletesAfterCallerCancels(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	_, err := s.AddToCart("lme-pp1", 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// клиент отваливается сразу после записи шапки
	f.store.mu.Lock()
	f.store.afterHeader = cancel
	f.store.mu.Unlock()

	screen, err := s.PlaceOrder(ctx)
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, domain.ViewConfirmation, screen.View.Kind())
	require.NotNil(t, screen.Order)

	rec, err := f.store.Get(screen.Order.ID)
	require.NoError(t, err)
	require.Len(t, rec.Items, 1)
	assert.Equal(t, 2, rec.Items[0].Quantity)
	assert.Empty(t, s.Cart().Lines)
}

func TestSession_SignInIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	screen, err := s.SignIn(ctx, domain.Credentials{Email: aliceEmail, Password: alicePassword})
	require.NoError(t, err)
	assert.Equal(t, domain.ViewBrowsing, screen.View.Kind())
	require.NotNil(t, s.Identity())
}

func TestSession_HeaderFailureKeepsCartAndView(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	_, err := s.AddToCart("lme-pp1", 2)
	require.NoError(t, err)
	s.Navigate(domain.CartView())
	f.store.failHeader(errStoreDown)

	screen, err := s.PlaceOrder(context.Background())
	require.ErrorIs(t, err, domain.ErrOrderCreation)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, domain.ViewCart, screen.View.Kind())

	cartView := s.Cart()
	require.Len(t, cartView.Lines, 1)
	assert.Equal(t, 2, cartView.Lines[0].Quantity)
	assert.Empty(t, f.store.ListByUser(f.alice.ID))
}

func TestSession_ItemsFailureLeavesOrphanHeader(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	_, err := s.AddToCart("lme-pp1", 2)
	require.NoError(t, err)
	s.Navigate(domain.CartView())
	f.store.failItems(errStoreDown)

	screen, err := s.PlaceOrder(context.Background())
	require.ErrorIs(t, err, domain.ErrOrderItems)
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, domain.ViewCart, screen.View.Kind())

	var itemsErr *domain.OrderItemsError
	require.True(t, errors.As(err, &itemsErr))
	assert.False(t, itemsErr.Compensated)

	rec, err := f.store.Get(itemsErr.OrderID)
	require.NoError(t, err)
	assert.Empty(t, rec.Items)
	assert.Len(t, s.Cart().Lines, 1)
}

func TestSession_PlaceOrderRejectsConcurrentSubmit(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)
	_, err := s.AddToCart("lme-m1", 1)
	require.NoError(t, err)

	release := make(chan struct{})
	entered := make(chan struct{})
	f.store.mu.Lock()
	f.store.block, f.store.entered = release, entered
	f.store.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.PlaceOrder(context.Background())
		done <- err
	}()

	<-entered
	_, err = s.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)

	f.store.mu.Lock()
	f.store.block, f.store.entered = nil, nil
	f.store.mu.Unlock()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first PlaceOrder did not finish")
	}
}

func TestSession_SignOutWithFailingRemote(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)
	_, err := s.AddToCart("lme-m2", 1)
	require.NoError(t, err)

	f.auth.failSignOut(errors.New("network down"))
	screen, err := s.SignOut(context.Background())
	require.ErrorIs(t, err, domain.ErrSignOut)

	assert.Equal(t, domain.ViewLogin, screen.View.Kind())
	assert.Nil(t, s.Identity())
	assert.Empty(t, s.Cart().Lines)
}

func TestSession_AddToCartGuards(t *testing.T) {
	f := newFixture(t)

	anonymous := f.open(t)
	_, err := anonymous.AddToCart("lme-pp1", 1)
	assert.ErrorIs(t, err, domain.ErrLoginRequired)

	s := f.signedIn(t)
	tests := []struct {
		name      string
		productID string
		quantity  int
		wantErr   error
	}{
		{name: "zero quantity", productID: "lme-pp1", quantity: 0, wantErr: domain.ErrQuantityInvalid},
		{name: "negative quantity", productID: "lme-pp1", quantity: -3, wantErr: domain.ErrQuantityInvalid},
		{name: "above line limit", productID: "lme-pp1", quantity: domain.MaxLineQuantity + 1, wantErr: domain.ErrQuantityInvalid},
		{name: "max int", productID: "lme-pp1", quantity: math.MaxInt, wantErr: domain.ErrQuantityInvalid},
		{name: "unknown product", productID: "nope", quantity: 1, wantErr: domain.ErrProductNotFound},
		{name: "out of stock", productID: "verde-e1", quantity: 1, wantErr: domain.ErrOutOfStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := s.AddToCart(tt.productID, tt.quantity)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, view.ItemCount)
		})
	}
}

func TestSession_CartEditing(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	_, err := s.AddToCart("lme-pp1", 1)
	require.NoError(t, err)
	_, err = s.AddToCart("lme-m1", 3)
	require.NoError(t, err)
	view, err := s.AddToCart("lme-pp1", 1)
	require.NoError(t, err)
	assert.Equal(t, 5, view.ItemCount)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "lme-pp1", view.Lines[0].Product.ID)

	view, err = s.UpdateCartItem("lme-m1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, view.ItemCount)

	view, err = s.UpdateCartItem("lme-m1", 0)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)

	view = s.RemoveCartItem("missing")
	assert.Len(t, view.Lines, 1)

	view = s.RemoveCartItem("lme-pp1")
	assert.Empty(t, view.Lines)
	assert.Equal(t, domain.Money(0), view.Subtotal)
}

func TestSession_QuantityLimitPerLine(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	view, err := s.AddToCart("lme-pp1", domain.MaxLineQuantity-1)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLineQuantity-1, view.ItemCount)

	view, err = s.AddToCart("lme-pp1", 2)
	assert.ErrorIs(t, err, domain.ErrQuantityInvalid)
	assert.Equal(t, domain.MaxLineQuantity-1, view.ItemCount)

	view, err = s.AddToCart("lme-pp1", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLineQuantity, view.ItemCount)

	view, err = s.UpdateCartItem("lme-pp1", math.MaxInt)
	assert.ErrorIs(t, err, domain.ErrQuantityInvalid)
	assert.Equal(t, domain.MaxLineQuantity, view.ItemCount)
	assert.Positive(t, int64(view.Subtotal))
}

func TestSession_ProductDetailFallsBackWhenProductDeleted(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	screen, err := s.SelectProduct("lme-m2")
	require.NoError(t, err)
	assert.Equal(t, domain.ViewProductDetail, screen.View.Kind())
	require.NotNil(t, screen.Product)
	assert.Equal(t, "lme-m2", screen.Product.ID)

	_, err = s.ChallengeAccessCode("1111")
	require.NoError(t, err)
	require.NoError(t, s.DeleteProduct(context.Background(), "lme-m2"))

	screen = s.Screen()
	assert.Equal(t, domain.ViewBrowsing, screen.View.Kind())

	_, err = s.SelectProduct("")
	assert.Error(t, err)
}

func TestSession_AccessCodes(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	screen := s.Navigate(domain.AdminView())
	assert.Equal(t, domain.ViewLogin, screen.View.Kind())

	_, err := s.AddProduct(context.Background(), outOfStockProduct())
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = s.ChallengeAccessCode("12345")
	assert.ErrorIs(t, err, domain.ErrAccessCodeFormat)
	_, err = s.ChallengeAccessCode("9999")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.False(t, s.Privileged())

	grant, err := s.ChallengeAccessCode("420")
	require.NoError(t, err)
	assert.Equal(t, domain.BrandVerde, grant.Brand)
	assert.False(t, s.Privileged())

	verde, err := s.Products(catalog.Filter{})
	require.NoError(t, err)
	require.Len(t, verde, 1)
	assert.Equal(t, "verde-e1", verde[0].ID)

	grant, err = s.ChallengeAccessCode("1111")
	require.NoError(t, err)
	assert.True(t, grant.Admin)

	screen = s.Navigate(domain.AdminView())
	assert.Equal(t, domain.ViewAdmin, screen.View.Kind())

	created, err := s.AddProduct(context.Background(), domain.Product{
		Name:     "LME Hoodie",
		Category: domain.CategoryMerch,
		Brand:    domain.BrandLongMoneyExotics,
		Price:    6000,
		ImageURL: "https://example.com/hoodie.jpg",
		InStock:  true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	created.Price = 5500
	updated, err := s.UpdateProduct(context.Background(), created)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(5500), updated.Price)

	all, err := s.Products(catalog.Filter{Brand: domain.BrandLongMoneyExotics})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestSession_RemoteRevocationRoutesToLogin(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)
	_, err := s.AddToCart("lme-pp1", 1)
	require.NoError(t, err)
	s.Navigate(domain.CartView())

	require.Equal(t, 1, f.auth.RevokeUser(f.alice.ID))

	require.Eventually(t, func() bool {
		return s.Screen().View.Kind() == domain.ViewLogin
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, s.Identity())
	assert.Empty(t, s.Cart().Lines)

	_, err = s.Products(catalog.Filter{})
	assert.ErrorIs(t, err, domain.ErrLoginRequired)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.signedIn(t)

	s.Close()
	s.Close()
	assert.Nil(t, s.Identity())
}

type connectorFunc func() domain.AuthProvider

func (f connectorFunc) Connect() domain.AuthProvider { return f() }
