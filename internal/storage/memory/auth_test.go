package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newTestDirectory(opts ...DirectoryOption) *Directory {
	return NewDirectory(append([]DirectoryOption{WithBcryptCost(bcrypt.MinCost)}, opts...)...)
}

func TestAuthSessionSignInSignOut(t *testing.T) {
	dir := newTestDirectory()
	_, err := dir.AddUser("Alice@Example.com", "secret1", domain.Profile{BrandName: "Verde"})
	require.NoError(t, err)

	ctx := context.Background()
	auth := dir.Connect()
	events, unsubscribe := auth.Subscribe()
	defer unsubscribe()

	current, err := auth.CurrentSession(ctx)
	require.NoError(t, err)
	require.Nil(t, current)

	identity, err := auth.SignIn(ctx, domain.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", identity.Email)
	require.Equal(t, "Verde", identity.Name)

	ev := <-events
	require.True(t, ev.Present())
	require.Equal(t, identity.ID, ev.Identity.ID)

	current, err = auth.CurrentSession(ctx)
	require.NoError(t, err)
	require.Equal(t, identity.ID, current.ID)

	require.NoError(t, auth.SignOut(ctx))
	ev = <-events
	require.False(t, ev.Present())
}

func TestAuthSessionSignInErrors(t *testing.T) {
	dir := newTestDirectory(WithEmailConfirmation(true))
	_, err := dir.AddUser("bob@example.com", "secret1", domain.Profile{})
	require.NoError(t, err)

	auth := dir.Connect()
	ctx := context.Background()

	_, err = auth.SignIn(ctx, domain.Credentials{Email: "bob@example.com", Password: "wrong-pass"})
	require.ErrorIs(t, err, domain.ErrAuthentication)

	_, err = auth.SignIn(ctx, domain.Credentials{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, domain.ErrAuthentication)

	require.NoError(t, auth.SignUp(ctx, domain.Credentials{Email: "carol@example.com", Password: "secret1"}, domain.Profile{}))
	_, err = auth.SignIn(ctx, domain.Credentials{Email: "carol@example.com", Password: "secret1"})
	var authErr *domain.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, "email not confirmed", authErr.Reason)

	require.NoError(t, dir.Confirm("carol@example.com"))
	identity, err := auth.SignIn(ctx, domain.Credentials{Email: "carol@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "carol", identity.Name)
}

func TestAuthSessionSignUpValidation(t *testing.T) {
	dir := newTestDirectory()
	auth := dir.Connect()
	ctx := context.Background()

	require.ErrorIs(t, auth.SignUp(ctx, domain.Credentials{Email: "bad", Password: "secret1"}, domain.Profile{}), domain.ErrAuthentication)
	require.ErrorIs(t, auth.SignUp(ctx, domain.Credentials{Email: "a@b.c", Password: "123"}, domain.Profile{}), domain.ErrAuthentication)
	require.NoError(t, auth.SignUp(ctx, domain.Credentials{Email: "a@b.c", Password: "123456"}, domain.Profile{}))
	require.ErrorIs(t, auth.SignUp(ctx, domain.Credentials{Email: "A@B.C", Password: "123456"}, domain.Profile{}), domain.ErrAuthentication)
}

func TestDirectoryRevokeUser(t *testing.T) {
	dir := newTestDirectory()
	alice, err := dir.AddUser("alice@example.com", "secret1", domain.Profile{})
	require.NoError(t, err)
	_, err = dir.AddUser("bob@example.com", "secret1", domain.Profile{})
	require.NoError(t, err)

	ctx := context.Background()
	tab1, tab2, other := dir.Connect(), dir.Connect(), dir.Connect()
	ev1, unsub1 := tab1.Subscribe()
	ev2, unsub2 := tab2.Subscribe()
	evOther, unsubOther := other.Subscribe()
	defer unsub1()
	defer unsub2()
	defer unsubOther()

	_, err = tab1.SignIn(ctx, domain.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = tab2.SignIn(ctx, domain.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = other.SignIn(ctx, domain.Credentials{Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	<-ev1
	<-ev2
	<-evOther

	require.Equal(t, 2, dir.RevokeUser(alice.ID))
	require.False(t, (<-ev1).Present())
	require.False(t, (<-ev2).Present())
	require.Empty(t, evOther)

	current, err := other.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
}

func TestAuthSessionUnsubscribeClosesChannel(t *testing.T) {
	dir := newTestDirectory()
	auth := dir.Connect()
	events, unsubscribe := auth.Subscribe()

	unsubscribe()
	unsubscribe()

	_, ok := <-events
	require.False(t, ok)
	require.Zero(t, dir.RevokeUser("anyone"))
}

func TestDeliverDropsOldestWhenFull(t *testing.T) {
	ch := make(chan domain.SessionEvent, 1)
	first := domain.Identity{ID: "first"}
	deliver(ch, domain.SessionEvent{Identity: &first})
	deliver(ch, domain.SessionEvent{})

	ev := <-ch
	require.False(t, ev.Present())
}

func TestParseDemoUsers(t *testing.T) {
	dir := newTestDirectory()
	require.NoError(t, dir.ParseDemoUsers("demo@example.com:demo123:Long Money Exotics, vip@example.com:vip1234"))

	auth := dir.Connect()
	identity, err := auth.SignIn(context.Background(), domain.Credentials{Email: "demo@example.com", Password: "demo123"})
	require.NoError(t, err)
	require.Equal(t, "Long Money Exotics", identity.Name)

	require.Error(t, dir.ParseDemoUsers("broken"))
}
