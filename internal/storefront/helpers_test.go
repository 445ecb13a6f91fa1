package storefront

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

const (
	aliceEmail    = "alice@example.com"
	alicePassword = "hunter22"
)

var errStoreDown = errors.New("store unavailable")

func testLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

// controlledStore: хранилище заказов поверх memory.OrderStore с управляемыми отказами.
type controlledStore struct {
	*memory.OrderStore

	mu        sync.Mutex
	headerErr error
	itemsErr  error
	// block, если задан, удерживает InsertHeader до закрытия канала.
	block     chan struct{}
	entered   chan struct{}

	// afterHeader вызывается после успешной записи шапки.
	afterHeader func()
}

func newControlledStore() *controlledStore {
	return &controlledStore{OrderStore: memory.NewOrderStore()}
}

func (s *controlledStore) failHeader(err error) {
	s.mu.Lock()
	s.headerErr = err
	s.mu.Unlock()
}

func (s *controlledStore) failItems(err error) {
	s.mu.Lock()
	s.itemsErr = err
	s.mu.Unlock()
}

func (s *controlledStore) InsertHeader(ctx context.Context, header domain.OrderHeader) (domain.HeaderReceipt, error) {
	s.mu.Lock()
	err, block, entered := s.headerErr, s.block, s.entered
	s.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return domain.HeaderReceipt{}, err
	}
	receipt, err := s.OrderStore.InsertHeader(ctx, header)
	if err == nil {
		s.mu.Lock()
		hook := s.afterHeader
		s.mu.Unlock()
		if hook != nil {
			hook()
		}
	}
	return receipt, err
}

func (s *controlledStore) InsertLineItems(ctx context.Context, items []domain.OrderLineItem) error {
	s.mu.Lock()
	err := s.itemsErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	// как драйвер БД: отменённый контекст обрывает запрос
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.OrderStore.InsertLineItems(ctx, items)
}

// flakyAuth: провайдер, у которого удалённый выход может завершиться ошибкой.
type flakyAuth struct {
	*memory.Directory

	mu         sync.Mutex
	signOutErr error
}

func (a *flakyAuth) failSignOut(err error) {
	a.mu.Lock()
	a.signOutErr = err
	a.mu.Unlock()
}

func (a *flakyAuth) Connect() domain.AuthProvider {
	return &flakySession{AuthProvider: a.Directory.Connect(), auth: a}
}

type flakySession struct {
	domain.AuthProvider
	auth *flakyAuth
}

func (s *flakySession) SignOut(ctx context.Context) error {
	s.auth.mu.Lock()
	err := s.auth.signOutErr
	s.auth.mu.Unlock()
	if err != nil {
		return err
	}
	return s.AuthProvider.SignOut(ctx)
}

type fixture struct {
	deps    Deps
	auth    *flakyAuth
	store   *controlledStore
	catalog *memory.CatalogRepository
	alice   domain.Identity
}

func outOfStockProduct() domain.Product {
	return domain.Product{
		ID:       "verde-e1",
		Name:     "Verde Gummies",
		Category: domain.CategoryEdibles,
		Brand:    domain.BrandVerde,
		Price:    1850,
		ImageURL: "https://example.com/gummies.jpg",
		InStock:  false,
	}
}

func newFixture(t testing.TB) *fixture {
	t.Helper()

	dir := memory.NewDirectory(memory.WithBcryptCost(bcrypt.MinCost), memory.WithDirectoryLogger(testLogger()))
	alice, err := dir.AddUser(aliceEmail, alicePassword, domain.Profile{BrandName: "Alice Co"})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}

	codes, err := session.ParseAccessCodes("420:Verde,1111:Long Money Exotics:admin", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("parse access codes: %v", err)
	}

	store := newControlledStore()
	catalogRepo := memory.NewCatalogRepository(append(memory.SeedProducts(), outOfStockProduct()))
	auth := &flakyAuth{Directory: dir}

	return &fixture{
		deps: Deps{
			Auth:        auth,
			Catalog:     catalogRepo,
			Assembler:   checkout.NewAssembler(store, checkout.WithLogger(testLogger())),
			AccessCodes: codes,
			Logger:      testLogger(),
		},
		auth:    auth,
		store:   store,
		catalog: catalogRepo,
		alice:   alice,
	}
}

func (f *fixture) open(t testing.TB) *Session {
	t.Helper()
	s := Open(context.Background(), "test-session", f.deps)
	t.Cleanup(s.Close)
	return s
}

func (f *fixture) signedIn(t testing.TB) *Session {
	t.Helper()
	s := f.open(t)
	if _, err := s.SignIn(context.Background(), domain.Credentials{Email: aliceEmail, Password: alicePassword}); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return s
}
