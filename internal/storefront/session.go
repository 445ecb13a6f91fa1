// Package storefront связывает корзину, Session Gate, каталог, роутер экранов
// и оформление заказа в одну пользовательскую сессию.
package storefront

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/router"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

const catalogLoadTimeout = 10 * time.Second

// Deps — зависимости, общие для всех сессий процесса.
type Deps struct {
	Auth           domain.AuthConnector
	Catalog        domain.CatalogSource
	Assembler      *checkout.Assembler
	AccessCodes    *session.AccessCodes
	SessionMetrics *metrics.SessionMetrics
	Logger         *log.Entry
}

// CartView — содержимое корзины для отображения.
type CartView struct {
	Lines     []domain.CartLine `json:"lines"`
	Subtotal  domain.Money      `json:"subtotal"`
	ItemCount int               `json:"item_count"`
}

// Session — одна пользовательская сессия. Операции над корзиной и экраном
// выполняются последовательно; PlaceOrder и SignIn не допускают повторного
// запуска, пока не завершится предыдущий вызов.
type Session struct {
	id        string
	logger    *log.Entry
	gate      *session.Gate
	catalog   *catalog.Store
	cart      *cart.Cart
	router    *router.Router
	assembler *checkout.Assembler

	mu        sync.Mutex
	placing   atomic.Bool
	signingIn atomic.Bool
	lastSeen  atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open открывает сессию у провайдера аутентификации, проверяет текущего
// пользователя и запускает обработку удалённых изменений сессии.
func Open(ctx context.Context, id string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "storefront")
	}
	logger = logger.WithField("session_id", shortID(id))

	gateOpts := []session.Option{
		session.WithLogger(logger.WithField("component", "session-gate")),
		session.WithAccessCodes(deps.AccessCodes),
	}
	if deps.SessionMetrics != nil {
		gateOpts = append(gateOpts, session.WithMetrics(deps.SessionMetrics))
	}
	gate := session.NewGate(deps.Auth.Connect(), gateOpts...)
	store := catalog.NewStore(deps.Catalog, logger.WithField("component", "catalog"))

	s := &Session{
		id:        id,
		logger:    logger,
		gate:      gate,
		catalog:   store,
		cart:      cart.New(),
		router:    router.New(gate, store),
		assembler: deps.Assembler,
		done:      make(chan struct{}),
	}
	s.touch()

	if identity := gate.Init(ctx); identity != nil {
		s.loadCatalog(ctx)
	}
	s.router.Start()

	if events := gate.Events(); events != nil {
		s.wg.Add(1)
		go s.watch(events)
	}
	return s
}

// ID возвращает токен сессии.
func (s *Session) ID() string {
	return s.id
}

// Close отписывается от провайдера и освобождает состояние. Повторный вызов безопасен.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.gate.Teardown()
		s.wg.Wait()

		s.mu.Lock()
		s.cart.Clear()
		s.catalog.Reset()
		s.mu.Unlock()
	})
}

// LastSeen возвращает время последнего обращения к сессии.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// Identity возвращает текущего пользователя или nil.
func (s *Session) Identity() *domain.Identity {
	return s.gate.Identity()
}

// Privileged сообщает, принят ли админский код доступа.
func (s *Session) Privileged() bool {
	return s.gate.Privileged()
}

// Screen отрисовывает текущий экран.
func (s *Session) Screen() router.Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.router.Render()
}

// SignIn выполняет вход и открывает каталог. Отмена ctx вызывающим
// на начатый вход не влияет, дедлайны задают сами хранилища.
func (s *Session) SignIn(ctx context.Context, creds domain.Credentials) (router.Screen, error) {
	ctx = context.WithoutCancel(ctx)
	if !s.signingIn.CompareAndSwap(false, true) {
		return router.Screen{}, domain.ErrOperationInFlight
	}
	defer s.signingIn.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if _, err := s.gate.SignIn(ctx, creds); err != nil {
		return s.router.Render(), err
	}
	s.applyTransition(ctx, session.TransitionSignedIn)
	return s.router.Render(), nil
}

// SignUp регистрирует пользователя. Вход не выполняется.
func (s *Session) SignUp(ctx context.Context, creds domain.Credentials, profile domain.Profile) error {
	s.touch()
	return s.gate.SignUp(context.WithoutCancel(ctx), creds, profile)
}

// SignOut выходит из сессии. Локальное состояние сбрасывается даже при
// ошибке провайдера, ошибка возвращается как *domain.SignOutError.
func (s *Session) SignOut(ctx context.Context) (router.Screen, error) {
	ctx = context.WithoutCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	err := s.gate.SignOut(ctx)
	s.applyTransition(ctx, session.TransitionSignedOut)
	return s.router.Render(), err
}

// ChallengeAccessCode проверяет код доступа. Код с правом админа открывает экран admin.
func (s *Session) ChallengeAccessCode(code string) (session.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.gate.ChallengeAccessCode(strings.TrimSpace(code))
}

// Navigate переходит на экран; недоступный экран заменяется на login.
func (s *Session) Navigate(view domain.ViewState) router.Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.router.NavigateTo(view)
	return s.router.Render()
}

// SelectProduct открывает карточку товара.
func (s *Session) SelectProduct(productID string) (router.Screen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if _, err := s.router.SelectProduct(productID); err != nil {
		return s.router.Render(), err
	}
	return s.router.Render(), nil
}

// StartNewOrder закрывает подтверждение и возвращает к каталогу.
func (s *Session) StartNewOrder() router.Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.router.StartNewOrder()
	return s.router.Render()
}

// Products возвращает товары каталога. Без бренда в фильтре применяется бренд
// из кода доступа.
func (s *Session) Products(f catalog.Filter) ([]domain.Product, error) {
	s.touch()
	if !s.gate.Present() {
		return nil, domain.ErrLoginRequired
	}
	if f.Brand == "" {
		f.Brand = s.gate.BrandScope()
	}
	return s.catalog.List(f), nil
}

// Cart возвращает содержимое корзины.
func (s *Session) Cart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.cartView()
}

// AddToCart добавляет товар из каталога. Товары не в наличии и количество
// вне 1..MaxLineQuantity (с учётом уже лежащего в корзине) отклоняются
// до обращения к корзине.
func (s *Session) AddToCart(productID string, quantity int) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if !s.gate.Present() {
		return s.cartView(), domain.ErrLoginRequired
	}
	if quantity < 1 || quantity > domain.MaxLineQuantity-s.cart.Quantity(productID) {
		return s.cartView(), domain.ErrQuantityInvalid
	}
	product, ok := s.catalog.Lookup(productID)
	if !ok {
		return s.cartView(), domain.ErrProductNotFound
	}
	if !product.InStock {
		return s.cartView(), domain.ErrOutOfStock
	}

	s.cart.AddItem(product, quantity)
	return s.cartView(), nil
}

// UpdateCartItem задаёт количество; 0 и меньше удаляют позицию,
// значение выше MaxLineQuantity отклоняется без изменения корзины.
func (s *Session) UpdateCartItem(productID string, quantity int) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if quantity > domain.MaxLineQuantity {
		return s.cartView(), domain.ErrQuantityInvalid
	}
	s.cart.SetQuantity(productID, quantity)
	return s.cartView(), nil
}

// RemoveCartItem удаляет позицию из корзины.
func (s *Session) RemoveCartItem(productID string) CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.cart.RemoveItem(productID)
	return s.cartView()
}

// PlaceOrder оформляет заказ из корзины. При успехе корзина очищается и
// открывается подтверждение; при ошибке корзина и экран остаются прежними,
// кроме отсутствия пользователя: тогда экран переключается на login.
// Обе фазы записи доводятся до конца даже после отмены ctx вызывающим.
func (s *Session) PlaceOrder(ctx context.Context) (router.Screen, error) {
	ctx = context.WithoutCancel(ctx)
	if !s.placing.CompareAndSwap(false, true) {
		return router.Screen{}, domain.ErrOperationInFlight
	}
	defer s.placing.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	identity := s.gate.Identity()
	order, err := s.assembler.PlaceOrder(s.gate.AuthorizedContext(ctx), s.cart, identity)
	if err != nil {
		if identity == nil {
			s.router.NavigateTo(domain.LoginView())
		}
		s.logger.WithError(err).WithField("lines", s.cart.ItemCount()).Warn("place order failed")
		return s.router.Render(), err
	}

	s.router.ShowConfirmation(order)
	return s.router.Render(), nil
}

// AddProduct создаёт товар. Требует админский код доступа.
func (s *Session) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := s.requirePrivilege(); err != nil {
		return domain.Product{}, err
	}
	return s.catalog.Add(s.gate.AuthorizedContext(ctx), p)
}

// UpdateProduct изменяет товар. Требует админский код доступа.
func (s *Session) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := s.requirePrivilege(); err != nil {
		return domain.Product{}, err
	}
	return s.catalog.Update(s.gate.AuthorizedContext(ctx), p)
}

// DeleteProduct удаляет товар. Требует админский код доступа.
func (s *Session) DeleteProduct(ctx context.Context, id string) error {
	if err := s.requirePrivilege(); err != nil {
		return err
	}
	return s.catalog.Delete(s.gate.AuthorizedContext(ctx), id)
}

func (s *Session) requirePrivilege() error {
	s.touch()
	if !s.gate.Present() {
		return domain.ErrLoginRequired
	}
	if !s.gate.Privileged() {
		return domain.ErrAccessDenied
	}
	return nil
}

// watch применяет уведомления провайдера до закрытия сессии.
func (s *Session) watch(events <-chan domain.SessionEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.observe(ev)
		}
	}
}

func (s *Session) observe(ev domain.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	t := s.gate.ObserveRemoteSessionChange(ev)
	if t == session.TransitionNone {
		return
	}
	s.logger.WithField("transition", t.String()).Info("remote session change")

	ctx, cancel := context.WithTimeout(context.Background(), catalogLoadTimeout)
	defer cancel()
	s.applyTransition(ctx, t)
}

// applyTransition приводит корзину, каталог и экран к новому состоянию сессии.
// Вызывается под s.mu.
func (s *Session) applyTransition(ctx context.Context, t session.Transition) {
	switch t {
	case session.TransitionSignedOut:
		s.cart.Clear()
		s.catalog.Reset()
	case session.TransitionSignedIn:
		s.cart.Clear()
		s.loadCatalog(ctx)
	case session.TransitionRefreshed:
		if !s.catalog.Loaded() {
			s.loadCatalog(ctx)
		}
	}
	s.router.OnSessionChanged(t)
}

// loadCatalog загружает товары под токеном пользователя. Ошибка не фатальна:
// каталог остаётся пустым до следующей загрузки.
func (s *Session) loadCatalog(ctx context.Context) {
	if err := s.catalog.Load(s.gate.AuthorizedContext(ctx)); err != nil {
		s.logger.WithError(err).Warn("catalog unavailable")
	}
}

func (s *Session) cartView() CartView {
	return CartView{
		Lines:     s.cart.Lines(),
		Subtotal:  s.cart.Subtotal(),
		ItemCount: s.cart.ItemCount(),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
