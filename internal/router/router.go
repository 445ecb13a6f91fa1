// Package router — конечный автомат выбора активного экрана витрины.
package router

import (
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// Gate проверяет доступ к экранам.
type Gate interface {
	Present() bool
	Allows(view domain.ViewState) bool
}

// ProductLookup разрешает id товара при отрисовке карточки.
type ProductLookup interface {
	Lookup(id string) (domain.Product, bool)
}

type redirectRecorder interface {
	RecordRedirect(view domain.ViewState)
}

// Screen — то, что нужно отрисовать для текущего состояния.
type Screen struct {
	View    domain.ViewState
	Product *domain.Product
	Order   *domain.Order
	// Loading выставляется, если экран подтверждения открыт без заказа.
	Loading bool
}

// Router хранит текущий экран и заказ для экрана подтверждения.
// Вызовы должны быть последовательными, как и события пользователя.
type Router struct {
	gate    Gate
	catalog ProductLookup
	view    domain.ViewState
	order   *domain.Order
}

// New создаёт роутер. До Start текущий экран login.
func New(gate Gate, catalog ProductLookup) *Router {
	return &Router{gate: gate, catalog: catalog, view: domain.LoginView()}
}

// Start выбирает начальный экран по наличию сессии.
func (r *Router) Start() domain.ViewState {
	r.order = nil
	if r.gate.Present() {
		r.view = domain.BrowsingView()
	} else {
		r.view = domain.LoginView()
	}
	return r.view
}

// View возвращает текущий экран.
func (r *Router) View() domain.ViewState {
	return r.view
}

// Order возвращает заказ, удерживаемый для подтверждения.
func (r *Router) Order() *domain.Order {
	return r.order
}

// NavigateTo переходит на экран. Недоступный экран молча заменяется на login.
func (r *Router) NavigateTo(target domain.ViewState) domain.ViewState {
	if !r.gate.Allows(target) {
		if rec, ok := r.gate.(redirectRecorder); ok {
			rec.RecordRedirect(target)
		}
		r.view = domain.LoginView()
		return r.view
	}
	r.view = target
	return r.view
}

// SelectProduct открывает карточку товара.
func (r *Router) SelectProduct(productID string) (domain.ViewState, error) {
	view, err := domain.ProductDetailView(productID)
	if err != nil {
		return r.view, err
	}
	return r.NavigateTo(view), nil
}

// ShowConfirmation запоминает заказ и открывает экран подтверждения.
func (r *Router) ShowConfirmation(order domain.Order) domain.ViewState {
	r.order = &order
	return r.NavigateTo(domain.ConfirmationView())
}

// StartNewOrder забывает заказ и возвращает к каталогу.
func (r *Router) StartNewOrder() domain.ViewState {
	r.order = nil
	return r.NavigateTo(domain.BrowsingView())
}

// OnSessionChanged реагирует на переход Session Gate. Любое событие
// «сессия есть», включая обновление токена, открывает каталог.
func (r *Router) OnSessionChanged(t session.Transition) domain.ViewState {
	switch t {
	case session.TransitionSignedOut:
		r.order = nil
		r.view = domain.LoginView()
	case session.TransitionSignedIn, session.TransitionRefreshed:
		r.order = nil
		r.view = domain.BrowsingView()
	}
	return r.view
}

// Render разрешает текущий экран. Удалённый товар возвращает к каталогу,
// подтверждение без заказа показывается как загрузка.
func (r *Router) Render() Screen {
	if !r.gate.Allows(r.view) {
		r.view = domain.LoginView()
	}

	screen := Screen{View: r.view}
	switch r.view.Kind() {
	case domain.ViewProductDetail:
		id, _ := r.view.ProductID()
		product, ok := r.catalog.Lookup(id)
		if !ok {
			r.view = domain.BrowsingView()
			return Screen{View: r.view}
		}
		screen.Product = &product
	case domain.ViewConfirmation:
		if r.order == nil {
			screen.Loading = true
			break
		}
		order := *r.order
		screen.Order = &order
	}
	return screen
}
