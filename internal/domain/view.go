package domain

import "fmt"

// ViewKind — экран витрины.
type ViewKind string

const (
	ViewLogin         ViewKind = "login"
	ViewBrowsing      ViewKind = "browsing"
	ViewCart          ViewKind = "cart"
	ViewProductDetail ViewKind = "product_detail"
	ViewConfirmation  ViewKind = "confirmation"
	ViewAdmin         ViewKind = "admin"
)

// ParseViewKind разбирает имя экрана из внешнего запроса.
func ParseViewKind(s string) (ViewKind, error) {
	switch k := ViewKind(s); k {
	case ViewLogin, ViewBrowsing, ViewCart, ViewProductDetail, ViewConfirmation, ViewAdmin:
		return k, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// ViewState — активный экран. Поля закрыты: productDetail без id
// построить нельзя, у остальных экранов id не бывает.
type ViewState struct {
	kind      ViewKind
	productID string
}

// LoginView — экран входа.
func LoginView() ViewState { return ViewState{kind: ViewLogin} }

// BrowsingView — каталог товаров.
func BrowsingView() ViewState { return ViewState{kind: ViewBrowsing} }

// CartView — содержимое корзины.
func CartView() ViewState { return ViewState{kind: ViewCart} }

// ConfirmationView — экран после успешного заказа.
func ConfirmationView() ViewState { return ViewState{kind: ViewConfirmation} }

// AdminView — управление каталогом.
func AdminView() ViewState { return ViewState{kind: ViewAdmin} }

// ProductDetailView строит экран карточки товара.
func ProductDetailView(productID string) (ViewState, error) {
	if productID == "" {
		return ViewState{}, ErrProductIDRequired
	}
	return ViewState{kind: ViewProductDetail, productID: productID}, nil
}

// NewView строит экран по тегу; productID нужен только карточке товара.
func NewView(kind ViewKind, productID string) (ViewState, error) {
	switch kind {
	case ViewLogin:
		return LoginView(), nil
	case ViewBrowsing:
		return BrowsingView(), nil
	case ViewCart:
		return CartView(), nil
	case ViewConfirmation:
		return ConfirmationView(), nil
	case ViewAdmin:
		return AdminView(), nil
	case ViewProductDetail:
		return ProductDetailView(productID)
	default:
		return ViewState{}, fmt.Errorf("unknown view %q", kind)
	}
}

// Kind возвращает тег экрана. Нулевое значение читается как login.
func (v ViewState) Kind() ViewKind {
	if v.kind == "" {
		return ViewLogin
	}
	return v.kind
}

// ProductID возвращает id товара для экрана карточки.
func (v ViewState) ProductID() (string, bool) {
	return v.productID, v.kind == ViewProductDetail
}

// RequiresIdentity — экран доступен только после входа.
func (v ViewState) RequiresIdentity() bool {
	switch v.Kind() {
	case ViewBrowsing, ViewCart, ViewProductDetail, ViewConfirmation, ViewAdmin:
		return true
	default:
		return false
	}
}

// RequiresPrivilege — экран доступен только администратору.
func (v ViewState) RequiresPrivilege() bool {
	return v.Kind() == ViewAdmin
}

func (v ViewState) String() string {
	if id, ok := v.ProductID(); ok {
		return fmt.Sprintf("%s(%s)", v.kind, id)
	}
	return string(v.Kind())
}
