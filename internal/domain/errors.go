package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication — неверные учётные данные или неподтверждённый аккаунт.
	ErrAuthentication = errors.New("authentication failed")
	// ErrSignOut — сбой удалённого выхода; локально сессия всё равно закрывается.
	ErrSignOut = errors.New("sign out failed")
	// ErrOrderCreation — не удалось записать шапку заказа, можно повторить.
	ErrOrderCreation = errors.New("order creation failed")
	// ErrOrderItems — шапка записана, позиции нет; заказ остался неполным.
	ErrOrderItems = errors.New("order items insert failed")
	// ErrLoginRequired возвращается, если операция требует авторизации.
	ErrLoginRequired = errors.New("login required")
	// ErrCartEmpty — попытка оформить пустую корзину.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrQuantityInvalid — количество вне диапазона 1..MaxLineQuantity.
	ErrQuantityInvalid = errors.New("quantity must be between 1 and 999")
	// ErrOutOfStock — товара нет в наличии, добавить в корзину нельзя.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrProductNotFound — товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists — товар с таким id уже есть.
	ErrProductExists = errors.New("product already exists")
	// ErrProductIDRequired — пустой идентификатор товара.
	ErrProductIDRequired = errors.New("product id is required")
	// ErrProductNameRequired — у товара нет названия.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrProductCategoryInvalid — категория вне перечня.
	ErrProductCategoryInvalid = errors.New("product category is invalid")
	// ErrProductBrandInvalid — неизвестный бренд.
	ErrProductBrandInvalid = errors.New("product brand is invalid")
	// ErrProductPriceNegative — отрицательная цена.
	ErrProductPriceNegative = errors.New("product price must be non-negative")
	// ErrProductImageRequired — нет ссылки на изображение.
	ErrProductImageRequired = errors.New("product image is required")
	// ErrCatalogReadOnly — источник каталога не поддерживает запись.
	ErrCatalogReadOnly = errors.New("catalog is read-only")
	// ErrAccessDenied — код доступа не подошёл или нет прав администратора.
	ErrAccessDenied = errors.New("access denied")
	// ErrAccessCodeFormat — код доступа должен состоять из 1-4 цифр.
	ErrAccessCodeFormat = errors.New("access code must be 1 to 4 digits")
	// ErrOperationInFlight — повторная отправка, пока предыдущая операция не завершилась.
	ErrOperationInFlight = errors.New("operation already in flight")
	// ErrOrderNotFound — заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderIDRequired — пустой идентификатор заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// ErrItemsRequired — в заказе нет позиций.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// ErrItemQtyInvalid — количество в позиции <= 0.
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// ErrItemPriceInvalid — отрицательная цена позиции.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// ErrAmountMismatch — сумма заказа не совпадает с суммой позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// ErrSessionNotFound — неизвестный или истёкший токен сессии витрины.
	ErrSessionNotFound = errors.New("session not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// AuthenticationError оборачивает отказ провайдера аутентификации.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// SignOutError — удалённый выход завершился ошибкой.
type SignOutError struct {
	Err error
}

func (e *SignOutError) Error() string { return fmt.Sprintf("sign out failed: %v", e.Err) }

func (e *SignOutError) Unwrap() error { return e.Err }

func (e *SignOutError) Is(target error) bool { return target == ErrSignOut }

// OrderCreationError — сбой первой фазы (шапка заказа). Побочных эффектов нет.
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("order creation failed: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

func (e *OrderCreationError) Is(target error) bool { return target == ErrOrderCreation }

// OrderItemsError — сбой второй фазы. Шапка OrderID уже записана;
// Compensated показывает, удалось ли её удалить компенсацией.
type OrderItemsError struct {
	OrderID     string
	Compensated bool
	Err         error
}

func (e *OrderItemsError) Error() string {
	state := "header left incomplete"
	if e.Compensated {
		state = "header deleted"
	}
	return fmt.Sprintf("order %s items insert failed (%s): %v", e.OrderID, state, e.Err)
}

func (e *OrderItemsError) Unwrap() error { return e.Err }

func (e *OrderItemsError) Is(target error) bool { return target == ErrOrderItems }

// IsRetryable сообщает, можно ли безопасно повторить оформление заказа.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOrderCreation)
}
