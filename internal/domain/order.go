package domain

import "time"

// MaxLineQuantity — верхняя граница количества в одной позиции корзины.
const MaxLineQuantity = 999

// CartLine — позиция корзины: товар и количество (1..MaxLineQuantity).
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Total возвращает price × quantity.
func (l CartLine) Total() Money {
	return l.Product.Price.Times(l.Quantity)
}

// OrderHeader — запись первой фазы оформления.
type OrderHeader struct {
	UserID string
	Total  Money
}

// HeaderReceipt — то, что хранилище вернуло на вставку шапки.
type HeaderReceipt struct {
	ID        string
	CreatedAt time.Time
}

// OrderLineItem — запись второй фазы; цена фиксируется на момент заказа.
type OrderLineItem struct {
	OrderID   string
	ProductID string
	Quantity  int
	Price     Money
}

// Order — оформленный заказ. После создания не меняется.
type Order struct {
	ID       string     `json:"id"`
	Identity Identity   `json:"identity"`
	Lines    []CartLine `json:"lines"`
	Total    Money      `json:"total"`
	PlacedAt time.Time  `json:"placed_at"`
}

// ValidateInvariants проверяет согласованность заказа.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	var sum Money
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if line.Product.Price < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		sum = sum.Add(line.Total())
	}
	if sum != o.Total {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// ItemCount — сумма количеств по всем позициям.
func (o *Order) ItemCount() int {
	n := 0
	for _, line := range o.Lines {
		n += line.Quantity
	}
	return n
}

// LineItems раскладывает снимок корзины в записи второй фазы.
func LineItems(orderID string, lines []CartLine) []OrderLineItem {
	items := make([]OrderLineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, OrderLineItem{
			OrderID:   orderID,
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			Price:     line.Product.Price,
		})
	}
	return items
}
