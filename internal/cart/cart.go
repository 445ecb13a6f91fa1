// Package cart содержит корзину активной сессии витрины.
package cart

import "github.com/vladislavdragonenkov/storefront/internal/domain"

// Cart — упорядоченный набор позиций, не больше одной на товар.
// Новые товары добавляются в конец, существующие меняются на месте.
// Не потокобезопасна: сессия вызывает её последовательно.
type Cart struct {
	lines []domain.CartLine
}

// New создаёт пустую корзину.
func New() *Cart {
	return &Cart{}
}

// AddItem увеличивает количество товара или добавляет новую позицию.
// Количество меньше единицы поднимается до единицы, итог по позиции
// не превышает domain.MaxLineQuantity.
func (c *Cart) AddItem(product domain.Product, quantity int) {
	quantity = clampQuantity(quantity)
	if i := c.index(product.ID); i >= 0 {
		// сравнение до сложения, чтобы не переполнить int
		if quantity > domain.MaxLineQuantity-c.lines[i].Quantity {
			c.lines[i].Quantity = domain.MaxLineQuantity
			return
		}
		c.lines[i].Quantity += quantity
		return
	}
	c.lines = append(c.lines, domain.CartLine{Product: product, Quantity: quantity})
}

// SetQuantity заменяет количество; значение <= 0 удаляет позицию,
// значение выше domain.MaxLineQuantity обрезается.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	if i := c.index(productID); i >= 0 {
		c.lines[i].Quantity = clampQuantity(quantity)
	}
}

func clampQuantity(q int) int {
	switch {
	case q < 1:
		return 1
	case q > domain.MaxLineQuantity:
		return domain.MaxLineQuantity
	}
	return q
}

// RemoveItem удаляет позицию; отсутствующий товар игнорируется.
func (c *Cart) RemoveItem(productID string) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// Clear очищает корзину после оформления заказа.
func (c *Cart) Clear() {
	c.lines = nil
}

// Subtotal — сумма price × quantity по всем позициям, без налогов и сборов.
func (c *Cart) Subtotal() domain.Money {
	var total domain.Money
	for _, line := range c.lines {
		total = total.Add(line.Total())
	}
	return total
}

// ItemCount возвращает сумму количеств (для бейджа), а не число позиций.
func (c *Cart) ItemCount() int {
	n := 0
	for _, line := range c.lines {
		n += line.Quantity
	}
	return n
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines возвращает копию позиций; снимок не меняется вместе с корзиной.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Quantity возвращает количество товара в корзине (0, если его нет).
func (c *Cart) Quantity(productID string) int {
	if i := c.index(productID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}
