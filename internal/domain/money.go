package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// moneyScale — количество знаков после запятой во всех ценах витрины.
const moneyScale = 2

// Money хранит сумму в минимальных денежных единицах (центах).
// Арифметика целочисленная, поэтому subtotal считается без погрешностей.
type Money int64

// ErrMoneyOutOfRange — сумма не помещается в int64 центов.
var ErrMoneyOutOfRange = errors.New("money amount out of range")

var (
	minCents = decimal.NewFromInt(math.MinInt64)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// NewMoneyFromDecimal округляет десятичное значение до центов.
// Значение вне диапазона int64 обрезается; для внешнего ввода
// используйте ParseMoney или UnmarshalJSON, они такое отклоняют.
func NewMoneyFromDecimal(d decimal.Decimal) Money {
	cents := d.Round(moneyScale).Shift(moneyScale)
	switch {
	case cents.GreaterThan(maxCents):
		return Money(math.MaxInt64)
	case cents.LessThan(minCents):
		return Money(math.MinInt64)
	}
	return Money(cents.IntPart())
}

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(moneyScale).Shift(moneyScale)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, ErrMoneyOutOfRange
	}
	return Money(cents.IntPart()), nil
}

// ParseMoney разбирает строку вида "39.99".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	m, err := moneyFromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	return m, nil
}

// Decimal возвращает сумму как decimal с двумя знаками.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -moneyScale)
}

// Times умножает цену на количество. При переполнении результат
// упирается в границу int64 и не меняет знак.
func (m Money) Times(qty int) Money {
	if m == 0 || qty == 0 {
		return 0
	}
	q := Money(qty)
	p := m * q
	if p/q != m || (q == -1 && m == math.MinInt64) {
		if (m < 0) != (q < 0) {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return p
}

// Add складывает суммы с насыщением на границах int64.
func (m Money) Add(o Money) Money {
	sum := m + o
	switch {
	case o > 0 && sum < m:
		return math.MaxInt64
	case o < 0 && sum > m:
		return math.MinInt64
	}
	return sum
}

// String форматирует сумму с фиксированной точностью: 79.98.
func (m Money) String() string {
	return m.Decimal().StringFixed(moneyScale)
}

// MarshalJSON отдаёт сумму числом, как её хранит PostgREST для numeric.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON принимает и число, и строку.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode money: %w", err)
	}
	v, err := moneyFromDecimal(d)
	if err != nil {
		return fmt.Errorf("decode money: %w", err)
	}
	*m = v
	return nil
}
