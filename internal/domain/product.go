package domain

import "strings"

// Category — товарная категория каталога.
type Category string

const (
	CategoryFlower      Category = "Flower"
	CategoryPrePackaged Category = "Pre-Packaged Flower"
	CategoryEdibles     Category = "Edibles"
	CategoryConcentrate Category = "Concentrate"
	CategoryDisposables Category = "Disposables"
	CategoryMerch       Category = "Merch"
)

// Categories возвращает категории в порядке отображения на витрине.
func Categories() []Category {
	return []Category{
		CategoryFlower,
		CategoryPrePackaged,
		CategoryEdibles,
		CategoryConcentrate,
		CategoryDisposables,
		CategoryMerch,
	}
}

// Valid проверяет, что категория входит в перечень.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Brand — бренд товара. Пустое значение допустимо: бренд опционален.
type Brand string

const (
	BrandVerde            Brand = "Verde"
	BrandLongMoneyExotics Brand = "Long Money Exotics"
)

// Brands возвращает все известные бренды.
func Brands() []Brand {
	return []Brand{BrandVerde, BrandLongMoneyExotics}
}

// Valid проверяет бренд; пустой бренд считается корректным.
func (b Brand) Valid() bool {
	if b == "" {
		return true
	}
	for _, known := range Brands() {
		if b == known {
			return true
		}
	}
	return false
}

// ParseBrand сопоставляет строку с брендом без учёта регистра и пробелов,
// так что "LongMoneyExotics" и "long money exotics" дают один бренд.
func ParseBrand(s string) (Brand, bool) {
	norm := func(v string) string {
		return strings.ToLower(strings.ReplaceAll(v, " ", ""))
	}
	if strings.TrimSpace(s) == "" {
		return "", true
	}
	for _, known := range Brands() {
		if norm(string(known)) == norm(s) {
			return known, true
		}
	}
	return "", false
}

// Product — товар каталога. Для корзины неизменяем.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Brand       Brand    `json:"brand,omitempty"`
	Price       Money    `json:"price"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	// InStock носит справочный характер и не резервируется при заказе.
	InStock bool `json:"in_stock"`
}

// Validate проверяет поля товара перед сохранением через админку.
func (p *Product) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if !p.Category.Valid() {
		errs = append(errs, ErrProductCategoryInvalid)
	}
	if !p.Brand.Valid() {
		errs = append(errs, ErrProductBrandInvalid)
	}
	if p.Price < 0 {
		errs = append(errs, ErrProductPriceNegative)
	}
	if strings.TrimSpace(p.ImageURL) == "" {
		errs = append(errs, ErrProductImageRequired)
	}

	return errs
}
