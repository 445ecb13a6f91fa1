package session

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MaxAccessCodeLength — длина клавиатурного кода доступа.
const MaxAccessCodeLength = 4

// Grant — что даёт принятый код доступа.
type Grant struct {
	Brand domain.Brand
	Admin bool
}

type acceptCode struct {
	hash  []byte
	grant Grant
}

// AccessCodes хранит принимаемые коды в виде bcrypt-хэшей.
type AccessCodes struct {
	codes []acceptCode
}

// ParseAccessCodes разбирает список вида "420:Verde:admin,1111:Long Money Exotics".
// Код задаётся цифрами или готовым bcrypt-хэшем ($2a$...).
func ParseAccessCodes(raw string, cost int) (*AccessCodes, error) {
	ac := &AccessCodes{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("access code %q: expected code:brand[:admin]", entry)
		}

		brand, ok := domain.ParseBrand(parts[1])
		if !ok {
			return nil, fmt.Errorf("access code %q: %w", entry, domain.ErrProductBrandInvalid)
		}
		grant := Grant{Brand: brand}
		if len(parts) == 3 {
			if strings.TrimSpace(parts[2]) != "admin" {
				return nil, fmt.Errorf("access code %q: unknown flag %q", entry, parts[2])
			}
			grant.Admin = true
		}

		if err := ac.add(strings.TrimSpace(parts[0]), grant, cost); err != nil {
			return nil, fmt.Errorf("access code %q: %w", entry, err)
		}
	}
	return ac, nil
}

func (a *AccessCodes) add(code string, grant Grant, cost int) error {
	if strings.HasPrefix(code, "$2") {
		if _, err := bcrypt.Cost([]byte(code)); err != nil {
			return fmt.Errorf("invalid bcrypt hash: %w", err)
		}
		a.codes = append(a.codes, acceptCode{hash: []byte(code), grant: grant})
		return nil
	}
	if err := ValidateAccessCode(code); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return fmt.Errorf("hash access code: %w", err)
	}
	a.codes = append(a.codes, acceptCode{hash: hash, grant: grant})
	return nil
}

// Len возвращает число настроенных кодов.
func (a *AccessCodes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.codes)
}

// ValidateAccessCode проверяет формат: от 1 до 4 цифр.
func ValidateAccessCode(code string) error {
	if code == "" || len(code) > MaxAccessCodeLength {
		return domain.ErrAccessCodeFormat
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return domain.ErrAccessCodeFormat
		}
	}
	return nil
}

// Check сравнивает код со всеми принимаемыми.
func (a *AccessCodes) Check(code string) (Grant, error) {
	if err := ValidateAccessCode(code); err != nil {
		return Grant{}, err
	}
	if a == nil {
		return Grant{}, domain.ErrAccessDenied
	}
	for _, c := range a.codes {
		err := bcrypt.CompareHashAndPassword(c.hash, []byte(code))
		if err == nil {
			return c.grant, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Grant{}, fmt.Errorf("compare access code: %w", err)
		}
	}
	return Grant{}, domain.ErrAccessDenied
}
