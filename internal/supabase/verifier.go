package supabase

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const tokenLeeway = 30 * time.Second

// ErrTokenInvalid: access-токен не прошёл локальную проверку.
var ErrTokenInvalid = errors.New("supabase access token is invalid")

// Claims содержит полезную нагрузку access-токена GoTrue.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Identity собирает пользователя из claims.
func (c *Claims) Identity() domain.Identity {
	brand, _ := c.UserMetadata["brand_name"].(string)
	return domain.Identity{
		ID:    c.Subject,
		Email: c.Email,
		Name:  domain.DisplayName(c.Email, brand),
	}
}

// TokenVerifier проверяет HS256-подпись токенов секретом проекта.
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewTokenVerifier возвращает nil, если секрет не задан: проверка отключена.
func NewTokenVerifier(secret string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret), now: time.Now}
}

// Verify разбирает токен и проверяет подпись, exp и наличие sub.
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
