package domain

import (
	"context"
	"strings"
)

// Identity — аутентифицированный пользователь. Для ядра только для чтения.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Profile — поля, которые пользователь заполняет при регистрации.
type Profile struct {
	BrandName    string `json:"brand_name"`
	InstagramURL string `json:"instagram_url"`
	PhoneNumber  string `json:"phone_number"`
}

// Credentials — email и пароль для входа.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DisplayName выбирает имя для шапки: название бренда либо локальная часть email.
func DisplayName(email, brandName string) string {
	if name := strings.TrimSpace(brandName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

// SessionEvent — уведомление провайдера аутентификации об изменении сессии.
// Identity == nil означает, что сессии больше нет.
type SessionEvent struct {
	Identity *Identity
}

// Present сообщает, есть ли в событии активная сессия.
func (e SessionEvent) Present() bool {
	return e.Identity != nil
}

type accessTokenKey struct{}

// WithAccessToken кладёт в контекст токен пользователя для хранилищ,
// которые проверяют права на стороне сервера.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFrom достаёт токен пользователя из контекста.
func AccessTokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey{}).(string)
	return token, ok && token != ""
}
