// Package session отслеживает аутентифицированного пользователя сессии
// и решает, какие экраны ему доступны.
package session

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Transition описывает, что изменило событие провайдера.
type Transition int

const (
	// состояние не изменилось
	TransitionNone Transition = iota
	// принят новый пользователь
	TransitionSignedIn
	// тот же пользователь, обновился токен или профиль
	TransitionRefreshed
	// сессии больше нет
	TransitionSignedOut
)

func (t Transition) String() string {
	switch t {
	case TransitionSignedIn:
		return "signed_in"
	case TransitionRefreshed:
		return "refreshed"
	case TransitionSignedOut:
		return "signed_out"
	default:
		return "none"
	}
}

// tokenSource реализуют провайдеры, у которых есть токен пользователя.
type tokenSource interface {
	AccessToken() string
}

// Gate — контекст аутентификации одной сессии витрины.
type Gate struct {
	auth    domain.AuthProvider
	codes   *AccessCodes
	logger  *log.Entry
	metrics *metrics.SessionMetrics

	mu          sync.RWMutex
	identity    *domain.Identity
	privileged  bool
	brand       domain.Brand
	events      <-chan domain.SessionEvent
	unsubscribe func()
}

// Option настраивает Gate.
type Option func(*Gate)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics задаёт метрики сессий.
func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithAccessCodes задаёт принимаемые коды доступа.
func WithAccessCodes(codes *AccessCodes) Option {
	return func(g *Gate) { g.codes = codes }
}

// NewGate создаёт Gate поверх сессии провайдера аутентификации.
func NewGate(auth domain.AuthProvider, opts ...Option) *Gate {
	g := &Gate{
		auth:   auth,
		logger: log.New().WithField("component", "session-gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Init проверяет сессию при старте и подписывается на её изменения.
// Ошибка провайдера не мешает старту: сессия считается отсутствующей.
func (g *Gate) Init(ctx context.Context) *domain.Identity {
	identity, err := g.auth.CurrentSession(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("current session lookup failed, starting signed out")
		identity = nil
	}

	events, unsubscribe := g.auth.Subscribe()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.identity = cloneIdentity(identity)
	g.privileged = false
	g.brand = ""
	g.events = events
	g.unsubscribe = unsubscribe

	return cloneIdentity(g.identity)
}

// Events возвращает канал уведомлений провайдера, полученный в Init.
func (g *Gate) Events() <-chan domain.SessionEvent {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.events
}

// Teardown отписывается от провайдера и сбрасывает состояние.
// Повторный вызов безопасен.
func (g *Gate) Teardown() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.events = nil
	g.identity = nil
	g.privileged = false
	g.brand = ""
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Identity возвращает копию текущего пользователя или nil.
func (g *Gate) Identity() *domain.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneIdentity(g.identity)
}

// Present сообщает, есть ли активная сессия.
func (g *Gate) Present() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.identity != nil
}

// Privileged сообщает, подтверждены ли права администратора.
func (g *Gate) Privileged() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.identity != nil && g.privileged
}

// BrandScope — бренд, выбранный кодом доступа; пусто, если кода не было.
func (g *Gate) BrandScope() domain.Brand {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.brand
}

// AuthorizedContext добавляет в контекст токен пользователя, если провайдер его выдаёт.
func (g *Gate) AuthorizedContext(ctx context.Context) context.Context {
	if ts, ok := g.auth.(tokenSource); ok {
		return domain.WithAccessToken(ctx, ts.AccessToken())
	}
	return ctx
}

// SignIn выполняет вход. При ошибке состояние не меняется.
func (g *Gate) SignIn(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	identity, err := g.auth.SignIn(ctx, creds)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordSignIn(false)
		}
		g.logger.WithError(err).WithField("email", creds.Email).Info("sign in rejected")
		if !errors.Is(err, domain.ErrAuthentication) {
			err = &domain.AuthenticationError{Reason: "provider error", Err: err}
		}
		return domain.Identity{}, err
	}
	if g.metrics != nil {
		g.metrics.RecordSignIn(true)
	}

	g.mu.Lock()
	g.identity = cloneIdentity(&identity)
	g.privileged = false
	g.brand = ""
	g.mu.Unlock()

	g.logger.WithField("user_id", identity.ID).Info("signed in")
	return identity, nil
}

// SignUp регистрирует пользователя. Вход не выполняется: аккаунт ждёт подтверждения email.
func (g *Gate) SignUp(ctx context.Context, creds domain.Credentials, profile domain.Profile) error {
	if err := g.auth.SignUp(ctx, creds, profile); err != nil {
		g.logger.WithError(err).WithField("email", creds.Email).Info("sign up rejected")
		if !errors.Is(err, domain.ErrAuthentication) {
			err = &domain.AuthenticationError{Reason: "provider error", Err: err}
		}
		return err
	}
	return nil
}

// SignOut выходит у провайдера и безусловно сбрасывает локальное состояние.
// Ошибка провайдера логируется и возвращается как SignOutError, но сессия
// всё равно считается закрытой.
func (g *Gate) SignOut(ctx context.Context) error {
	remoteErr := g.auth.SignOut(ctx)

	g.mu.Lock()
	g.identity = nil
	g.privileged = false
	g.brand = ""
	g.mu.Unlock()

	if remoteErr != nil {
		if g.metrics != nil {
			g.metrics.RecordSignOutError()
		}
		g.logger.WithError(remoteErr).Warn("remote sign out failed, signed out locally")
		return &domain.SignOutError{Err: remoteErr}
	}
	return nil
}

// ObserveRemoteSessionChange применяет уведомление провайдера.
// Провайдер считается источником истины и исправляет локальные оптимистичные переходы.
func (g *Gate) ObserveRemoteSessionChange(event domain.SessionEvent) Transition {
	if g.metrics != nil {
		g.metrics.RecordRemoteEvent(event.Present())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !event.Present() {
		if g.identity == nil {
			return TransitionNone
		}
		g.identity = nil
		g.privileged = false
		g.brand = ""
		return TransitionSignedOut
	}

	if g.identity != nil && g.identity.ID == event.Identity.ID {
		g.identity = cloneIdentity(event.Identity)
		return TransitionRefreshed
	}

	g.identity = cloneIdentity(event.Identity)
	g.privileged = false
	g.brand = ""
	return TransitionSignedIn
}

// ChallengeAccessCode проверяет код доступа текущего пользователя.
// Неверный код оставляет состояние без изменений.
func (g *Gate) ChallengeAccessCode(code string) (Grant, error) {
	if !g.Present() {
		return Grant{}, domain.ErrLoginRequired
	}

	grant, err := g.codes.Check(code)
	if g.metrics != nil {
		g.metrics.RecordAccessCode(err == nil)
	}
	if err != nil {
		return Grant{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return Grant{}, domain.ErrLoginRequired
	}
	g.brand = grant.Brand
	if grant.Admin {
		g.privileged = true
	}
	return grant, nil
}

// Allows решает, можно ли показать экран без перенаправления на login.
func (g *Gate) Allows(view domain.ViewState) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if view.RequiresIdentity() && g.identity == nil {
		return false
	}
	if view.RequiresPrivilege() && !g.privileged {
		return false
	}
	return true
}

// RecordRedirect учитывает перенаправление на login в метриках.
func (g *Gate) RecordRedirect(view domain.ViewState) {
	if g.metrics != nil {
		g.metrics.RecordGateRedirect(string(view.Kind()))
	}
}

func cloneIdentity(identity *domain.Identity) *domain.Identity {
	if identity == nil {
		return nil
	}
	c := *identity
	return &c
}
