package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	eventBuffer    = 8
	refreshSkew    = time.Minute
	refreshTimeout = 5 * time.Second
)

// Auth — GoTrue-провайдер. Каждый Connect открывает независимую сессию.
type Auth struct {
	client   *Client
	verifier *TokenVerifier
	logger   *log.Entry
	now      func() time.Time
}

// NewAuth создаёт провайдер поверх клиента; verifier может быть nil.
func NewAuth(client *Client, verifier *TokenVerifier) *Auth {
	return &Auth{
		client:   client,
		verifier: verifier,
		logger:   client.logger.WithField("component", "supabase-auth"),
		now:      time.Now,
	}
}

// Connect открывает новую сессию без пользователя.
func (a *Auth) Connect() domain.AuthProvider {
	return &AuthSession{auth: a, subs: make(map[int]chan domain.SessionEvent)}
}

type userMetadata struct {
	BrandName    string `json:"brand_name,omitempty"`
	InstagramURL string `json:"instagram_url,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
}

type authUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
}

func (u authUser) identity() domain.Identity {
	return domain.Identity{
		ID:    u.ID,
		Email: u.Email,
		Name:  domain.DisplayName(u.Email, u.UserMetadata.BrandName),
	}
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         authUser `json:"user"`
}

type tokens struct {
	access    string
	refresh   string
	expiresAt time.Time
}

func (a *Auth) tokensFrom(resp tokenResponse) tokens {
	t := tokens{access: resp.AccessToken, refresh: resp.RefreshToken}
	switch {
	case resp.ExpiresAt > 0:
		t.expiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		t.expiresAt = a.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return t
}

func (a *Auth) grant(ctx context.Context, grantType string, body any) (tokenResponse, error) {
	var resp tokenResponse
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		url:    a.client.authPrefix + "/token?" + url.Values{"grant_type": {grantType}}.Encode(),
		body:   body,
	}, &resp)
	if err != nil {
		return tokenResponse{}, err
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return tokenResponse{}, fmt.Errorf("supabase %s grant: empty session in response", grantType)
	}
	return resp, nil
}

// asAuthError переводит отказ GoTrue (4xx) в ошибку аутентификации.
func asAuthError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return &domain.AuthenticationError{Reason: strings.ToLower(apiErr.Message), Err: err}
	}
	return err
}

// AuthSession — сессия одного пользователя у GoTrue.
type AuthSession struct {
	auth *Auth

	mu       sync.Mutex
	identity *domain.Identity
	tokens   tokens
	subs     map[int]chan domain.SessionEvent
	nextSub  int
}

// CurrentSession обновляет истекающий токен; при неудаче сессия считается завершённой.
func (s *AuthSession) CurrentSession(ctx context.Context) (*domain.Identity, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil, nil
	}
	identity := *s.identity
	return &identity, nil
}

func (s *AuthSession) SignIn(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	resp, err := s.auth.grant(ctx, "password", map[string]string{
		"email":    strings.TrimSpace(creds.Email),
		"password": creds.Password,
	})
	if err != nil {
		return domain.Identity{}, asAuthError(err)
	}

	identity := resp.User.identity()
	if v := s.auth.verifier; v != nil {
		claims, err := v.Verify(resp.AccessToken)
		if err != nil {
			return domain.Identity{}, &domain.AuthenticationError{Reason: "access token rejected", Err: err}
		}
		if claims.Subject != identity.ID {
			return domain.Identity{}, &domain.AuthenticationError{Reason: "access token subject mismatch"}
		}
	}

	s.mu.Lock()
	s.identity = &identity
	s.tokens = s.auth.tokensFrom(resp)
	s.broadcastLocked(domain.SessionEvent{Identity: &identity})
	s.mu.Unlock()
	return identity, nil
}

func (s *AuthSession) SignUp(ctx context.Context, creds domain.Credentials, profile domain.Profile) error {
	err := s.auth.client.do(ctx, request{
		method: http.MethodPost,
		url:    s.auth.client.authPrefix + "/signup",
		body: map[string]any{
			"email":    strings.TrimSpace(creds.Email),
			"password": creds.Password,
			"data": userMetadata{
				BrandName:    profile.BrandName,
				InstagramURL: profile.InstagramURL,
				PhoneNumber:  profile.PhoneNumber,
			},
		},
	}, nil)
	return asAuthError(err)
}

// SignOut всегда очищает локальную сессию; ошибка logout возвращается вызывающему.
func (s *AuthSession) SignOut(ctx context.Context) error {
	s.mu.Lock()
	access := s.tokens.access
	hadIdentity := s.identity != nil
	s.identity = nil
	s.tokens = tokens{}
	if hadIdentity {
		s.broadcastLocked(domain.SessionEvent{})
	}
	s.mu.Unlock()

	if access == "" {
		return nil
	}
	err := s.auth.client.do(ctx, request{
		method: http.MethodPost,
		url:    s.auth.client.authPrefix + "/logout",
		token:  access,
	}, nil)
	if err != nil {
		return fmt.Errorf("supabase logout: %w", err)
	}
	return nil
}

func (s *AuthSession) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, eventBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// AccessToken возвращает действующий токен пользователя, обновляя истекающий.
func (s *AuthSession) AccessToken() string {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	_ = s.ensureFresh(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.access
}

// ensureFresh обновляет токен за refreshSkew до истечения. Отказ GoTrue
// завершает сессию и рассылает событие; сетевая ошибка возвращается как есть.
func (s *AuthSession) ensureFresh(ctx context.Context) error {
	s.mu.Lock()
	current := s.tokens
	userID := ""
	if s.identity != nil {
		userID = s.identity.ID
	}
	s.mu.Unlock()

	if userID == "" || current.refresh == "" || current.expiresAt.IsZero() {
		return nil
	}
	if s.auth.now().Add(refreshSkew).Before(current.expiresAt) {
		return nil
	}

	resp, err := s.auth.grant(ctx, "refresh_token", map[string]string{"refresh_token": current.refresh})
	if err == nil && resp.User.ID != userID {
		err = &domain.AuthenticationError{Reason: "refreshed session belongs to another user"}
	}
	if err != nil {
		var authErr *domain.AuthenticationError
		if _, status, ok := apiErrorCode(err); (ok && status < 500) || errors.As(err, &authErr) {
			s.auth.logger.WithError(err).WithField("user_id", userID).Info("session expired")
			s.expire(current.refresh)
			return nil
		}
		s.auth.logger.WithError(err).Warn("token refresh failed")
		return fmt.Errorf("refresh session: %w", err)
	}

	identity := resp.User.identity()
	s.mu.Lock()
	defer s.mu.Unlock()
	// Сессию могли сменить, пока шёл запрос.
	if s.tokens.refresh != current.refresh {
		return nil
	}
	s.identity = &identity
	s.tokens = s.auth.tokensFrom(resp)
	s.broadcastLocked(domain.SessionEvent{Identity: &identity})
	return nil
}

func (s *AuthSession) expire(refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil || s.tokens.refresh != refresh {
		return
	}
	s.identity = nil
	s.tokens = tokens{}
	s.broadcastLocked(domain.SessionEvent{})
}

func (s *AuthSession) broadcastLocked(event domain.SessionEvent) {
	for _, ch := range s.subs {
		deliver(ch, event)
	}
}

// deliver не блокируется: при переполнении вытесняется самое старое событие.
func deliver(ch chan domain.SessionEvent, event domain.SessionEvent) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

var (
	_ domain.AuthProvider  = (*AuthSession)(nil)
	_ domain.AuthConnector = (*Auth)(nil)
)
