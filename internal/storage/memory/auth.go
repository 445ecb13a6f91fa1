package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	minPasswordLength = 6
	eventBuffer       = 8
)

type user struct {
	id        string
	email     string
	hash      []byte
	profile   domain.Profile
	confirmed bool
}

func (u *user) identity() domain.Identity {
	return domain.Identity{
		ID:    u.id,
		Email: u.email,
		Name:  domain.DisplayName(u.email, u.profile.BrandName),
	}
}

// Directory — in-memory провайдер аутентификации: пользователи с bcrypt-паролями
// и открытые у него сессии.
type Directory struct {
	cost                int
	requireConfirmation bool
	logger              *log.Entry

	mu       sync.RWMutex
	users    map[string]*user
	sessions map[*AuthSession]struct{}
}

// DirectoryOption настраивает Directory.
type DirectoryOption func(*Directory)

// WithBcryptCost задаёт стоимость bcrypt (в тестах bcrypt.MinCost).
func WithBcryptCost(cost int) DirectoryOption {
	return func(d *Directory) { d.cost = cost }
}

// WithEmailConfirmation требует подтверждения email после регистрации.
func WithEmailConfirmation(required bool) DirectoryOption {
	return func(d *Directory) { d.requireConfirmation = required }
}

// WithDirectoryLogger задаёт логгер.
func WithDirectoryLogger(logger *log.Entry) DirectoryOption {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDirectory создаёт пустой каталог пользователей.
func NewDirectory(opts ...DirectoryOption) *Directory {
	d := &Directory{
		cost:     bcrypt.DefaultCost,
		logger:   log.New().WithField("component", "memory-auth"),
		users:    make(map[string]*user),
		sessions: make(map[*AuthSession]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddUser заводит подтверждённого пользователя (демо-аккаунты, тесты).
func (d *Directory) AddUser(email, password string, profile domain.Profile) (domain.Identity, error) {
	u, err := d.register(email, password, profile, true)
	if err != nil {
		return domain.Identity{}, err
	}
	return u.identity(), nil
}

// ParseDemoUsers разбирает список "email:password[:brand name]" и заводит пользователей.
func (d *Directory) ParseDemoUsers(raw string) error {
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			return fmt.Errorf("demo user %q: expected email:password[:name]", entry)
		}
		profile := domain.Profile{}
		if len(parts) == 3 {
			profile.BrandName = parts[2]
		}
		if _, err := d.AddUser(parts[0], parts[1], profile); err != nil {
			return fmt.Errorf("demo user %q: %w", parts[0], err)
		}
	}
	return nil
}

// Confirm подтверждает email пользователя.
func (d *Directory) Confirm(email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[normalizeEmail(email)]
	if !ok {
		return &domain.AuthenticationError{Reason: "user not found"}
	}
	u.confirmed = true
	return nil
}

// Connect открывает новую сессию у провайдера.
func (d *Directory) Connect() domain.AuthProvider {
	return &AuthSession{dir: d, subs: make(map[int]chan domain.SessionEvent)}
}

// RevokeUser завершает все сессии пользователя, как внешний выход из другой вкладки.
func (d *Directory) RevokeUser(userID string) int {
	d.mu.RLock()
	sessions := make([]*AuthSession, 0, len(d.sessions))
	for s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.RUnlock()

	revoked := 0
	for _, s := range sessions {
		if s.revoke(userID) {
			revoked++
		}
	}
	if revoked > 0 {
		d.logger.WithField("user_id", userID).WithField("sessions", revoked).Info("user sessions revoked")
	}
	return revoked
}

func (d *Directory) register(email, password string, profile domain.Profile, confirmed bool) (*user, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &domain.AuthenticationError{Reason: "invalid email"}
	}
	if len(password) < minPasswordLength {
		return nil, &domain.AuthenticationError{Reason: fmt.Sprintf("password should be at least %d characters", minPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.users[email]; exists {
		return nil, &domain.AuthenticationError{Reason: "user already registered"}
	}
	u := &user{
		id:        uuid.NewString(),
		email:     email,
		hash:      hash,
		profile:   profile,
		confirmed: confirmed,
	}
	d.users[email] = u
	return u, nil
}

func (d *Directory) authenticate(creds domain.Credentials) (domain.Identity, error) {
	d.mu.RLock()
	u, ok := d.users[normalizeEmail(creds.Email)]
	d.mu.RUnlock()

	if !ok {
		return domain.Identity{}, &domain.AuthenticationError{Reason: "invalid login credentials"}
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.Identity{}, &domain.AuthenticationError{Reason: "invalid login credentials"}
		}
		return domain.Identity{}, fmt.Errorf("compare password: %w", err)
	}
	if !u.confirmed {
		return domain.Identity{}, &domain.AuthenticationError{Reason: "email not confirmed"}
	}
	return u.identity(), nil
}

func (d *Directory) watch(s *AuthSession) {
	d.mu.Lock()
	d.sessions[s] = struct{}{}
	d.mu.Unlock()
}

func (d *Directory) unwatch(s *AuthSession) {
	d.mu.Lock()
	delete(d.sessions, s)
	d.mu.Unlock()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuthSession — одна сессия у in-memory провайдера.
type AuthSession struct {
	dir *Directory

	mu       sync.Mutex
	identity *domain.Identity
	subs     map[int]chan domain.SessionEvent
	nextSub  int
}

func (s *AuthSession) CurrentSession(context.Context) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil, nil
	}
	identity := *s.identity
	return &identity, nil
}

func (s *AuthSession) SignIn(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	identity, err := s.dir.authenticate(creds)
	if err != nil {
		return domain.Identity{}, err
	}

	s.mu.Lock()
	s.identity = &identity
	s.broadcastLocked(domain.SessionEvent{Identity: &identity})
	s.mu.Unlock()
	return identity, nil
}

func (s *AuthSession) SignUp(ctx context.Context, creds domain.Credentials, profile domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.dir.register(creds.Email, creds.Password, profile, !s.dir.requireConfirmation)
	return err
}

func (s *AuthSession) SignOut(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return nil
	}
	s.identity = nil
	s.broadcastLocked(domain.SessionEvent{})
	return nil
}

func (s *AuthSession) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, eventBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	s.dir.watch(s)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			empty := len(s.subs) == 0
			s.mu.Unlock()
			if empty {
				s.dir.unwatch(s)
			}
		})
	}
	return ch, unsubscribe
}

func (s *AuthSession) revoke(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil || s.identity.ID != userID {
		return false
	}
	s.identity = nil
	s.broadcastLocked(domain.SessionEvent{})
	return true
}

// broadcastLocked рассылает событие подписчикам.
func (s *AuthSession) broadcastLocked(event domain.SessionEvent) {
	for _, ch := range s.subs {
		deliver(ch, event)
	}
}

// deliver не блокируется: в переполненном канале вытесняется самое старое
// событие, важно только последнее состояние сессии.
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
	_ domain.AuthConnector = (*Directory)(nil)
	_ domain.AuthProvider  = (*AuthSession)(nil)
)
