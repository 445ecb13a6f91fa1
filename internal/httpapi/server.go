// Package httpapi — JSON API витрины. Каждый запрос, кроме открытия сессии,
// несёт токен в заголовке X-Session-Token.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/storefront"
)

// SessionHeader содержит токен сессии.
const SessionHeader = "X-Session-Token"

const defaultRequestTimeout = 15 * time.Second

// Sessions: реестр сессий, с которым работает API.
type Sessions interface {
	Open(ctx context.Context) (*storefront.Session, error)
	Get(token string) (*storefront.Session, error)
	Close(token string) error
}

// Option настраивает Handler.
type Option func(*Handler)

// WithLogger задаёт логгер запросов.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRequestTimeout ограничивает время обработки запроса.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// Handler обслуживает маршруты /v1.
type Handler struct {
	sessions Sessions
	logger   *log.Entry
	timeout  time.Duration
}

// NewHandler создаёт обработчик API.
func NewHandler(sessions Sessions, opts ...Option) *Handler {
	h := &Handler{
		sessions: sessions,
		logger:   log.New().WithField("component", "httpapi"),
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes собирает chi-роутер API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", h.openSession)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)

			r.Delete("/sessions", h.closeSession)
			r.Post("/sessions/sign-in", h.signIn)
			r.Post("/sessions/sign-up", h.signUp)
			r.Post("/sessions/sign-out", h.signOut)
			r.Post("/sessions/access-code", h.accessCode)

			r.Get("/screen", h.screen)
			r.Post("/navigate", h.navigate)
			r.Post("/orders/new", h.startNewOrder)

			r.Get("/products", h.listProducts)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.getCart)
				r.Post("/items", h.addCartItem)
				r.Put("/items/{productID}", h.updateCartItem)
				r.Delete("/items/{productID}", h.removeCartItem)
			})

			r.Post("/checkout", h.checkout)

			r.Route("/admin/products", func(r chi.Router) {
				r.Post("/", h.createProduct)
				r.Put("/{productID}", h.updateProduct)
				r.Delete("/{productID}", h.deleteProduct)
			})
		})
	})
	return r
}

type sessionKey struct{}

// requireSession находит сессию по заголовку и кладёт её в контекст запроса.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(SessionHeader)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "session_required", "missing "+SessionHeader+" header", "")
			return
		}
		s, err := h.sessions.Get(token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func sessionFrom(r *http.Request) *storefront.Session {
	s, _ := r.Context().Value(sessionKey{}).(*storefront.Session)
	return s
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := h.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}
