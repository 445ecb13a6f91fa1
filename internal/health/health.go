// Package health отдаёт /healthz и /readyz по результатам проверок зависимостей витрины.
package health

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 2 * time.Second

// Status состояние зависимости или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity: чем больше, тем хуже.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report тело ответа /healthz.
type Report struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Checks        map[string]Check `json:"checks,omitempty"`
}

// Ready: сервис принимает трафик, пока нет отказавших обязательных зависимостей.
func (r Report) Ready() bool {
	return r.Status != StatusUnhealthy
}

// Checker проверяет одну зависимость.
type Checker interface {
	Check(ctx context.Context) Check
}

// Handler хранит зарегистрированные проверки и отвечает сводкой по ним.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
	timeout  time.Duration
	started  time.Time
}

// NewHandler создаёт обработчик; version попадает в отчёт.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		timeout:  defaultCheckTimeout,
		started:  time.Now(),
	}
}

// RegisterChecker добавляет проверку под именем name, заменяя прежнюю.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	h.checkers[name] = checker
	h.mu.Unlock()
}

// Report запускает все проверки параллельно, у каждой свой таймаут.
func (h *Handler) Report(ctx context.Context) Report {
	h.mu.RLock()
	checkers := maps.Clone(h.checkers)
	h.mu.RUnlock()

	results := make(map[string]Check, len(checkers))
	var mu sync.Mutex

	var g errgroup.Group
	for name, checker := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			res := checker.Check(cctx)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, res := range results {
		if res.Status.severity() > overall.severity() {
			overall = res.Status
		}
	}

	return Report{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Checks:        results,
	}
}

// ServeHTTP отдаёт JSON-отчёт: 200 для healthy и degraded, 503 для unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())

	code := http.StatusOK
	if !report.Ready() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler отвечает текстом "ready" или "not ready".
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.Report(r.Context()).Ready() {
		writeText(w, http.StatusOK, "ready")
		return
	}
	writeText(w, http.StatusServiceUnavailable, "not ready")
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// PingChecker превращает функцию ping в Checker. Отказ необязательной
// зависимости даёт degraded.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	optional bool
}

// NewPingChecker создаёт обязательную проверку.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// Optional помечает зависимость необязательной, например кэш каталога.
func (c *PingChecker) Optional() *PingChecker {
	c.optional = true
	return c
}

// Check вызывает ping и замеряет длительность.
func (c *PingChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := c.ping(ctx)

	res := Check{Name: c.name, Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	switch {
	case err == nil:
	case c.optional:
		res.Status, res.Message = StatusDegraded, err.Error()
	default:
		res.Status, res.Message = StatusUnhealthy, err.Error()
	}
	return res
}
