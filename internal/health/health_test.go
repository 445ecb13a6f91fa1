package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pingOK(context.Context) error { return nil }

func pingErr(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestHandler_Report(t *testing.T) {
	tests := []struct {
		name     string
		checkers map[string]Checker
		want     Status
	}{
		{name: "no checks", want: StatusHealthy},
		{
			name:     "all healthy",
			checkers: map[string]Checker{"postgres": NewPingChecker("postgres", pingOK)},
			want:     StatusHealthy,
		},
		{
			name: "optional cache down",
			checkers: map[string]Checker{
				"postgres": NewPingChecker("postgres", pingOK),
				"redis":    NewPingChecker("redis", pingErr("redis down")).Optional(),
			},
			want: StatusDegraded,
		},
		{
			name: "required store down wins over degraded",
			checkers: map[string]Checker{
				"supabase": NewPingChecker("supabase", pingErr("502 bad gateway")),
				"redis":    NewPingChecker("redis", pingErr("redis down")).Optional(),
			},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler("test")
			for name, c := range tt.checkers {
				h.RegisterChecker(name, c)
			}

			report := h.Report(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Checks, len(tt.checkers))
			assert.Equal(t, tt.want != StatusUnhealthy, report.Ready())
		})
	}
}

func TestHandler_ServeHTTP(t *testing.T) {
	h := NewHandler("v1.2.0")
	h.RegisterChecker("postgres", NewPingChecker("postgres", pingErr("connection refused")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "v1.2.0", report.Version)
	assert.Equal(t, "connection refused", report.Checks["postgres"].Message)
}

func TestHandler_ReplaceChecker(t *testing.T) {
	h := NewHandler("test")
	h.RegisterChecker("postgres", NewPingChecker("postgres", pingErr("down")))
	h.RegisterChecker("postgres", NewPingChecker("postgres", pingOK))

	assert.Equal(t, StatusHealthy, h.Report(context.Background()).Status)
}

func TestHandler_CheckTimeout(t *testing.T) {
	h := NewHandler("test")
	h.timeout = 20 * time.Millisecond
	h.RegisterChecker("slow", NewPingChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	report := h.Report(context.Background())

	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks["slow"].Message)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProbes(t *testing.T) {
	degraded := NewHandler("test")
	degraded.RegisterChecker("redis", NewPingChecker("redis", pingErr("down")).Optional())

	down := NewHandler("test")
	down.RegisterChecker("postgres", NewPingChecker("postgres", pingErr("down")))

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantBody string
	}{
		{"liveness", LivenessHandler, http.StatusOK, "ok"},
		{"ready while degraded", degraded.ReadinessHandler, http.StatusOK, "ready"},
		{"not ready", down.ReadinessHandler, http.StatusServiceUnavailable, "not ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}
