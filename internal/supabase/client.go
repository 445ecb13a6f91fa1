// Package supabase — клиент хостинга Supabase: GoTrue-аутентификация
// и PostgREST-таблицы заказов и каталога.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 4 << 10
)

// Config задаёт параметры проекта Supabase.
type Config struct {
	ProjectURL string
	AnonKey    string
	// JWTSecret включает локальную проверку access-токенов.
	JWTSecret  string
	HTTPClient *http.Client
}

// Client выполняет REST-запросы к /auth/v1 и /rest/v1.
type Client struct {
	authPrefix string
	restPrefix string
	anonKey    string
	httpClient *http.Client
	logger     *log.Entry
}

// NewClient создаёт клиент проекта.
func NewClient(cfg Config, logger *log.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectURL) == "" {
		return nil, fmt.Errorf("supabase project URL is required")
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, fmt.Errorf("supabase anon key is required")
	}
	u, err := url.Parse(cfg.ProjectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase project URL %q", cfg.ProjectURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = log.New().WithField("component", "supabase")
	}

	base := strings.TrimRight(cfg.ProjectURL, "/")
	return &Client{
		authPrefix: base + "/auth/v1",
		restPrefix: base + "/rest/v1",
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// APIError описывает ответ Supabase с кодом не из 2xx.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.StatusCode, e.Message)
}

// errorBody покрывает форматы ошибок GoTrue (старый и новый) и PostgREST.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Code             any    `json:"code"`
	Message          string `json:"message"`
}

func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	switch {
	case body.ErrorCode != "":
		apiErr.Code = body.ErrorCode
	case body.Error != "":
		apiErr.Code = body.Error
	default:
		if code, ok := body.Code.(string); ok {
			apiErr.Code = code
		}
	}
	for _, msg := range []string{body.ErrorDescription, body.Msg, body.Message} {
		if msg != "" {
			apiErr.Message = msg
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// один вызов REST API
type request struct {
	method  string
	url     string
	token   string
	body    any
	headers map[string]string
}

// do выполняет запрос и декодирует JSON-ответ в out (если out != nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	token := req.token
	if token == "" {
		token = c.anonKey
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.method, redactQuery(req.url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		apiErr := parseAPIError(resp.StatusCode, raw)
		c.logger.WithFields(log.Fields{
			"method": req.method,
			"url":    redactQuery(req.url),
			"status": resp.StatusCode,
			"code":   apiErr.Code,
		}).Debug("supabase request failed")
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// userToken возвращает токен пользователя из контекста, иначе anon key (RLS).
func userToken(ctx context.Context) string {
	token, _ := domain.AccessTokenFrom(ctx)
	return token
}

func (c *Client) tableURL(table string, query url.Values) string {
	u := c.restPrefix + "/" + url.PathEscape(table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// redactQuery убирает query из URL для логов: в фильтрах бывают id пользователей.
func redactQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func apiErrorCode(err error) (string, int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.StatusCode, true
	}
	return "", 0, false
}

// Health проверяет доступность GoTrue (/auth/v1/health).
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, url: c.authPrefix + "/health"}, nil)
}
