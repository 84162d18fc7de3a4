package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/openapi-mcp/internal/common"
)

// maxResponseSize is the default cap on an upstream response body.
const maxResponseSize = 50 << 20 // 50MB

// Observer receives the outcome of every upstream request.
type Observer interface {
	ObserveUpstream(method string, status int, duration time.Duration)
}

// Result is a successful upstream response.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
	// JSON holds the decoded body when it parsed as JSON, else nil.
	JSON any
}

// Executor sends routed requests to the upstream API.
type Executor struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	headers    http.Header
	limiter    *rate.Limiter
	observer   Observer
	maxBody    int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.httpClient = c }
}

// WithHeaders adds static headers to every request. Per-call header parameters win.
func WithHeaders(headers map[string]string) Option {
	return func(e *Executor) {
		for k, v := range headers {
			e.headers.Set(k, v)
		}
	}
}

// WithRateLimit throttles outbound requests to rps with the given burst.
// rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Executor) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxResponseSize overrides the response body cap. n <= 0 keeps the default.
func WithMaxResponseSize(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxBody = n
		}
	}
}

// WithObserver reports request outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor creates an executor targeting baseURL.
func NewExecutor(baseURL string, logger *common.Logger, opts ...Option) *Executor {
	e := &Executor{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
		headers:    make(http.Header),
		maxBody:    maxResponseSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BaseURL returns the configured upstream base URL.
func (e *Executor) BaseURL() string {
	return e.baseURL
}

// Execute sends one request. Non-2xx responses and transport failures return
// an *UpstreamHTTPError.
func (e *Executor) Execute(ctx context.Context, r *Request) (*Result, error) {
	target := e.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var bodyReader io.Reader
	if r.HasBody {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for key, vals := range e.headers {
		for _, v := range vals {
			req.Header.Set(key, v)
		}
	}
	for key, vals := range r.Header {
		for _, v := range vals {
			req.Header.Set(key, v)
		}
	}
	for _, c := range r.Cookies {
		req.AddCookie(c)
	}
	req.Header.Set("Accept", "application/json")
	if r.HasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamHTTPError{Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	e.logger.Debug().Str("tool", r.Tool).Str("method", r.Method).Str("path", r.Path).Msg("upstream request")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		e.observe(r.Method, 0, duration)
		e.logger.Error().Str("method", r.Method).Str("path", r.Path).Int64("duration_ms", duration.Milliseconds()).Str("error", err.Error()).Msg("upstream request failed")
		return nil, &UpstreamHTTPError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody+1))
	e.observe(r.Method, resp.StatusCode, duration)
	if err != nil {
		return nil, &UpstreamHTTPError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if int64(len(body)) > e.maxBody {
		e.logger.Warn().Str("method", r.Method).Str("path", r.Path).Int64("max_bytes", e.maxBody).Msg("upstream response too large")
		return nil, &UpstreamHTTPError{Status: resp.StatusCode, Err: fmt.Errorf("response too large (max %d bytes)", e.maxBody)}
	}

	e.logger.Debug().Int("status", resp.StatusCode).Int64("duration_ms", duration.Milliseconds()).Int("bytes", len(body)).Msg("upstream response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamHTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	result := &Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var v any
		if dec.Decode(&v) == nil && !dec.More() {
			result.JSON = v
		}
	}
	return result, nil
}

func (e *Executor) observe(method string, status int, d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveUpstream(method, status, d)
	}
}
