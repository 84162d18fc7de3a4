package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bobmcallan/openapi-mcp/internal/common"
)

// maxDocumentSize caps the size of a fetched API description.
const maxDocumentSize = 20 << 20 // 20MB

// Loader retrieves API descriptions from http(s) URLs or local files.
type Loader struct {
	httpClient *http.Client
	logger     *common.Logger
	retries    int
	retryDelay time.Duration
}

// NewLoader creates a loader. retries is the total number of attempts for URL
// sources; values below 1 mean a single attempt.
func NewLoader(httpClient *http.Client, logger *common.Logger, retries int, retryDelay time.Duration) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if retries < 1 {
		retries = 1
	}
	return &Loader{
		httpClient: httpClient,
		logger:     logger,
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// Load fetches and parses the document at location.
func (l *Loader) Load(ctx context.Context, location string) (*Document, error) {
	data, err := l.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(location, data)
	if err != nil {
		return nil, err
	}
	l.logger.Info().
		Str("location", location).
		Str("title", doc.Title()).
		Str("version", doc.Version()).
		Int("operations", len(doc.operations)).
		Msg("API description loaded")
	return doc, nil
}

// Fetch returns the raw document bytes. URL sources are retried on transport
// errors and 5xx responses.
func (l *Loader) Fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.fetchURL(ctx, location)
	}
	path := location
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentFetchError{Location: location, Err: err}
	}
	return data, nil
}

func (l *Loader) fetchURL(ctx context.Context, location string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= l.retries; attempt++ {
		data, err := l.get(ctx, location)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var fetchErr *DocumentFetchError
		if errors.As(err, &fetchErr) && fetchErr.Status >= 400 && fetchErr.Status < 500 {
			return nil, err
		}
		if attempt == l.retries {
			break
		}

		l.logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", l.retries).
			Str("location", location).
			Str("error", err.Error()).
			Msg("failed to fetch API description, retrying")

		select {
		case <-ctx.Done():
			return nil, &DocumentFetchError{Location: location, Err: ctx.Err()}
		case <-time.After(l.retryDelay):
		}
	}
	return nil, lastErr
}

func (l *Loader) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &DocumentFetchError{Location: location, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, &DocumentFetchError{Location: location, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, &DocumentFetchError{Location: location, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if len(body) > maxDocumentSize {
		return nil, &DocumentFetchError{Location: location, Status: resp.StatusCode, Err: fmt.Errorf("document too large (max %d bytes)", maxDocumentSize)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DocumentFetchError{
			Location: location,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected response: %s", strings.TrimSpace(truncate(string(body), 200))),
		}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
