package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/contentkit/schemaload/internal/domain"
	"github.com/contentkit/schemaload/internal/retry"
)

// Options configures the HTTP store client
type Options struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration // per-request timeout, 0 means 30s
}

// HTTPClient implements Client against the store's REST API
type HTTPClient struct {
	opts     Options
	http     *http.Client
	retryCfg retry.Config
}

// NewHTTPClient creates a store client and verifies connectivity
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	return NewHTTPClientWithRetry(opts, retry.DefaultConfig())
}

// NewHTTPClientWithRetry creates a store client with custom retry configuration
func NewHTTPClientWithRetry(opts Options, retryCfg retry.Config) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("store base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := &HTTPClient{
		opts:     opts,
		http:     &http.Client{Timeout: opts.Timeout},
		retryCfg: retryCfg,
	}

	ctx := context.Background()
	if err := retry.Do(ctx, retryCfg, func() error {
		return c.Ping(ctx)
	}); err != nil {
		return nil, fmt.Errorf("failed to ping content store: %w", err)
	}

	log.Info().
		Str("base_url", opts.BaseURL).
		Msg("Connected to content store")

	return c, nil
}

// Ping verifies the store is reachable
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.get(ctx, "/v1/ping", nil)
}

// Capabilities probes what the store supports. A store old enough not to
// expose the endpoint reports no atomic batch-insert support rather than
// an error, so callers can degrade gracefully.
func (c *HTTPClient) Capabilities(ctx context.Context) (Capabilities, error) {
	var caps Capabilities
	err := c.get(ctx, "/v1/capabilities", &caps)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return Capabilities{}, nil
	}
	if err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}

type documentPayload struct {
	URI         string                         `json:"uri"`
	Content     []byte                         `json:"content"`
	Permissions map[string][]domain.Capability `json:"permissions,omitempty"`
	Collections []string                       `json:"collections,omitempty"`
}

type writeResponse struct {
	Results []struct {
		URI   string `json:"uri"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	} `json:"results"`
}

// WriteDocuments persists a batch of operations in one request
func (c *HTTPClient) WriteDocuments(ctx context.Context, ops []domain.WriteOperation) ([]*domain.WriteFailure, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	payload := make([]documentPayload, 0, len(ops))
	for _, op := range ops {
		payload = append(payload, documentPayload{
			URI:         op.URI,
			Content:     op.Content,
			Permissions: op.Metadata.Permissions,
			Collections: op.Metadata.Collections,
		})
	}

	var resp writeResponse
	err := retry.Do(ctx, c.retryCfg, func() error {
		resp = writeResponse{}
		return c.post(ctx, "/v1/documents", payload, &resp)
	})
	if err != nil {
		return nil, err
	}

	var failures []*domain.WriteFailure
	for _, r := range resp.Results {
		if !r.OK {
			failures = append(failures, &domain.WriteFailure{URI: r.URI, Cause: errors.New(r.Error)})
		}
	}

	log.Debug().
		Int("count", len(ops)).
		Int("rejected", len(failures)).
		Msg("Wrote document batch to content store")

	return failures, nil
}

// Eval executes one script as a single remote transaction. Remote failures
// are reported with the store's message attached verbatim.
func (c *HTTPClient) Eval(ctx context.Context, req EvalRequest) error {
	return c.post(ctx, "/v1/eval", req, nil)
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("content store returned status %d", e.code)
	}
	return fmt.Sprintf("content store returned status %d: %s", e.code, e.body)
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(data))}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
