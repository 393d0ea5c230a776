package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"chatrex/internal/domain"
)

// Client talks to the chatrex API from the import CLI.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	secret     string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithSecret sets the shared secret sent as X-Api-Key.
func WithSecret(secret string) Option {
	return func(c *Client) {
		c.secret = secret
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL: parsed,
		// Extraction hits an LLM per batch, so the default is generous.
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

var _ domain.VerifyClient = (*Client)(nil)
var _ domain.ExtractClient = (*Client)(nil)

// VerifyChat submits the transcript digest and receives the verdict plus the
// stored checkpoint.
func (c *Client) VerifyChat(ctx context.Context, hashHex string) (domain.VerifyResult, error) {
	var result domain.VerifyResult
	if err := c.post(ctx, "/api/v1/verify-chat", map[string]string{"hash": hashHex}, &result); err != nil {
		return domain.VerifyResult{}, err
	}
	return result, nil
}

// ExtractBatch sends one batch of messages for extraction and persistence.
func (c *Client) ExtractBatch(ctx context.Context, batch []domain.Message) (domain.BatchResult, error) {
	var result domain.BatchResult
	payload := map[string]any{"batch": batch}
	if err := c.post(ctx, "/api/v1/extract-recs", payload, &result); err != nil {
		return domain.BatchResult{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	target := *c.baseURL
	target.Path = path.Join(target.Path, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("X-Api-Key", c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s: server error %d", endpoint, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
