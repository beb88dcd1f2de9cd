// Package cryptor is the thin adapter over the external encryption
// provider (the Cryptor Service). It exposes exactly two operations,
// detect-encrypt and decrypt, and reports every transport or upstream
// failure as a single typed CryptoProviderError. The adapter never
// retries and never fabricates a plaintext or ciphertext; retry policy,
// if any, belongs to the caller.
package cryptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"floragent/internal/logging"
	"floragent/internal/types"
)

// Gateway is the contract the workflow engine depends on. Tests substitute
// a fake; production uses Client.
type Gateway interface {
	DetectEncrypt(ctx context.Context, text string) (ciphertext string, material json.RawMessage, err error)
	Decrypt(ctx context.Context, ciphertext string, material json.RawMessage) (plaintext string, err error)
}

// Config holds the Cryptor Service connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	Tenant    string
	Threshold float64
	Schema    string
	Timeout   time.Duration
}

// DefaultConfig returns sensible defaults for everything but credentials.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.35,
		Schema:    "v1",
		Timeout:   30 * time.Second,
	}
}

// Client talks to the Cryptor Service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	tenant     string
	threshold  float64
	schema     string
	httpClient *http.Client
}

// NewClient creates a Cryptor Service client. Credential validation
// happens at config load, not here.
func NewClient(cfg Config) *Client {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.35
	}
	if cfg.Schema == "" {
		cfg.Schema = "v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		tenant:    cfg.Tenant,
		threshold: cfg.Threshold,
		schema:    cfg.Schema,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type detectEncryptRequest struct {
	TenantID  string  `json:"tenant_id"`
	Text      string  `json:"text"`
	Threshold float64 `json:"threshold"`
	Schema    string  `json:"schema"`
}

type detectEncryptResponse struct {
	TextWithPlaceholders string          `json:"text_with_placeholders"`
	Bundles              json.RawMessage `json:"bundles"`
	TenantID             string          `json:"tenant_id"`
}

type decryptRequest struct {
	TenantID             string          `json:"tenant_id"`
	TextWithPlaceholders string          `json:"text_with_placeholders"`
	Bundles              json.RawMessage `json:"bundles"`
}

type decryptResponse struct {
	Text string `json:"text"`
}

// DetectEncrypt detects sensitive values in text and replaces them with
// encrypted placeholders. It returns the placeholder-bearing text and the
// opaque bundle material needed to decrypt it later.
func (c *Client) DetectEncrypt(ctx context.Context, text string) (string, json.RawMessage, error) {
	timer := logging.StartTimer(logging.CategoryCryptor, "detect-encrypt")
	defer timer.StopWithInfo()

	reqBody := detectEncryptRequest{
		TenantID:  c.tenant,
		Text:      text,
		Threshold: c.threshold,
		Schema:    c.schema,
	}

	var resp detectEncryptResponse
	if err := c.post(ctx, "detect-encrypt", "/v1/detect-encrypt", reqBody, &resp); err != nil {
		return "", nil, err
	}
	if resp.TextWithPlaceholders == "" {
		return "", nil, &types.CryptoProviderError{
			Op:      "detect-encrypt",
			Message: "provider returned no ciphertext",
		}
	}

	logging.Cryptor("detect-encrypt ok (%d bytes of bundle material)", len(resp.Bundles))
	return resp.TextWithPlaceholders, resp.Bundles, nil
}

// Decrypt restores plaintext from placeholder-bearing text using the
// bundle material captured at encrypt time. Material must be passed back
// unchanged.
func (c *Client) Decrypt(ctx context.Context, ciphertext string, material json.RawMessage) (string, error) {
	timer := logging.StartTimer(logging.CategoryCryptor, "decrypt")
	defer timer.StopWithInfo()

	reqBody := decryptRequest{
		TenantID:             c.tenant,
		TextWithPlaceholders: ciphertext,
		Bundles:              material,
	}

	var resp decryptResponse
	if err := c.post(ctx, "decrypt", "/v1/decrypt", reqBody, &resp); err != nil {
		return "", err
	}

	logging.Cryptor("decrypt ok")
	return resp.Text, nil
}

// post performs one JSON POST and maps every failure to CryptoProviderError.
func (c *Client) post(ctx context.Context, op, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &types.CryptoProviderError{Op: op, Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &types.CryptoProviderError{Op: op, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.CryptoProviderError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.CryptoProviderError{Op: op, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &types.CryptoProviderError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: upstreamMessage(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &types.CryptoProviderError{Op: op, Status: resp.StatusCode, Message: "failed to parse response", Err: err}
	}
	return nil
}

// upstreamMessage pulls a human-readable message out of an error body,
// falling back to the raw body.
func upstreamMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Error != "":
			return e.Error
		case e.Message != "":
			return e.Message
		case e.Detail != "":
			return e.Detail
		}
	}
	const max = 200
	s := string(body)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return fmt.Sprintf("upstream error: %s", s)
}
