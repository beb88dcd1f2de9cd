package cryptor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"floragent/internal/types"
)

func newTestClient(url string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.APIKey = "test-key"
	cfg.Tenant = "tenant-t"
	return NewClient(cfg)
}

func TestClient_DetectEncrypt(t *testing.T) {
	var gotReq detectEncryptRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/detect-encrypt" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("x-api-key = %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text_with_placeholders": "order for [PERSON_1]",
			"bundles":                []map[string]string{{"placeholder": "[PERSON_1]", "token": "tok"}},
			"tenant_id":              "tenant-t",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ciphertext, material, err := c.DetectEncrypt(context.Background(), "order for John")
	if err != nil {
		t.Fatalf("DetectEncrypt failed: %v", err)
	}
	if ciphertext != "order for [PERSON_1]" {
		t.Errorf("ciphertext = %q", ciphertext)
	}
	if len(material) == 0 {
		t.Error("expected bundle material")
	}
	if gotReq.TenantID != "tenant-t" || gotReq.Threshold != 0.35 || gotReq.Schema != "v1" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestClient_DecryptPassesMaterialVerbatim(t *testing.T) {
	material := json.RawMessage(`[{"placeholder":"[PERSON_1]","token":"tok"}]`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req decryptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if string(req.Bundles) != string(material) {
			t.Errorf("bundles not passed verbatim: %s", req.Bundles)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "order for John"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	plaintext, err := c.Decrypt(context.Background(), "order for [PERSON_1]", material)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plaintext != "order for John" {
		t.Errorf("plaintext = %q", plaintext)
	}
}

func TestClient_UpstreamFailureIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, _, err := c.DetectEncrypt(context.Background(), "text")

	var provider *types.CryptoProviderError
	if !errors.As(err, &provider) {
		t.Fatalf("expected CryptoProviderError, got %v", err)
	}
	if provider.Status != http.StatusUnauthorized {
		t.Errorf("status = %d", provider.Status)
	}
	if provider.Message != "invalid api key" {
		t.Errorf("message = %q, want upstream message carried through", provider.Message)
	}
}

func TestClient_TransportFailureIsTyped(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Decrypt(context.Background(), "cipher", json.RawMessage(`[]`))

	var provider *types.CryptoProviderError
	if !errors.As(err, &provider) {
		t.Fatalf("expected CryptoProviderError, got %v", err)
	}
	if provider.Status != 0 {
		t.Errorf("transport failure should carry status 0, got %d", provider.Status)
	}
}

func TestClient_TimeoutSurfacesAsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "k"
	cfg.Tenant = "t"
	cfg.Timeout = 20 * time.Millisecond
	c := NewClient(cfg)

	_, _, err := c.DetectEncrypt(context.Background(), "text")
	var provider *types.CryptoProviderError
	if !errors.As(err, &provider) {
		t.Fatalf("expected CryptoProviderError on timeout, got %v", err)
	}
}
