package signature

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOracle implements Oracle by delegating to an external signing
// service reachable over plain HTTP: POST the digest, read back the
// computed signature. The service itself is out of scope (§1 treats the
// signing algorithm as opaque); this is just the transport to reach it.
type HTTPOracle struct {
	client   *http.Client
	endpoint string
}

// NewHTTPOracle builds an Oracle that calls endpoint for every Sign.
func NewHTTPOracle(endpoint string) *HTTPOracle {
	return &HTTPOracle{
		client:   &http.Client{Timeout: 5 * time.Second},
		endpoint: endpoint,
	}
}

type oracleRequest struct {
	Digest string `json:"digest"`
}

type oracleResponse struct {
	Signature string `json:"signature"`
}

// Sign posts digest to the configured oracle endpoint and returns the
// signature it computes.
func (o *HTTPOracle) Sign(digest string) (string, error) {
	body, err := json.Marshal(oracleRequest{Digest: digest})
	if err != nil {
		return "", fmt.Errorf("signature: marshal oracle request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("signature: build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signature: oracle request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("signature: read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signature: oracle returned http %d: %s", resp.StatusCode, raw)
	}

	var out oracleResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("signature: unmarshal oracle response: %w", err)
	}
	if out.Signature == "" {
		return "", fmt.Errorf("signature: oracle returned empty signature")
	}
	return out.Signature, nil
}
