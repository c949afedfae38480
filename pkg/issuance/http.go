package issuance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPIssuer calls a remote issuance endpoint.
type HTTPIssuer struct {
	url    string
	client *http.Client
}

// NewHTTPIssuer creates an issuer that POSTs requests to url.
func NewHTTPIssuer(url string, client *http.Client) *HTTPIssuer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPIssuer{url: url, client: client}
}

// Make sure we conform to the interface
var _ Issuer = (*HTTPIssuer)(nil)

// Issue sends req to the issuance service and decodes the minted tokens.
func (h *HTTPIssuer) Issue(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issuance request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build issuance request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("issuance request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("issuance returned %s", resp.Status)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode issuance response: %w", err)
	}
	if len(result.TokenIDs) != req.Quantity {
		return nil, fmt.Errorf("issuance returned %d tokens, want %d", len(result.TokenIDs), req.Quantity)
	}
	return &result, nil
}
