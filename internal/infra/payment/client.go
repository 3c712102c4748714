package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/infra/metrics"
)

const defaultHTTPTimeout = 10 * time.Second

// doJSON performs one JSON HTTP call and applies the shared response
// classification: network errors, timeouts and 5xx are transient; any 4xx is
// handed back to the gateway so it can extract its provider-specific decline
// code. The body is returned for both success and 4xx.
func doJSON(ctx context.Context, client *http.Client, provider, op, method, url string, headers map[string]string, reqBody any) (int, []byte, error) {
	var payload io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal %s request: %w", op, err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveGatewayCall(provider, op, elapsed, false)
		return 0, nil, &domain.GatewayError{Provider: provider, Transient: true, Code: "network", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveGatewayCall(provider, op, elapsed, false)
		return resp.StatusCode, nil, &domain.GatewayError{Provider: provider, Transient: true, Code: "read_body", Message: err.Error()}
	}

	if resp.StatusCode >= 500 {
		metrics.ObserveGatewayCall(provider, op, elapsed, false)
		return resp.StatusCode, body, &domain.GatewayError{
			Provider:  provider,
			Transient: true,
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   string(body),
		}
	}

	metrics.ObserveGatewayCall(provider, op, elapsed, resp.StatusCode < 400)
	return resp.StatusCode, body, nil
}

// malformed wraps an undecodable success body as transient: the provider is
// answering but not usefully, so a retry may see a sane response.
func malformed(provider, op string, cause error, body []byte) error {
	return &domain.GatewayError{
		Provider:  provider,
		Transient: true,
		Code:      "malformed_body",
		Message:   fmt.Sprintf("%s: %v, body: %s", op, cause, string(body)),
	}
}
