package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	synthesizePath   = "/v1/synthesize"
	maxErrorBodySize = 4 << 10
)

// HTTPProvider calls a speech service that accepts JSON and answers with audio.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
}

type httpRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
	Slow bool   `json:"slow"`
}

type httpErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPProvider creates a provider for baseURL. A host without a scheme is
// reached over https.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (p *HTTPProvider) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{Provider: "http", Message: "text must not be empty"}
	}
	host := p.baseURL
	if opts.Host != "" {
		host = opts.Host
	}
	if host == "" {
		return nil, &ProviderError{Provider: "http", Message: "no provider host configured"}
	}

	body, err := json.Marshal(httpRequest{Text: text, Lang: opts.Lang, Slow: opts.Slow})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(host)+synthesizePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "http", Message: "request to " + host + " failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Provider: "http", StatusCode: resp.StatusCode, Message: errorDetail(resp.Body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "http", Message: "read audio", Err: err}
	}
	if len(audio) == 0 {
		return nil, &ProviderError{Provider: "http", Message: "received empty audio"}
	}
	return audio, nil
}

// HealthCheck reports whether the provider answers on /health.
func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	if p.baseURL == "" {
		return errors.New("no provider host configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(p.baseURL)+"/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}
	return nil
}

func endpoint(host string) string {
	host = strings.TrimRight(host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host
}

func errorDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	var parsed httpErrorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail != "" {
		if parsed.ErrorCode != "" {
			return parsed.Detail + " (code: " + parsed.ErrorCode + ")"
		}
		return parsed.Detail
	}
	return strings.TrimSpace(string(raw))
}
