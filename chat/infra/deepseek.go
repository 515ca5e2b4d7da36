package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"chat-gateway/chat/domain"

	"golang.org/x/time/rate"
)

const (
	DefaultURL = "https://api.deepseek.com/v1/chat/completions"

	// DefaultMaxResponseBytes limita o quanto lemos do corpo do upstream.
	DefaultMaxResponseBytes = 10 << 20
)

// DeepSeekClient faz uma única chamada POST por requisição, sem retry.
// O prazo vem do ctx (o pipeline aplica o timeout).
type DeepSeekClient struct {
	url        string
	httpClient *http.Client
	// limiter protege a cota da credencial compartilhada. nil = sem limite.
	limiter *rate.Limiter
	maxBody int64
}

type ClientOption func(*DeepSeekClient)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(d *DeepSeekClient) { d.httpClient = c }
}

// WithMaxResponseBytes troca o limite do corpo de resposta. n <= 0 mantém o padrão.
func WithMaxResponseBytes(n int64) ClientOption {
	return func(d *DeepSeekClient) {
		if n > 0 {
			d.maxBody = n
		}
	}
}

// WithThrottle limita as chamadas de saída a rps por segundo com rajada burst.
// rps <= 0 desliga.
func WithThrottle(rps float64, burst int) ClientOption {
	return func(d *DeepSeekClient) {
		if rps <= 0 {
			d.limiter = nil
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func NewDeepSeekClient(endpoint string, opts ...ClientOption) *DeepSeekClient {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultURL
	}
	c := &DeepSeekClient{
		url:        endpoint,
		httpClient: &http.Client{},
		maxBody:    DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implementa domain.Upstream.
func (c *DeepSeekClient) Complete(ctx context.Context, apiKey string, req domain.UpstreamRequest) domain.Outcome {
	httpReq, err := c.newRequest(ctx, apiKey, req)
	if err != nil {
		return domain.SetupError{Message: err.Error()}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.SetupError{Message: fmt.Sprintf("upstream throttle: %v", err)}
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.NoResponse{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	// lê um byte a mais para distinguir "cabe exatamente" de "foi cortado"
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return domain.NoResponse{Err: fmt.Errorf("read response: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		// corpo truncado não é JSON válido; nunca repassar como sucesso
		return domain.UpstreamError{Status: http.StatusBadGateway}
	}

	switch {
	case resp.StatusCode >= http.StatusBadRequest:
		return domain.UpstreamError{Status: resp.StatusCode, Body: body}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		// 1xx/3xx não seguidos: o status não serve para o cliente (304 descarta corpo)
		return domain.UpstreamError{Status: http.StatusBadGateway, Body: body}
	}
	return domain.Success{Status: resp.StatusCode, Body: body}
}

// newRequest cobre tudo que pode falhar antes de qualquer I/O de rede.
func (c *DeepSeekClient) newRequest(ctx context.Context, apiKey string, req domain.UpstreamRequest) (*http.Request, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream url scheme %q", u.Scheme)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}
