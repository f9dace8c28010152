package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultUserAgent = "PartesChatbot/1.0"

	maxUpstreamBody = 8 << 20
)

// WebhookClient POSTs JSON payloads to an automation webhook.
type WebhookClient struct {
	url        string
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

type WebhookOption func(*WebhookClient)

func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookClient) {
		if c != nil {
			w.httpClient = c
		}
	}
}

func WithUserAgent(ua string) WebhookOption {
	return func(w *WebhookClient) {
		w.userAgent = ua
	}
}

func NewWebhookClient(url, apiKey string, opts ...WebhookOption) (*WebhookClient, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("webhook url is empty")
	}
	c := &WebhookClient{
		url:        url,
		apiKey:     strings.TrimSpace(apiKey),
		userAgent:  DefaultUserAgent,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *WebhookClient) URL() string {
	return c.url
}

// Post sends payload and returns the raw response body. A non-2xx answer is
// returned as *UpstreamError.
func (c *WebhookClient) Post(ctx context.Context, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal webhook payload")
	}
	log.Debug().Str("component", "relay").Str("url", c.url).RawJSON("payload", b).Msg("sending payload to webhook")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "webhook request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, errors.Wrap(err, "read webhook response")
	}
	log.Debug().Str("component", "relay").Int("status", resp.StatusCode).Msg("webhook response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
