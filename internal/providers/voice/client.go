package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soundline/vocalis/internal/config"
	"github.com/soundline/vocalis/internal/providers/voice/domain"
	"go.uber.org/zap"
)

type httpClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	log     *zap.Logger
}

// NewClient returns the HTTP implementation of the provider contract.
func NewClient(cfg config.Config, log *zap.Logger) domain.Client {
	timeout := cfg.Voice.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		baseURL: strings.TrimRight(cfg.Voice.BaseURL, "/"),
		apiKey:  cfg.Voice.APIKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log.Named("voice.client"),
	}
}

func (c *httpClient) ListAssistants(ctx context.Context) ([]domain.Assistant, error) {
	var out []domain.Assistant
	if err := c.do(ctx, http.MethodGet, "/assistant", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetAssistant(ctx context.Context, externalID string) (*domain.Assistant, error) {
	var out domain.Assistant
	if err := c.do(ctx, http.MethodGet, "/assistant/"+url.PathEscape(externalID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) UpdateAssistant(ctx context.Context, externalID string, req domain.UpdateRequest) error {
	return c.do(ctx, http.MethodPatch, "/assistant/"+url.PathEscape(externalID), req, nil)
}

func (c *httpClient) DeleteAssistant(ctx context.Context, externalID string) error {
	return c.do(ctx, http.MethodDelete, "/assistant/"+url.PathEscape(externalID), nil, nil)
}

func (c *httpClient) GetPhoneNumber(ctx context.Context, externalID string) (*domain.PhoneNumber, error) {
	var out domain.PhoneNumber
	if err := c.do(ctx, http.MethodGet, "/phone-number/"+url.PathEscape(externalID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) UpdatePhoneNumber(ctx context.Context, externalID string, req domain.UpdateRequest) error {
	return c.do(ctx, http.MethodPatch, "/phone-number/"+url.PathEscape(externalID), req, nil)
}

func (c *httpClient) DeletePhoneNumber(ctx context.Context, externalID string) error {
	return c.do(ctx, http.MethodDelete, "/phone-number/"+url.PathEscape(externalID), nil, nil)
}

func (c *httpClient) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode >= 500:
		c.log.Warn("provider server error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", domain.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", domain.ErrBadRequest, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return json.Unmarshal(payload, out)
}
