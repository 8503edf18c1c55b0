package consultapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"telecall/internal/core/domain"
	"telecall/pkg/cache"
	"telecall/pkg/circuitbreaker"
	apperrors "telecall/pkg/errors"

	"go.uber.org/zap"
)

// statusCacheTTL bounds how stale a consultation snapshot may be.
// Start and End always hit the service and drop the cached entry.
const statusCacheTTL = 5 * time.Second

// Client talks to the consultation service over its REST surface.
// Non-2xx statuses are mapped to classified errors so the call
// lifecycle can tell an expired session from an exhausted balance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	status  *cache.Cache
	logger  *zap.SugaredLogger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		status:  cache.New(statusCacheTTL),
		logger:  logger,
	}
}

// Close releases the status cache. The client itself holds no
// connections beyond the http.Client's pool.
func (c *Client) Close() {
	c.status.Stop()
}

func (c *Client) Status(ctx context.Context, id domain.ConsultationID) (*domain.Consultation, error) {
	v, err := c.status.GetOrFetch(ctx, string(id), func(ctx context.Context) (interface{}, error) {
		var consultation domain.Consultation
		if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/video/status/%s", id), &consultation); err != nil {
			return nil, err
		}
		return &consultation, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Consultation), nil
}

func (c *Client) Start(ctx context.Context, id domain.ConsultationID) (*domain.CallInfo, error) {
	var info domain.CallInfo
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/video/start/%s", id), &info)
	if err != nil {
		return nil, err
	}
	c.status.Delete(string(id))
	return &info, nil
}

func (c *Client) End(ctx context.Context, id domain.ConsultationID) error {
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/video/end/%s", id), nil)
	c.status.Delete(string(id))
	return err
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	return c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp.StatusCode); err != nil {
			c.logger.Warnw("consultation request rejected",
				"method", method, "path", path, "status", resp.StatusCode)
			return err
		}

		if out == nil {
			return nil
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return apperrors.NewSessionExpiredError()
	case status == http.StatusPaymentRequired:
		return apperrors.NewInsufficientCreditsError()
	case status == http.StatusNotFound:
		return apperrors.NewNotFoundError("consultation")
	default:
		return apperrors.NewInternalError(fmt.Sprintf("consultation service returned %d", status))
	}
}
