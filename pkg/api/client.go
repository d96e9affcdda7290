package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "http://localhost:5000/api"
	DefaultTimeout = 10 * time.Second
)

// ErrTransport marks failures where no HTTP response was received.
var ErrTransport = errors.New("transport error")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the only component that talks HTTP to the dashboard backend.
type Client struct {
	client *resty.Client
	logger *logrus.Logger
}

func NewClient(config Config, logger *logrus.Logger) *Client {
	client := resty.New()

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &Client{
		client: client,
		logger: logger,
	}
}

// Get issues a GET against endpoint with the given query parameters and
// returns the raw response body.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParams(params)

	resp, err := req.Get(endpoint)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"endpoint": endpoint,
			"params":   params,
		}).Error("Backend request failed")
		return nil, fmt.Errorf("%w: GET %s: %v", ErrTransport, endpoint, err)
	}

	if resp.IsError() {
		statusErr := &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String(), 256),
		}
		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"params":   params,
			"status":   resp.StatusCode(),
		}).Error("Backend returned error status")
		return nil, statusErr
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint":    endpoint,
		"status":      resp.StatusCode(),
		"duration_ms": resp.Time().Milliseconds(),
	}).Debug("Backend request completed")

	return resp.Body(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
