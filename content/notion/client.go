// Package notion implements content.Source on top of the Notion REST API.
//
// Pages are rows of a single database. Page properties follow the blog template layout:
// a title property, "Slug" (rich text) and "FeaturedImage" (files).
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dennwc/assetcache/logging"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	// APIVersion is sent in the Notion-Version header of every request.
	APIVersion = "2022-06-28"

	// DefaultRequestsPerSecond matches the average rate allowed by Notion for an integration.
	DefaultRequestsPerSecond = 3

	defaultMaxRetries = 3
	defaultRetryAfter = time.Second
	pageSize          = 100
	maxResponseSize   = 32 << 20
)

// Config holds configuration for a Notion client.
type Config struct {
	// Token is an integration secret.
	Token string
	// DatabaseID is the database whose rows are the site pages.
	DatabaseID string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// RequestsPerSecond limits the request rate. Defaults to DefaultRequestsPerSecond.
	RequestsPerSecond float64
	// MaxRetries is the number of retries of rate-limited requests.
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a rate-limited Notion API client.
type Client struct {
	baseURL    string
	token      string
	database   string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *slog.Logger
}

// New creates a Notion client.
func New(conf Config) (*Client, error) {
	if conf.Token == "" {
		return nil, errors.New("notion: token is required")
	}
	if conf.DatabaseID == "" {
		return nil, errors.New("notion: database id is required")
	}
	base := strings.TrimRight(conf.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("notion: invalid base url: %w", err)
	}
	rps := conf.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	cli := conf.HTTPClient
	if cli == nil {
		cli = http.DefaultClient
	}
	retries := conf.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Client{
		baseURL:    base,
		token:      conf.Token,
		database:   conf.DatabaseID,
		httpClient: cli,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: retries,
		log:        logging.NewComponentLogger(conf.Logger, "notion"),
	}, nil
}

// do executes an API request and decodes the response into out.
// Rate-limited requests are retried after the delay requested by the server.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) != 0 {
		u += "?" + query.Encode()
	}
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		data, header, status, err := c.roundTrip(ctx, method, u, payload)
		if err != nil {
			return err
		}
		if status == http.StatusTooManyRequests && attempt < c.maxRetries {
			wait := retryAfter(header)
			c.log.Debug("rate limited", logging.String("path", path), logging.Duration("retry_after", wait))
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if status < 200 || status >= 300 {
			return newAPIError(status, data)
		}
		if out == nil {
			return nil
		}
		if err = json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("notion: decode %s: %w", path, err)
		}
		return nil
	}
}

func (c *Client) roundTrip(ctx context.Context, method, u string, payload []byte) ([]byte, http.Header, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("notion: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("notion: reading response body: %w", err)
	}
	return data, resp.Header, resp.StatusCode, nil
}

func retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if sec, err := strconv.ParseFloat(v, 64); err == nil && sec >= 0 {
			return time.Duration(sec * float64(time.Second))
		}
	}
	return defaultRetryAfter
}
