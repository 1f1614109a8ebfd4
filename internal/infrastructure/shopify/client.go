// Package shopify talks to the Shopify Admin GraphQL API. It provides a
// metafield-backed counter store and a product catalog client.
package shopify

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

	"github.com/cenkalti/backoff/v4"

	"skuforge/pkg/logger"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2025-07"

var (
	// ErrThrottled marks a request rejected by the API cost limiter.
	ErrThrottled = errors.New("shopify: throttled")

	errMalformed = errors.New("shopify: malformed response")
)

// Config configures the Admin API client.
type Config struct {
	ShopDomain  string // e.g. demo.myshopify.com
	AccessToken string
	APIVersion  string

	// Endpoint overrides the URL derived from ShopDomain and APIVersion.
	Endpoint string

	Timeout      time.Duration
	MaxRetries   uint64
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// GraphQLError is one entry of a response's top-level errors.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// ResponseError carries the top-level errors of a GraphQL response.
type ResponseError struct {
	Errors []GraphQLError
}

func (e *ResponseError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ge := range e.Errors {
		msgs[i] = ge.Message
	}
	return "shopify graphql: " + strings.Join(msgs, "; ")
}

// UserError is a mutation validation error.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shopify: http %d: %s", e.StatusCode, e.Body)
}

// Client executes Admin GraphQL requests with retries.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
	cfg      Config
	log      *logger.Logger
}

// NewClient creates a new Admin API client.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 10 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.ShopDomain == "" {
			return nil, errors.New("shopify: shop domain is required")
		}
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", cfg.ShopDomain, cfg.APIVersion)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		endpoint: endpoint,
		token:    cfg.AccessToken,
		cfg:      cfg,
		log:      log.WithComponent("shopify"),
	}, nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Do runs query and decodes its data into out. Throttling, HTTP 429, 5xx and
// network failures are retried; everything else fails immediately.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var data json.RawMessage
	op := func() error {
		d, err := c.post(ctx, payload)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		data = d
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInitial
	policy.MaxInterval = c.cfg.RetryMax
	policy.MaxElapsedTime = 2 * time.Minute
	var b backoff.BackOff = policy
	if c.cfg.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, c.cfg.MaxRetries)
	}

	notify := func(err error, wait time.Duration) {
		c.log.WithContext(ctx).Warnw("shopify request retry", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Shopify-Access-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var gr gqlResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if len(gr.Errors) > 0 {
		for _, ge := range gr.Errors {
			if ge.Extensions.Code == "THROTTLED" {
				return nil, fmt.Errorf("%w: %w", ErrThrottled, &ResponseError{Errors: gr.Errors})
			}
		}
		return nil, &ResponseError{Errors: gr.Errors}
	}
	return gr.Data, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrThrottled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var re *ResponseError
	if errors.As(err, &re) || errors.Is(err, errMalformed) {
		return false
	}
	// transport failure; context errors stop the retry loop on their own
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func joinUserErrors(ue []UserError) string {
	msgs := make([]string, len(ue))
	for i, e := range ue {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}
