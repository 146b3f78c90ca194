// Package discord is the rate-limited REST gateway used by every other
// component. Calls are issued one at a time; each response's budget headers
// decide whether the next call on the same bucket has to wait.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"discleanse/config"
	"discleanse/models"
	"discleanse/utils"
)

const (
	DefaultBaseURL      = "https://discord.com/api/v10"
	DefaultSafetyMargin = 100 * time.Millisecond
	DefaultMaxRetries   = 50
	DefaultTimeout      = 30 * time.Second

	userAgent       = "DiscordBot (https://github.com/discleanse/discleanse, 1.0)"
	maxResponseBody = 16 << 20
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	MaxRetries   int
	SafetyMargin time.Duration
	HTTPClient   *http.Client

	// Sleep and Now are overridable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Client issues authenticated calls and throttles itself from the responses.
type Client struct {
	http       *http.Client
	baseURL    string
	auth       string
	maxRetries int
	margin     time.Duration
	buckets    *bucketTable
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient checks the credential once and builds a Client.
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, &config.ConfigError{Key: config.KeyToken}
	}
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.SafetyMargin <= 0 {
		opts.SafetyMargin = DefaultSafetyMargin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Client{
		http:       opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		auth:       token,
		maxRetries: opts.MaxRetries,
		margin:     opts.SafetyMargin,
		buckets:    newBucketTable(opts.Now),
		sleep:      opts.Sleep,
	}, nil
}

// NewClientFromConfig builds a Client from the loaded configuration.
func NewClientFromConfig(cfg *models.Config) (*Client, error) {
	return NewClient(Options{
		BaseURL:      cfg.API.BaseURL,
		Token:        cfg.Token,
		Timeout:      cfg.API.Timeout,
		MaxRetries:   cfg.API.MaxRetries,
		SafetyMargin: cfg.API.SafetyMargin,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Call performs method on path. A non-nil body is sent as JSON; a non-nil out
// receives the decoded JSON response. 429s are retried transparently up to the
// configured bound.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
	}

	route := routeKey(method, path)
	for attempt := 0; ; attempt++ {
		if wait := c.buckets.reserve(route); wait > 0 {
			utils.Debug("discord", "ratelimit", fmt.Sprintf("bucket for %s exhausted, waiting %s", route, wait+c.margin))
			if err := c.sleep(ctx, wait+c.margin); err != nil {
				return err
			}
		}

		status, header, respBody, err := c.do(ctx, method, path, payload)
		if err != nil {
			return err
		}
		state := parseRateLimit(header)
		c.buckets.observe(route, state)

		if status == http.StatusTooManyRequests {
			if attempt >= c.maxRetries {
				return fmt.Errorf("%s %s: %w after %d attempts", method, path, ErrRateLimitExhausted, attempt+1)
			}
			wait := retryAfter(header, respBody)
			utils.Warn("discord", "ratelimit", fmt.Sprintf("rate limited on %s, waiting %s", route, wait+c.margin))
			if err := c.sleep(ctx, wait+c.margin); err != nil {
				return err
			}
			continue
		}

		if status < 200 || status > 299 {
			return newAPIError(method, path, status, respBody)
		}

		// The budget is spent: hold this caller so the next call is not rejected.
		if state.Exhausted() {
			utils.Debug("discord", "ratelimit", fmt.Sprintf("budget for %s spent, pausing %s", route, state.ResetAfter+c.margin))
			if err := c.sleep(ctx, state.ResetAfter+c.margin); err != nil {
				return err
			}
		}

		if status == http.StatusNoContent || out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
		return nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	utils.Debug("discord", "call", method+" "+path)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}
	return resp.StatusCode, resp.Header, body, nil
}
