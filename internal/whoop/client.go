package whoop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	workoutPath = "/developer/v1/activity/workout"
	pageLimit   = 25
)

// TokenProvider hands out access tokens. *Auth implements it.
type TokenProvider interface {
	EnsureValidToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Client is a WHOOP developer API client with retry on 429/5xx.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger

	attempts   uint
	retryDelay time.Duration
}

func NewClient(baseURL string, tokens TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:     logger,
		attempts:   4,
		retryDelay: time.Second,
	}
}

type retryableStatus struct {
	status int
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("retryable status %d", e.status)
}

// ListWorkouts returns every workout overlapping [start, end), following
// next_token pagination.
func (c *Client) ListWorkouts(ctx context.Context, start, end time.Time) ([]Workout, error) {
	token, err := c.tokens.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	var all []Workout
	nextToken := ""
	for page := 1; ; page++ {
		q := url.Values{
			"start": {start.UTC().Format(time.RFC3339)},
			"end":   {end.UTC().Format(time.RFC3339)},
			"limit": {strconv.Itoa(pageLimit)},
		}
		if nextToken != "" {
			q.Set("nextToken", nextToken)
		}

		body, newToken, err := c.get(ctx, token, workoutPath, q)
		if err != nil {
			return nil, fmt.Errorf("fetching workouts page %d: %w", page, err)
		}
		token = newToken

		wp, err := decodeWorkoutPage(body)
		if err != nil {
			return nil, fmt.Errorf("parsing workouts page %d: %w", page, err)
		}
		all = append(all, wp.Records...)

		if wp.NextToken == "" {
			break
		}
		if wp.NextToken == nextToken {
			c.logger.Warn("workout pagination returned the same next_token, stopping", "page", page, "next_token", nextToken)
			break
		}
		nextToken = wp.NextToken
	}

	c.logger.Info("fetched workouts from WHOOP", "count", len(all), "start", start.Format(time.RFC3339), "end", end.Format(time.RFC3339))
	return all, nil
}

// get performs an authenticated GET. A 401 triggers one forced refresh; the
// possibly-new token is returned so pagination keeps using it.
func (c *Client) get(ctx context.Context, token, path string, q url.Values) ([]byte, string, error) {
	status, body, err := c.doRequest(ctx, token, path, q)
	if err != nil {
		return nil, token, err
	}

	if status == http.StatusUnauthorized {
		c.logger.Info("access token rejected, forcing refresh")
		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			return nil, "", err
		}
		status, body, err = c.doRequest(ctx, token, path, q)
		if err != nil {
			return nil, token, err
		}
		if status == http.StatusUnauthorized {
			return nil, token, &AuthError{
				Reason: "token rejected after refresh",
				Err:    &APIError{Method: http.MethodGet, Path: path, StatusCode: status, Body: truncate(string(body), 200)},
			}
		}
	}

	if status < 200 || status >= 300 {
		c.logger.Error("API request failed", "path", path, "status", status, "response", truncate(string(body), 200))
		return nil, token, &APIError{Method: http.MethodGet, Path: path, StatusCode: status, Body: truncate(string(body), 200)}
	}
	return body, token, nil
}

func (c *Client) doRequest(ctx context.Context, token, path string, q url.Values) (int, []byte, error) {
	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	c.logger.Debug("whoop API request", "path", path, "query", q.Encode())

	var (
		status int
		body   []byte
	)
	requestStart := time.Now()
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
			}
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("sending request: %w", err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			status, body = resp.StatusCode, data

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return &retryableStatus{status: resp.StatusCode}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying whoop API request", "path", path, "attempt", n+1, "error", err)
		}),
	)

	c.logger.Debug("whoop API response", "path", path, "status", status, "bytes", len(body), "elapsed", time.Since(requestStart))

	var rs *retryableStatus
	if errors.As(err, &rs) {
		// Out of attempts; surface the last upstream response.
		return status, body, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return status, body, nil
}
