package github

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const defaultBaseURL = "https://api.github.com"

// Client is a GitHub API client with retry logic.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	attempts   uint
	retryDelay time.Duration
}

// ResolveToken tries to resolve a GitHub token from multiple sources:
// 1. `gh auth token` CLI command
// 2. GITHUB_TOKEN environment variable
// 3. Config file value passed in
func ResolveToken(configToken string) (string, error) {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err == nil {
		token := strings.TrimSpace(string(out))
		if token != "" {
			return token, nil
		}
	}

	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		return v, nil
	}

	if configToken != "" {
		return configToken, nil
	}

	return "", fmt.Errorf("no GitHub token found: run 'gh auth login', set GITHUB_TOKEN, or add token to [github] config")
}

// ResolveRepo picks the target repository: explicit value, then
// GITHUB_REPOSITORY, then the repo gh infers from the working directory.
func ResolveRepo(repo string) (string, error) {
	if repo != "" {
		return validateRepo(repo)
	}
	if v := os.Getenv("GITHUB_REPOSITORY"); v != "" {
		return validateRepo(v)
	}

	out, err := exec.Command("gh", "repo", "view", "--json", "nameWithOwner", "-q", ".nameWithOwner").Output()
	if err == nil {
		if r := strings.TrimSpace(string(out)); r != "" {
			return validateRepo(r)
		}
	}

	return "", fmt.Errorf("no repository given: pass --repo owner/name or set GITHUB_REPOSITORY")
}

func validateRepo(repo string) (string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid repository %q: expected owner/name", repo)
	}
	return repo, nil
}

// NewClient creates a new GitHub API client.
func NewClient(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
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
	return fmt.Sprintf("GitHub API returned status %d", e.status)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.baseURL + path

	var (
		status   int
		respBody []byte
	)
	err := retry.Do(
		func() error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, reader)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
			}
			req.Header.Set("Authorization", "Bearer "+c.token)
			req.Header.Set("Accept", "application/vnd.github+json")
			req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("sending request: %w", err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			status, respBody = resp.StatusCode, data

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
			c.logger.Debug("retrying GitHub API request", "method", method, "path", path, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("GitHub API request cancelled: %w", ctxErr)
		}
		var rs *retryableStatus
		if errors.As(err, &rs) {
			c.logger.Error("GitHub API failed after retries", "method", method, "path", path, "status", rs.status)
			return nil, fmt.Errorf("GitHub API returned status %d after %d attempts", rs.status, c.attempts)
		}
		c.logger.Error("GitHub API transport error", "method", method, "path", path, "error", err)
		return nil, err
	}

	if status < 200 || status >= 300 {
		c.logger.Error("GitHub API error", "method", method, "path", path, "status", status, "response", truncate(string(respBody), 200))
		return nil, fmt.Errorf("GitHub API error (status %d): %s", status, truncate(string(respBody), 200))
	}

	return respBody, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
