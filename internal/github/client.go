// Package github speaks the GitHub-compatible forge API: authenticated
// requests, Link-header pagination, rate-limit handling, and retry with
// backoff. Responses decode into google/go-github wire structs.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forgevault/github-backup/internal/config"
)

// DefaultAPIBase is the public GitHub API endpoint; policies may
// override it through properties.api_url for GitHub Enterprise.
const DefaultAPIBase = "https://api.github.com"

const (
	userAgent  = "forgevault/github-backup"
	apiVersion = "2022-11-28"
	apiAccept  = "application/vnd.github.v3+json"

	maxAttempts = 5
)

// Client is a shared, immutable handle over the HTTP connection pool.
// Credentials are attached per request, never stored.
type Client struct {
	http *http.Client

	// retryBase is the first backoff delay; tests shorten it.
	retryBase time.Duration
	// sleep suspends until the duration elapses or the context is
	// cancelled; tests replace it to avoid real rate-limit waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client over the given HTTP client, which may be
// nil for a default with a sane timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		http:      httpClient,
		retryBase: 500 * time.Millisecond,
		sleep:     sleepCtx,
	}
}

// Get fetches a single JSON document.
func (c *Client) Get(ctx context.Context, url string, creds config.Credentials, v any) error {
	resp, err := c.do(ctx, url, creds)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode the forge response for %s: %w", url, err)
	}
	return nil
}

// ForEachPage walks a paginated collection: it fetches the URL, decodes
// a JSON array of T, invokes fn for every element, and follows the
// Link rel="next" chain until it ends. Pages are fetched lazily; fn
// returning an error stops the walk.
func ForEachPage[T any](ctx context.Context, c *Client, url string, creds config.Credentials, fn func(T) error) error {
	next := url
	for next != "" {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := c.do(ctx, next, creds)
		if err != nil {
			return err
		}

		var page []T
		err = json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode the forge response for %s: %w", next, err)
		}

		for _, item := range page {
			if err := fn(item); err != nil {
				return err
			}
		}

		next = nextLink(resp.Header.Get("Link"))
	}
	return nil
}

// do issues a GET and applies the retry policy: transport errors and
// 5xx responses retry with exponential backoff and full jitter; a 403
// with an exhausted rate limit sleeps until the advertised reset and
// retries exactly once; 401 and remaining 4xx are terminal.
func (c *Client) do(ctx context.Context, url string, creds config.Credentials) (*http.Response, error) {
	var lastErr error
	rateLimited := false

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoffDelay(c.retryBase, attempt)); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		req.Header.Set("Accept", apiAccept)
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		req.Header.Set("User-Agent", userAgent)
		applyCredentials(req, creds)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", url, err)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil

		case resp.StatusCode == http.StatusUnauthorized:
			drain(resp)
			return nil, &AuthError{URL: url}

		case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
			drain(resp)
			if rateLimited {
				return nil, &RateLimitError{URL: url}
			}
			rateLimited = true
			if err := c.sleep(ctx, untilReset(resp.Header.Get("X-RateLimit-Reset"), time.Now())); err != nil {
				return nil, err
			}
			// The reset sleep replaces the backoff delay for this
			// retry.
			attempt--

		case resp.StatusCode >= 500:
			lastErr = &StatusError{URL: url, StatusCode: resp.StatusCode, Body: snippet(resp)}

		default:
			return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: snippet(resp)}
		}
	}

	return nil, fmt.Errorf("giving up on %s after %d attempts: %w", url, maxAttempts, lastErr)
}

func applyCredentials(req *http.Request, creds config.Credentials) {
	switch creds.Kind {
	case config.CredentialToken:
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	case config.CredentialUsernamePassword:
		req.SetBasicAuth(creds.Username, creds.Password)
	}
}

// nextLink extracts the rel="next" URL from an RFC 5988 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		url := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, param := range segments[1:] {
			param = strings.TrimSpace(param)
			if param == `rel="next"` || param == "rel=next" {
				return url
			}
		}
	}
	return ""
}

// untilReset computes how long to sleep for an X-RateLimit-Reset epoch
// timestamp. A malformed or past timestamp sleeps briefly rather than
// hammering the API.
func untilReset(header string, now time.Time) time.Duration {
	epoch, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return time.Second
	}
	d := time.Unix(epoch, 0).Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d
}

// backoffDelay returns a full-jitter exponential delay for the given
// retry attempt (1-based).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	ceiling := base << (attempt - 1)
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func snippet(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()
	return strings.TrimSpace(string(body))
}
