package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"moorelink-bot/internal/models"
)

// ErrUnsupportedPlatform means no fetcher is registered for the platform
// code.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Fetcher retrieves the latest posts of one tracked account on one platform,
// newest first. Implementations return at least as many candidates as the
// caller may deliver so the seen-post filter has room to drop duplicates.
type Fetcher interface {
	Fetch(ctx context.Context, account string) ([]models.Post, error)
}

// Dispatcher routes fetches by platform code and caps result size.
type Dispatcher struct {
	fetchers map[string]Fetcher
	limit    int
	log      *slog.Logger
}

func NewDispatcher(limit int, log *slog.Logger) *Dispatcher {
	return &Dispatcher{fetchers: make(map[string]Fetcher), limit: limit, log: log}
}

func (d *Dispatcher) Register(platform string, f Fetcher) {
	d.fetchers[platform] = f
}

// Supported reports whether a fetcher is registered for the platform.
func (d *Dispatcher) Supported(platform string) bool {
	_, ok := d.fetchers[platform]
	return ok
}

func (d *Dispatcher) Fetch(ctx context.Context, platform, account string) ([]models.Post, error) {
	f, ok := d.fetchers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}

	start := time.Now()
	posts, err := f.Fetch(ctx, account)
	if err != nil {
		d.log.Warn("fetch failed", "platform", platform, "account", account, "error", err)
		return nil, err
	}
	if d.limit > 0 && len(posts) > d.limit {
		posts = posts[:d.limit]
	}
	d.log.Info("fetch done", "platform", platform, "account", account,
		"posts", len(posts), "took", time.Since(start))
	return posts, nil
}

// ---------- shared HTTP plumbing -------------------------------------------

const (
	requestTimeout = 30 * time.Second
	maxRetries     = 2
)

// getJSON performs a GET with retries on throttling and upstream errors and
// decodes the body into out.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 1500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, body)
			if retryableStatus(resp.StatusCode) {
				continue
			}
			return lastErr
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
