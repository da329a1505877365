// Package paysync pushes catalog prices to the payment-provider sync job
// and returns the provider price ids it created.
package paysync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/funnel-readiness/internal/model"
	"github.com/sells-group/funnel-readiness/internal/resilience"
)

// ErrNotConfigured is returned when no sync job URL is set.
var ErrNotConfigured = eris.New("paysync: base url not configured")

// Options configures the sync client.
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit rate.Limit // requests per second
	Burst     int
	BatchSize int
	Retry     resilience.RetryConfig

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client calls the sync job over HTTP with rate limiting and retries.
type Client struct {
	baseURL   string
	apiKey    string
	batchSize int
	retry     resilience.RetryConfig
	http      *http.Client
	limiter   *rate.Limiter
}

// New creates a Client, filling unset options with defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		batchSize: opts.BatchSize,
		retry:     opts.Retry,
		http:      client,
		limiter:   rate.NewLimiter(opts.RateLimit, opts.Burst),
	}
}

type syncRequest struct {
	Prices []model.Price `json:"prices"`
}

type syncResult struct {
	PriceID       string `json:"priceId"`
	StripePriceID string `json:"stripePriceId"`
}

type syncResponse struct {
	Results []syncResult `json:"results"`
}

// Sync sends prices in batches and returns price id → provider price id.
// Every requested price must come back with a provider id.
func (c *Client) Sync(ctx context.Context, prices []model.Price) (map[string]string, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	out := make(map[string]string, len(prices))
	for start := 0; start < len(prices); start += c.batchSize {
		batch := prices[start:min(start+c.batchSize, len(prices))]

		results, err := resilience.Do(ctx, c.retry, "paysync.sync", func(ctx context.Context) ([]syncResult, error) {
			return c.post(ctx, batch)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "paysync: sync batch of %d prices", len(batch))
		}
		for _, r := range results {
			if r.PriceID != "" && r.StripePriceID != "" {
				out[r.PriceID] = r.StripePriceID
			}
		}
	}

	var missing []string
	for _, p := range prices {
		if _, ok := out[p.ID]; !ok {
			missing = append(missing, p.ID)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("paysync: no provider price returned for %s", strings.Join(missing, ", "))
	}

	zap.L().Info("prices synced", zap.Int("count", len(out)))
	return out, nil
}

func (c *Client) post(ctx context.Context, prices []model.Price) ([]syncResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "paysync: rate limiter wait")
	}

	body, err := json.Marshal(syncRequest{Prices: prices})
	if err != nil {
		return nil, eris.Wrap(err, "paysync: marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prices/sync", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "paysync: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := eris.Errorf("paysync: sync job returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, &resilience.TransientError{
				Err:        statusErr,
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		return nil, statusErr
	}

	var decoded syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, eris.Wrap(err, "paysync: decode response")
	}
	return decoded.Results, nil
}

// parseRetryAfter reads the delta-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
