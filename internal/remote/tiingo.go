package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/tkarsten/tickersync/internal/models"
)

const (
	tiingoBaseURL = "https://api.tiingo.com"

	pricesEndpoint = "/tiingo/daily/%s/prices"

	requestTimeout     = 30 * time.Second
	healthCheckTimeout = 5 * time.Second

	// Tiingo's free tier allows roughly one request per second sustained.
	defaultRequestsPerSecond = 1
	defaultBurst             = 2
)

// TiingoClient implements Fetcher against the Tiingo end-of-day prices API.
type TiingoClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	apiKey      string
	logger      *slog.Logger
}

// TiingoOption customizes a TiingoClient.
type TiingoOption func(*TiingoClient)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(u string) TiingoOption {
	return func(c *TiingoClient) { c.baseURL = u }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) TiingoOption {
	return func(c *TiingoClient) { c.logger = l }
}

// WithRateLimit overrides the requests-per-second limit.
func WithRateLimit(rps int) TiingoOption {
	return func(c *TiingoClient) {
		c.rateLimiter = rate.NewLimiter(rate.Limit(rps), defaultBurst)
	}
}

// NewTiingoClient creates a Tiingo client authenticated with the given API key.
func NewTiingoClient(apiKey string, opts ...TiingoOption) (*TiingoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tiingo API key is required")
	}

	c := &TiingoClient{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
		baseURL:     tiingoBaseURL,
		apiKey:      apiKey,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// tiingoPrice mirrors one element of the Tiingo prices response. Numeric
// fields are kept as json.Number so the wire text reaches the decimal layer
// without a float round trip.
type tiingoPrice struct {
	Date     string      `json:"date"`
	Open     json.Number `json:"open"`
	High     json.Number `json:"high"`
	Low      json.Number `json:"low"`
	Close    json.Number `json:"close"`
	AdjClose json.Number `json:"adjClose"`
	Volume   json.Number `json:"volume"`
}

// Fetch implements Fetcher. Transient failures (429, 5xx, network errors)
// are retried with exponential backoff; client errors are surfaced
// immediately. A 200 with an empty body array means no data in range.
func (c *TiingoClient) Fetch(ctx context.Context, ticker string, iv models.Interval, freq models.Frequency) (models.Series, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	if ticker == "" {
		return nil, &FetchError{Ticker: ticker, Interval: iv, Err: fmt.Errorf("ticker cannot be empty")}
	}

	c.logger.Debug("fetching from tiingo",
		"ticker", ticker,
		"start", iv.Start.Format(models.DateLayout),
		"end", iv.End.Format(models.DateLayout),
		"frequency", freq.String())

	requestURL := c.buildPricesURL(ticker, iv, freq)

	var body []byte
	operation := func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		b, err := c.doRequest(ctx, requestURL)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && !se.retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialRetryDelay
	policy.MaxInterval = maxRetryDelay
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
	if err != nil {
		return nil, &FetchError{Ticker: ticker, Interval: iv, Err: err}
	}

	series, err := c.parsePrices(ticker, body)
	if err != nil {
		return nil, &FetchError{Ticker: ticker, Interval: iv, Err: err}
	}

	series.Sort()
	c.logger.Debug("tiingo fetch complete", "ticker", ticker, "bars", len(series))
	return series, nil
}

// HealthCheck implements Fetcher with a lightweight metadata probe.
func (c *TiingoClient) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(healthCtx, http.MethodGet, c.baseURL+"/api/test", nil)
	if err != nil {
		return fmt.Errorf("build health check request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tiingo unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// buildPricesURL assembles the prices request for a ticker and range.
func (c *TiingoClient) buildPricesURL(ticker string, iv models.Interval, freq models.Frequency) string {
	q := url.Values{}
	q.Set("startDate", iv.Start.Format(models.DateLayout))
	q.Set("endDate", iv.End.Format(models.DateLayout))
	q.Set("resampleFreq", freq.String())
	q.Set("format", "json")

	return c.baseURL + fmt.Sprintf(pricesEndpoint, url.PathEscape(ticker)) + "?" + q.Encode()
}

// doRequest performs one GET and returns the body, or a statusError for
// non-success responses.
func (c *TiingoClient) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}
	}
	return body, nil
}

// parsePrices converts a Tiingo response body into a validated series.
func (c *TiingoClient) parsePrices(ticker string, body []byte) (models.Series, error) {
	var prices []tiingoPrice
	if err := json.Unmarshal(body, &prices); err != nil {
		return nil, fmt.Errorf("parse prices response: %w", err)
	}

	series := make(models.Series, 0, len(prices))
	for _, p := range prices {
		day, err := parseTiingoDate(p.Date)
		if err != nil {
			return nil, err
		}

		bar, err := models.NewBar(day,
			p.Open.String(), p.High.String(), p.Low.String(),
			p.Close.String(), p.AdjClose.String(), p.Volume.String(), ticker)
		if err != nil {
			c.logger.Warn("skipping malformed bar",
				"ticker", ticker,
				"date", p.Date,
				"error", err)
			continue
		}
		series = append(series, *bar)
	}
	return series, nil
}

// parseTiingoDate accepts the RFC 3339 timestamps Tiingo emits and plain
// dates, normalizing both to a UTC calendar day.
func parseTiingoDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return models.Day(t), nil
	}
	t, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q in response: %w", s, err)
	}
	return t, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
