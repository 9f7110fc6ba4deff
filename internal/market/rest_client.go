package market

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"artha-ledger-go/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxRetries = 3

// RestClient fetches quotes from an HTTP price service.
// It implements PriceSource.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff time.Duration
}

// ensure RestClient implements the interface
var _ PriceSource = (*RestClient)(nil)

// NewRestClient creates a quote client for cfg.BaseURL.
func NewRestClient(cfg *config.Market, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(10 * time.Second)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger.Named("market"),
		limiter: limiter,
		backoff: time.Second,
	}
}

// Quote is the price service's answer for one symbol.
type Quote struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Day    int    `json:"day"`
}

// PriceAt returns the price of symbol on day.
func (c *RestClient) PriceAt(ctx context.Context, symbol string, day int) (decimal.Decimal, error) {
	req := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("day", strconv.Itoa(day)).
		SetResult(&Quote{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/quotes/{symbol}", req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	quote := resp.Result().(*Quote)
	price, err := decimal.NewFromString(quote.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q for %s: %w", quote.Price, symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s quoted at %s", ErrPriceUnavailable, symbol, quote.Price)
	}
	return price, nil
}

// Prices returns the price of every quoted symbol on day. Symbols the service
// does not know are absent from the map.
func (c *RestClient) Prices(ctx context.Context, symbols []string, day int) (map[string]decimal.Decimal, error) {
	var quotes []Quote
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		SetQueryParam("day", strconv.Itoa(day)).
		SetResult(&quotes)

	if _, err := c.doRequest(ctx, http.MethodGet, "/quotes", req); err != nil {
		return nil, fmt.Errorf("failed to get quotes: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		price, err := decimal.NewFromString(q.Price)
		if err != nil || !price.IsPositive() {
			c.logger.Warn("Skipping invalid quote", zap.String("symbol", q.Symbol), zap.String("price", q.Price))
			continue
		}
		out[q.Symbol] = price
	}
	return out, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusNotFound:
				return nil, ErrPriceUnavailable
			case statusCode == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= 500:
				shouldRetry = true
			}
		} else {
			// network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}
		if i == maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
	}
	return nil, fmt.Errorf("request failed after %d attempts with status %s", maxRetries, resp.Status())
}
