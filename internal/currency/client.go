package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "https://open.er-api.com/v6"
	DefaultTimeout = 5 * time.Second

	maxResponseBytes = 1 << 20
)

// HTTPRateProvider talks to an exchangerate-api style endpoint. Both the
// keyed v6 API (conversion_rates) and the open endpoint (rates) are
// understood.
type HTTPRateProvider struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	group   singleflight.Group
}

// ClientOption customizes an HTTPRateProvider.
type ClientOption func(*HTTPRateProvider)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(p *HTTPRateProvider) { p.client = c }
}

// WithAPIKey sets the key used by the keyed v6 API.
func WithAPIKey(key string) ClientOption {
	return func(p *HTTPRateProvider) { p.apiKey = strings.TrimSpace(key) }
}

// WithTimeout bounds every upstream fetch.
func WithTimeout(d time.Duration) ClientOption {
	return func(p *HTTPRateProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewHTTPRateProvider(baseURL string, opts ...ClientOption) *HTTPRateProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &HTTPRateProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.timeout}
	}
	return p
}

type ratesResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
	Rates           map[string]decimal.Decimal `json:"rates"`
}

// FetchRates returns the table quoted against base. Concurrent callers
// asking for the same base share one upstream request; each caller still
// gives up when its own context ends.
func (p *HTTPRateProvider) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	base = core.NormalizeUnit(base)
	ch := p.group.DoChan(base, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.fetch(fetchCtx, base)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			slog.WarnContext(ctx, "Exchange rate fetch failed", "base", base, "error", res.Err, "shared", res.Shared)
			return nil, res.Err
		}
		return res.Val.(map[string]decimal.Decimal), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch rates for %s: %w: %w", base, core.ErrRateProviderUnavailable, ctx.Err())
	}
}

func (p *HTTPRateProvider) endpoint(base string) string {
	if p.apiKey != "" {
		return fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, base)
	}
	return fmt.Sprintf("%s/latest/%s", p.baseURL, base)
}

func (p *HTTPRateProvider) fetch(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(base), nil)
	if err != nil {
		return nil, fmt.Errorf("build rates request: %w: %w", core.ErrRateProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rates request: %w: %w", core.ErrRateProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("rates request: status %d: %w", resp.StatusCode, core.ErrRateProviderUnavailable)
	}

	var body ratesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rates: %w: %w", core.ErrRateProviderUnavailable, err)
	}
	if body.Result != "" && body.Result != "success" {
		return nil, fmt.Errorf("rates provider answered %q (%s): %w", body.Result, body.ErrorType, core.ErrRateProviderUnavailable)
	}

	rates := body.ConversionRates
	if len(rates) == 0 {
		rates = body.Rates
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("rates provider returned an empty table: %w", core.ErrRateProviderUnavailable)
	}

	slog.DebugContext(ctx, "Fetched exchange rates",
		"base", base,
		"units", len(rates),
		"duration_ms", time.Since(start).Milliseconds())

	return rates, nil
}
