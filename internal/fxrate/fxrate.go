// Package fxrate fetches the base-to-secondary exchange rate used for display
// conversion. Rates are cached for a refresh interval; when the endpoint is
// down the last good rate is served, then the configured fallback.
package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"bizdash/internal/clock"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// maxRetryBackoff caps how long a failed fetch suppresses the next attempt.
const maxRetryBackoff = time.Minute

type Config struct {
	URL       string
	Base      string
	Secondary string
	Fallback  decimal.Decimal
	Refresh   time.Duration
}

// Provider serves the current rate. It is safe for concurrent use.
type Provider struct {
	url       string
	base      string
	secondary string
	fallback  decimal.Decimal
	refresh   time.Duration
	http      *http.Client
	clock     clock.Clock
	fetches   singleflight.Group

	mu        sync.Mutex
	rate      decimal.Decimal
	fetchedAt time.Time
	hasRate   bool
	retryAt   time.Time
}

type ratesResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
}

func New(cfg Config, httpClient *http.Client, clk clock.Clock) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if clk == nil {
		clk = clock.NewReal(time.UTC)
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = time.Hour
	}
	return &Provider{
		url:       strings.TrimSpace(cfg.URL),
		base:      strings.ToUpper(cfg.Base),
		secondary: strings.ToUpper(cfg.Secondary),
		fallback:  cfg.Fallback,
		refresh:   cfg.Refresh,
		http:      httpClient,
		clock:     clk,
	}
}

// Rate returns the multiplier from base to secondary currency. Concurrent
// callers share one upstream fetch, which runs without holding the lock. After
// a failed fetch the cached or fallback rate is served until the retry backoff
// passes.
func (p *Provider) Rate(ctx context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	now := p.clock.Now()
	fresh := p.hasRate && now.Sub(p.fetchedAt) < p.refresh
	backingOff := now.Before(p.retryAt)
	rate := p.rate
	p.mu.Unlock()

	if fresh {
		return rate, nil
	}
	if p.url != "" && !backingOff {
		rate, err := p.fetchShared(ctx)
		if err == nil {
			return rate, nil
		}
		slog.WarnContext(ctx, "Exchange rate fetch failed",
			"component", "fxrate",
			"base", p.base,
			"secondary", p.secondary,
			"error", err)
	}
	return p.cachedOrFallback()
}

func (p *Provider) cachedOrFallback() (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasRate {
		return p.rate, nil
	}
	if p.fallback.IsPositive() {
		return p.fallback, nil
	}
	return decimal.Zero, ErrRateUnavailable
}

// Refresh forces a fetch regardless of the cached rate's age or backoff.
func (p *Provider) Refresh(ctx context.Context) error {
	if p.url == "" {
		return ErrRateUnavailable
	}
	_, err := p.fetchShared(ctx)
	return err
}

// fetchShared runs one shared fetch and records its outcome before any waiting
// caller returns.
func (p *Provider) fetchShared(ctx context.Context) (decimal.Decimal, error) {
	v, err, _ := p.fetches.Do("rate", func() (any, error) {
		rate, err := p.fetch(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()
		now := p.clock.Now()
		if err != nil {
			p.retryAt = now.Add(p.retryBackoff())
			return nil, err
		}
		p.rate, p.fetchedAt, p.hasRate = rate, now, true
		p.retryAt = time.Time{}
		return rate, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (p *Provider) retryBackoff() time.Duration {
	if p.refresh < maxRetryBackoff {
		return p.refresh
	}
	return maxRetryBackoff
}

func (p *Provider) fetch(ctx context.Context) (decimal.Decimal, error) {
	endpoint, err := url.Parse(p.url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse rates url: %w", err)
	}
	if p.base != "" {
		q := endpoint.Query()
		q.Set("base", p.base)
		endpoint.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("read rates response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("rates api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("decode rates: %w", err)
	}
	rate, ok := parsed.Rates[p.secondary]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate for %s: %w", p.secondary, ErrRateUnavailable)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %s for %s: %w", rate, p.secondary, ErrRateUnavailable)
	}
	return rate, nil
}
