package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LiveRates is a RateProvider that refreshes its table from a real-time
// rates endpoint on an interval, seeded with a static table so conversion
// works before the first successful refresh or while the endpoint is down.
type LiveRates struct {
	url      string
	interval time.Duration
	client   *http.Client
	limiter  *rate.Limiter

	mu    sync.RWMutex
	table map[string]float64
}

// ratesResponse is the wire format of the rates endpoint.
type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// NewLiveRates creates a live provider seeded from the static table.
func NewLiveRates(url string, interval time.Duration, seed StaticRates) *LiveRates {
	table := make(map[string]float64, len(seed))
	for code, r := range seed {
		table[strings.ToUpper(code)] = r
	}

	if interval <= 0 {
		interval = time.Hour
	}

	return &LiveRates{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 15 * time.Second},
		// One refresh per interval regardless of how often Run wakes up.
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		table:   table,
	}
}

// Compile-time interface check.
var _ RateProvider = (*LiveRates)(nil)

// Rate returns the most recently known rate for the currency code.
func (l *LiveRates) Rate(code string) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.table[strings.ToUpper(code)]
	if !ok || r <= 0 {
		return 0, false
	}
	return r, true
}

// Run refreshes the table until the context is cancelled. A failed refresh
// keeps the previous table; the next tick retries naturally.
func (l *LiveRates) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// Refresh eagerly so a stale seed does not survive a full interval.
	_ = l.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = l.Refresh(ctx)
		}
	}
}

// Refresh fetches the rates endpoint once and swaps in the new table.
func (l *LiveRates) Refresh(ctx context.Context) error {
	if !l.limiter.Allow() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return fmt.Errorf("build rates request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}

	var payload ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode rates: %w", err)
	}
	if len(payload.Rates) == 0 {
		return fmt.Errorf("decode rates: empty table")
	}

	table := make(map[string]float64, len(payload.Rates))
	for code, r := range payload.Rates {
		if r > 0 {
			table[strings.ToUpper(code)] = r
		}
	}

	l.mu.Lock()
	l.table = table
	l.mu.Unlock()
	return nil
}
