package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"farewatch/internal/domain"
	"farewatch/internal/idhash"
)

// HTTPSource fetches fares from a JSON search endpoint. Requests pass
// through a rate limiter shared across all routes so bursts of queries
// stay inside the provider's quota.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// HTTPSourceOptions configures an HTTPSource.
type HTTPSourceOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// MinInterval is the minimum gap between upstream requests.
	MinInterval time.Duration
}

func NewHTTPSource(opts HTTPSourceOptions) *HTTPSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = time.Second
	}
	return &HTTPSource{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		now:     time.Now,
	}
}

var _ Source = (*HTTPSource)(nil)

// fareResponse is the upstream search payload.
type fareResponse struct {
	Fares []struct {
		Origin          string  `json:"origin"`
		Destination     string  `json:"destination"`
		DepartureDate   string  `json:"departure_date"`
		Price           float64 `json:"price"`
		Currency        string  `json:"currency"`
		Airline         string  `json:"airline"`
		DurationMinutes int     `json:"duration_minutes"`
		Stops           int     `json:"stops"`
	} `json:"fares"`
}

// Fetch queries the provider for one route and date window. An empty
// result set yields a single sentinel-price record so the route's
// absence of availability is still observable downstream.
func (s *HTTPSource) Fetch(ctx context.Context, q Query) ([]domain.FareRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(s.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	params := u.Query()
	params.Set("origin", q.Route.Origin)
	params.Set("destination", q.Route.Destination)
	params.Set("depart_from", string(q.DepartFrom))
	params.Set("depart_to", string(q.DepartTo))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return []domain.FareRecord{s.sentinel(q, domain.PriceFetchError)}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return []domain.FareRecord{s.sentinel(q, domain.PriceFetchError)}, nil
	}

	var payload fareResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(payload.Fares) == 0 {
		return []domain.FareRecord{s.sentinel(q, domain.PriceNoFlights)}, nil
	}

	observed := s.now().UTC().UnixMilli()
	records := make([]domain.FareRecord, 0, len(payload.Fares))
	for _, f := range payload.Fares {
		rec := domain.FareRecord{
			Origin:          f.Origin,
			Destination:     f.Destination,
			DepartureDate:   domain.Date(f.DepartureDate),
			Price:           f.Price,
			Currency:        f.Currency,
			Airline:         f.Airline,
			DurationMinutes: f.DurationMinutes,
			Stops:           f.Stops,
			ObservedAt:      observed,
			CreatedAt:       observed,
		}
		rec.FareID = idhash.ComputeFareID(rec.Origin, rec.Destination,
			rec.DepartureDate, rec.ReturnDate, rec.Airline, observed)
		records = append(records, rec)
	}
	return records, nil
}

func (s *HTTPSource) sentinel(q Query, price float64) domain.FareRecord {
	observed := s.now().UTC().UnixMilli()
	rec := domain.FareRecord{
		Origin:        q.Route.Origin,
		Destination:   q.Route.Destination,
		DepartureDate: q.DepartFrom,
		Price:         price,
		ObservedAt:    observed,
		CreatedAt:     observed,
	}
	rec.FareID = idhash.ComputeFareID(rec.Origin, rec.Destination,
		rec.DepartureDate, "", "", observed)
	return rec
}
