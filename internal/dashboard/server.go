// Package dashboard serves the HTTP API and the live alert stream.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"farewatch/internal/domain"
	"farewatch/internal/storage"
)

// ConfigView is the sanitized config snapshot exposed to the UI.
// Secrets never appear here.
type ConfigView struct {
	Routes           []string `json:"routes"`
	ReferenceCcy     string   `json:"reference_currency"`
	TickInterval     string   `json:"tick_interval"`
	PercentThreshold float64  `json:"percent_threshold"`
	ZScoreThreshold  float64  `json:"zscore_threshold"`
	MinSamples       int      `json:"min_samples"`
	DedupeRetention  string   `json:"dedupe_retention"`
}

// Options configures a Server.
type Options struct {
	Fares        storage.FareStore
	Combinations storage.CombinationStore
	Alerts       storage.AlertStore
	Baselines    storage.BaselineStore
	PriceHistory storage.PriceHistoryStore
	Hub          *Hub
	Config       ConfigView
	State        func() string
	Logger       zerolog.Logger

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps the echo instance and its dependencies.
type Server struct {
	echo *echo.Echo
	opts Options
}

func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, opts: opts}

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/flights", s.handleFlights)
	e.GET("/api/alerts", s.handleAlerts)
	e.GET("/api/city-pairs", s.handleCityPairs)
	e.GET("/api/price-history", s.handlePriceHistory)
	e.GET("/api/statistics", s.handleStatistics)
	e.GET("/api/config", s.handleConfig)
	if opts.Hub != nil {
		e.GET("/ws/alerts", func(c echo.Context) error {
			return opts.Hub.handle(c.Response(), c.Request())
		})
	}

	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = s.opts.ReadTimeout
	s.echo.Server.WriteTimeout = s.opts.WriteTimeout
	addr := fmt.Sprintf(":%d", s.opts.Port)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.opts.Hub != nil {
		s.opts.Hub.Close()
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if s.opts.State != nil {
		status["pipeline"] = s.opts.State()
	}
	return c.JSON(http.StatusOK, status)
}

// handleFlights lists fares for a route, optionally bounded by departure
// dates: /api/flights?route=IST-JFK&from=2026-09-01&to=2026-09-30
func (s *Server) handleFlights(c echo.Context) error {
	route, err := domain.ParseRouteKey(c.QueryParam("route"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	from := domain.Date(c.QueryParam("from"))
	to := domain.Date(c.QueryParam("to"))

	var fares []*domain.FareRecord
	if from != "" || to != "" {
		if !from.Valid() || !to.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "from and to must be YYYY-MM-DD")
		}
		fares, err = s.opts.Fares.GetByRouteAndDateRange(c.Request().Context(), route, from, to)
	} else {
		fares, err = s.opts.Fares.GetByRoute(c.Request().Context(), route)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Sentinel observations are bookkeeping, not display material.
	shown := make([]*domain.FareRecord, 0, len(fares))
	for _, f := range fares {
		if f.PriceValid() {
			shown = append(shown, f)
		}
	}
	return c.JSON(http.StatusOK, shown)
}

func (s *Server) handleAlerts(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	alerts, err := s.opts.Alerts.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, alerts)
}

// handleCityPairs lists round-trip combinations for a route, cheapest
// first.
func (s *Server) handleCityPairs(c echo.Context) error {
	route, err := domain.ParseRouteKey(c.QueryParam("route"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	combos, err := s.opts.Combinations.GetByRoute(c.Request().Context(), route)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, combos)
}

// handlePriceHistory returns normalized observation points for a route:
// /api/price-history?route=IST-JFK&from=<unix ms>&to=<unix ms>
// Omitted bounds default to the full recorded history.
func (s *Server) handlePriceHistory(c echo.Context) error {
	route, err := domain.ParseRouteKey(c.QueryParam("route"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start := int64(0)
	end := time.Now().UTC().UnixMilli()
	if v := c.QueryParam("from"); v != "" {
		if start, err = strconv.ParseInt(v, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be a unix millisecond timestamp")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if end, err = strconv.ParseInt(v, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be a unix millisecond timestamp")
		}
	}

	points, err := s.opts.PriceHistory.GetByRoute(c.Request().Context(), route, start, end)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, points)
}

// statisticsResponse aggregates store counts and per-route baselines.
type statisticsResponse struct {
	Fares        int64          `json:"fares"`
	Combinations int64          `json:"combinations"`
	Alerts       int64          `json:"alerts"`
	Baselines    []baselineView `json:"baselines"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

type baselineView struct {
	Route       string  `json:"route"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	SampleCount int64   `json:"sample_count"`
}

func (s *Server) handleStatistics(c echo.Context) error {
	ctx := c.Request().Context()

	fares, err := s.opts.Fares.Count(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	combos, err := s.opts.Combinations.Count(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	alerts, err := s.opts.Alerts.Count(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	baselines, err := s.opts.Baselines.List(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := statisticsResponse{
		Fares:        fares,
		Combinations: combos,
		Alerts:       alerts,
		GeneratedAt:  time.Now().UTC(),
	}
	for _, b := range baselines {
		resp.Baselines = append(resp.Baselines, baselineView{
			Route:       b.Origin + "-" + b.Destination,
			Mean:        b.Mean,
			StdDev:      b.StdDev(),
			SampleCount: b.SampleCount,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, s.opts.Config)
}
