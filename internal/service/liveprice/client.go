// Package liveprice queries the supplier search service for live room prices.
package liveprice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	"RoomArb/pkg/cache"
	httpx "RoomArb/pkg/http"
	"RoomArb/pkg/logger"
	"RoomArb/pkg/metrics"
	"RoomArb/pkg/util"
)

type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	CacheTTL        time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = 5
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
}

// Client implements repository.LivePriceSource. Lookups are cached, rate
// limited and guarded by a circuit breaker; it never retries on its own.
type Client struct {
	cfg     Config
	http    *httpx.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   cache.Service
	log     *logger.Logger
	metrics domrepo.Metrics
}

type Option func(*Client)

// WithCache puts lookups behind c. A nil cache disables caching.
func WithCache(c cache.Service) Option {
	return func(cl *Client) { cl.cache = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func New(cfg Config, opts ...Option) *Client {
	cfg.setDefaults()
	c := &Client{
		cfg: cfg,
		http: httpx.NewClient(
			httpx.WithTimeout(cfg.Timeout),
			httpx.WithHeader("X-Api-Key", cfg.APIKey),
		),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		metrics: metrics.Nop{},
	}
	for _, o := range opts {
		o(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "live_price",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNoAvailability) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

var errNoAvailability = errors.New("no availability")

type searchResponse struct {
	Available bool `json:"available"`
	Rooms     []struct {
		Price    float64 `json:"price"`
		Currency string  `json:"currency"`
		RoomType string  `json:"room_type"`
	} `json:"rooms"`
}

// cached wraps a lookup so a known "no availability" answer is cached too.
type cached struct {
	Found bool              `json:"found"`
	Price *models.LivePrice `json:"price,omitempty"`
}

// FetchLivePrice returns the cheapest room for the stay, or nil when the
// hotel has no availability.
func (c *Client) FetchLivePrice(ctx context.Context, hotelID string, checkIn, checkOut time.Time, adults int) (*models.LivePrice, error) {
	key := cache.GenerateKeyWithParams("live", hotelID, util.FormatDate(checkIn), util.FormatDate(checkOut), adults)
	if c.cache != nil {
		var hit cached
		if err := c.cache.Get(ctx, key, &hit); err == nil {
			return hit.Price, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("live price rate limit: %w", err)
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.search(ctx, hotelID, checkIn, checkOut, adults)
	})
	c.metrics.RecordLatency("live_price", time.Since(start).Seconds())

	var price *models.LivePrice
	switch {
	case errors.Is(err, errNoAvailability):
	case err != nil:
		c.metrics.RecordUpstreamError("live_price")
		c.log.Warn("live price lookup failed",
			logger.String("hotel_id", hotelID),
			logger.Error(err),
		)
		return nil, err
	default:
		price = out.(*models.LivePrice)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cached{Found: price != nil, Price: price}, c.cfg.CacheTTL); err != nil {
			c.log.Debug("live price cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return price, nil
}

func (c *Client) search(ctx context.Context, hotelID string, checkIn, checkOut time.Time, adults int) (*models.LivePrice, error) {
	var resp searchResponse
	err := c.http.SendAndParse(ctx, &httpx.RequestOptions{
		Method: httpx.MethodGet,
		URL:    c.cfg.BaseURL + "/search",
		QueryParams: map[string][]string{
			"hotel_id":  {hotelID},
			"check_in":  {util.FormatDate(checkIn)},
			"check_out": {util.FormatDate(checkOut)},
			"adults":    {strconv.Itoa(adults)},
		},
	}, &resp)
	if err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, errNoAvailability
		}
		return nil, err
	}
	if !resp.Available || len(resp.Rooms) == 0 {
		return nil, errNoAvailability
	}

	best := resp.Rooms[0]
	for _, r := range resp.Rooms[1:] {
		if r.Price > 0 && (best.Price <= 0 || r.Price < best.Price) {
			best = r
		}
	}
	if best.Price <= 0 {
		return nil, errNoAvailability
	}
	return &models.LivePrice{Price: best.Price, Currency: best.Currency, RoomType: best.RoomType}, nil
}

// State exposes the breaker state for health reporting.
func (c *Client) State() string { return c.breaker.State().String() }
