// Package power fetches monthly point data from the NASA POWER API.
package power

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/solar-data-pipeline/internal/solar"
)

const (
	DefaultBaseURL   = "https://power.larc.nasa.gov/api/temporal/monthly/point"
	DefaultParameter = "ALLSKY_SFC_SW_DWN"
	DefaultCommunity = "RE"
	DefaultYear      = 2023

	DefaultAttempts         = 3
	DefaultDelay            = 200 * time.Millisecond
	DefaultBreakerThreshold = 15
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL   string
	Parameter string
	Community string
	StartYear int
	EndYear   int

	Attempts int
	Delay    time.Duration

	// BreakerThreshold is the number of consecutive failed attempts that
	// opens the circuit.
	BreakerThreshold int

	Logger *zap.Logger
}

// Client implements the solar.Source interface for NASA POWER.
type Client struct {
	name      string
	baseURL   string
	parameter string
	community string
	startYear int
	endYear   int
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Parameter == "" {
		opts.Parameter = DefaultParameter
	}
	if opts.Community == "" {
		opts.Community = DefaultCommunity
	}
	if opts.StartYear == 0 {
		opts.StartYear = DefaultYear
	}
	if opts.EndYear == 0 {
		opts.EndYear = opts.StartYear
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = DefaultBreakerThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	threshold := uint32(opts.BreakerThreshold)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nasa-power",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		name:      "nasa-power",
		baseURL:   opts.BaseURL,
		parameter: opts.Parameter,
		community: opts.Community,
		startYear: opts.StartYear,
		endYear:   opts.EndYear,
		httpCfg: HTTPClientConfig{
			Client: client,
			Retry: RetryConfig{
				MaxAttempts: opts.Attempts,
				Delay:       opts.Delay,
			},
		},
		circuit: cb,
	}
}

func (c *Client) Name() string {
	return c.name
}

// URL returns the request URL for loc.
func (c *Client) URL(loc solar.Location) string {
	values := url.Values{}
	values.Set("parameters", c.parameter)
	values.Set("community", c.community)
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	values.Set("start", strconv.Itoa(c.startYear))
	values.Set("end", strconv.Itoa(c.endYear))
	values.Set("format", "JSON")

	return fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
}

// MonthlyIrradiance returns the month values reported for loc. Only keys
// naming months 01-12 are kept.
func (c *Client) MonthlyIrradiance(ctx context.Context, loc solar.Location) (solar.Months, error) {
	u := c.URL(loc)

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u, nil)
	}

	decode := func(resp *http.Response) (solar.Months, error) {
		var payload struct {
			Properties struct {
				Parameter map[string]map[string]json.Number `json:"parameter"`
			} `json:"properties"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}

		values := payload.Properties.Parameter[c.parameter]
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: properties.parameter.%s missing", ErrEmptyPayload, c.parameter)
		}

		raw := make(map[string]string, len(values))
		for k, v := range values {
			raw[k] = v.String()
		}
		months := solar.FilterMonths(raw)
		if len(months) == 0 {
			return nil, fmt.Errorf("%w: no monthly keys in %s", ErrEmptyPayload, c.parameter)
		}
		return months, nil
	}

	return doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest, decode)
}
