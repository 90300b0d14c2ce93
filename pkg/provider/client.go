// Package provider implements the HTTP client for the upstream hotel
// inventory API: region search, per-hotel room rates, and static hotel info,
// with error classification and a pluggable retry policy.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for provider client operations.
var (
	otaRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_requests_total",
		Help: "Total provider requests by endpoint and status",
	}, []string{"endpoint", "status"})

	otaRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ota_request_duration_seconds",
		Help:    "Provider request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15},
	}, []string{"endpoint"})

	otaErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_errors_total",
		Help: "Total provider errors by class",
	}, []string{"class"})
)

// Provider endpoint paths.
const (
	EndpointSearchRegion   = "/search/serp/region/"
	EndpointHotelPage      = "/search/hp/"
	EndpointHotelInfo      = "/hotel/info/"
	EndpointHotelInfoBatch = "/hotel/info/batch/"
)

// Credentials holds the API key pair used for Basic authentication. Supplied
// by external configuration, never embedded.
type Credentials struct {
	KeyID  string
	APIKey string
}

// basicAuth returns the Authorization header value for the key pair.
func (c Credentials) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.KeyID+":"+c.APIKey))
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the provider API root, e.g. "https://api.worldota.net/api/b2b/v3".
	BaseURL string

	// Credentials authenticate every request.
	Credentials Credentials

	// Timeout bounds each provider call. Expiry surfaces as a timeout-class
	// provider error for the affected identifier.
	Timeout time.Duration

	// Retry is the retry strategy. Defaults to NoRetry.
	Retry RetryPolicy

	// HTTPClient overrides the transport (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string, creds Credentials) Config {
	return Config{
		BaseURL:     baseURL,
		Credentials: creds,
		Timeout:     15 * time.Second,
		Retry:       NoRetry{},
	}
}

// Client is the hotel inventory API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	retry      RetryPolicy
	logger     zerolog.Logger
}

// New creates a new provider client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Credentials.KeyID == "" || cfg.Credentials.APIKey == "" {
		return nil, fmt.Errorf("credentials are required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = NoRetry{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := log.With().Str("component", "provider-client").Logger()

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		creds:      cfg.Credentials,
		retry:      cfg.Retry,
		logger:     logger,
	}, nil
}

// post issues one JSON POST to a provider endpoint and decodes the response
// into out. Non-2xx statuses and transport failures come back as *Error.
func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	startTime := time.Now()
	defer func() {
		otaRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Msg("Executing provider request")

	return c.retry.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", c.creds.basicAuth())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			class := classifyErr(err)
			otaErrorsTotal.WithLabelValues(string(class)).Inc()
			otaRequestsTotal.WithLabelValues(endpoint, string(class)).Inc()
			c.logger.Warn().Err(err).
				Str("endpoint", endpoint).
				Str("error_class", string(class)).
				Msg("Provider request failed")
			return &Error{Endpoint: endpoint, Class: class, Message: err.Error(), Err: err}
		}
		defer resp.Body.Close()

		otaRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			class := classifyStatus(resp.StatusCode)
			otaErrorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Provider request error")
			return &Error{
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode,
				Class:      class,
				Message:    resp.Status,
			}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			class := classifyErr(err)
			otaErrorsTotal.WithLabelValues(string(class)).Inc()
			return &Error{Endpoint: endpoint, Class: class, Message: "read response body", Err: err}
		}

		if err := json.Unmarshal(data, out); err != nil {
			// Malformed body counts as a provider failure, not a caller bug.
			otaErrorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
			return &Error{
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode,
				Class:      ErrorClassServer,
				Message:    "malformed response body",
				Err:        err,
			}
		}
		return nil
	}, func(err error) ErrorClass {
		var perr *Error
		if errors.As(err, &perr) {
			return perr.Class
		}
		return classifyErr(err)
	})
}

// SearchRegion performs the broad region search and returns hotel stubs with
// their provisional price (first daily rate observed).
func (c *Client) SearchRegion(ctx context.Context, criteria SearchCriteria) ([]HotelStub, error) {
	criteria, err := criteria.Normalize()
	if err != nil {
		return nil, err
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	var resp serpResponse
	if err := c.post(ctx, EndpointSearchRegion, criteria, &resp); err != nil {
		return nil, err
	}

	stubs := make([]HotelStub, 0, len(resp.Data.Hotels))
	for _, h := range resp.Data.Hotels {
		stub := HotelStub{ID: h.ID}
		if len(h.Rates) > 0 {
			stub.Price = (&RateLineItem{DailyPrices: h.Rates[0].DailyPrices}).DailyPrice()
		}
		stubs = append(stubs, stub)
	}

	c.logger.Info().
		Int("hotels", len(stubs)).
		Int64("region_id", criteria.RegionID).
		Msg("Region search complete")

	return stubs, nil
}

// FetchRooms retrieves the flat rate line items (and room groups) for one
// hotel. The returned rates feed the room aggregator unchanged.
func (c *Client) FetchRooms(ctx context.Context, hotelID string, criteria SearchCriteria) (*RatedHotel, error) {
	criteria, err := criteria.Normalize()
	if err != nil {
		return nil, err
	}

	// The hotel page endpoint takes a single id in place of region_id/ids.
	body := struct {
		SearchCriteria
		ID string `json:"id"`
	}{SearchCriteria: criteria, ID: hotelID}
	body.RegionID = 0
	body.HotelIDs = nil

	var resp ratesResponse
	if err := c.post(ctx, EndpointHotelPage, body, &resp); err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.HotelID = hotelID
		}
		return nil, err
	}
	if len(resp.Data.Hotels) == 0 {
		return nil, &Error{
			HotelID:  hotelID,
			Endpoint: EndpointHotelPage,
			Class:    ErrorClassServer,
			Message:  "no hotel entry in response",
		}
	}
	return &resp.Data.Hotels[0], nil
}

// HotelInfo retrieves the static record for one hotel.
func (c *Client) HotelInfo(ctx context.Context, hotelID, language string) (*HotelInfo, error) {
	body := struct {
		ID       string `json:"id"`
		Language string `json:"language"`
	}{ID: hotelID, Language: language}

	var resp infoResponse
	if err := c.post(ctx, EndpointHotelInfo, body, &resp); err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.HotelID = hotelID
		}
		return nil, err
	}
	return &resp.Data, nil
}

// HotelInfoBatch retrieves static records for up to 300 hotels in one call.
func (c *Client) HotelInfoBatch(ctx context.Context, ids []string, criteria SearchCriteria) ([]HotelInfo, error) {
	criteria, err := criteria.Normalize()
	if err != nil {
		return nil, err
	}
	if len(ids) > 300 {
		return nil, &ValidationError{Field: "ids", Reason: "at most 300 identifiers per batch"}
	}

	body := criteria
	body.RegionID = 0
	body.HotelIDs = ids

	var resp infoBatchResponse
	if err := c.post(ctx, EndpointHotelInfoBatch, body, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Hotels, nil
}
