// Package testutil provides testing utilities for the OTA client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock provider endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockProvider is a configurable mock hotel-inventory API for testing. All
// provider endpoints are POST with JSON bodies wrapped in a "data" envelope.
type MockProvider struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	RequestBodies     map[string][]string
	LastAuthorization string
}

// NewMockProvider creates a new mock provider server.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		RequestBodies: make(map[string][]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastAuthorization = r.Header.Get("Authorization")
		mock.RequestBodies[r.URL.Path] = append(mock.RequestBodies[r.URL.Path], string(body))
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockProvider) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockProvider) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestBodies = make(map[string][]string)
	m.LastAuthorization = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockProvider) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockProvider) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockProvider) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestBodies returns the raw request bodies seen on a path.
func (m *MockProvider) GetRequestBodies(path string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.RequestBodies[path]))
	copy(out, m.RequestBodies[path])
	return out
}

// defaultHandler answers any unconfigured path with an empty data envelope.
func (m *MockProvider) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"data": {}}`))
}

// NewSerpBody builds a region-search response body: one hotel stub per
// (id, firstDailyPrice) pair.
func NewSerpBody(hotels map[string]string) string {
	type rate struct {
		DailyPrices []string `json:"daily_prices"`
	}
	type hotel struct {
		ID    string `json:"id"`
		Rates []rate `json:"rates"`
	}

	var list []hotel
	for id, price := range hotels {
		list = append(list, hotel{ID: id, Rates: []rate{{DailyPrices: []string{price}}}})
	}

	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{"hotels": list},
	})
	return string(body)
}

// NewInfoBody builds a single hotel-info response body.
func NewInfoBody(id, name string) string {
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{"id": id, "name": name},
	})
	return string(body)
}

// NewInfoBatchBody builds a batched hotel-info response body containing one
// record per identifier.
func NewInfoBatchBody(ids []string) string {
	type hotel struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	hotels := make([]hotel, 0, len(ids))
	for _, id := range ids {
		hotels = append(hotels, hotel{ID: id, Name: "Hotel " + id})
	}
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{"hotels": hotels},
	})
	return string(body)
}

// NewRatesBody builds a room-rate response body for one hotel with the given
// (meal, dailyPrice) line items, all for the same standard double room.
func NewRatesBody(hotelID string, lines [][2]string) string {
	items := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		items = append(items, map[string]any{
			"room_name":    "Standard Room",
			"meal":         line[0],
			"daily_prices": []string{line[1]},
			"room_data_trans": map[string]any{
				"main_room_type": "Standard",
				"main_name":      "Standard Room",
				"bathroom":       "private bathroom",
				"bedding_type":   "double",
			},
		})
	}
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"hotels": []map[string]any{{"id": hotelID, "rates": items}},
		},
	})
	return string(body)
}

// NewOKResponse creates a standard 200 OK response.
func NewOKResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 response for an unknown hotel.
func NewNotFoundResponse(hotelID string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf(`{"error": "hotel %s not found"}`, hotelID),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
