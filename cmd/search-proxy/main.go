package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stayscout/ota-client/pkg/cache"
	"github.com/stayscout/ota-client/pkg/engine"
	"github.com/stayscout/ota-client/pkg/logging"
	"github.com/stayscout/ota-client/pkg/provider"
)

func main() {
	// Configuration from environment
	baseURL := getEnv("PROVIDER_BASE_URL", "https://api.worldota.net/api/b2b/v3")
	keyID := os.Getenv("PROVIDER_KEY_ID")
	apiKey := os.Getenv("PROVIDER_API_KEY")
	redisURL := getEnv("REDIS_URL", "")
	port := getEnv("PORT", "8080")
	logLevel := getEnv("LOG_LEVEL", "info")

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(logLevel)
	logger := logging.Setup(logCfg)

	if keyID == "" || apiKey == "" {
		logger.Fatal().Msg("PROVIDER_KEY_ID and PROVIDER_API_KEY are required")
	}

	client, err := provider.New(provider.DefaultConfig(baseURL, provider.Credentials{
		KeyID:  keyID,
		APIKey: apiKey,
	}))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create provider client")
	}

	cfg := engine.DefaultConfig()

	// Optional Redis detail cache
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis_url", redisURL).Msg("Hotel detail cache enabled")
		cfg.DetailSource = cache.NewSource(client, cache.NewStore(redisClient, cache.DefaultTTL))
	}

	eng, err := engine.New(client, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create engine")
	}

	http.HandleFunc("/health", healthHandler)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/hotels/search", searchHandler(eng, logger))
	http.HandleFunc("/hotels/progress", progressHandler(eng))
	http.HandleFunc("/hotels/details", detailsHandler(eng))
	http.HandleFunc("/hotels/rooms", roomsHandler(eng))

	addr := ":" + port
	logger.Info().Str("addr", addr).Msg("Starting search proxy")
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// searchHandler starts a session and answers with its identity plus the
// provisional stubs; details keep streaming in behind /hotels/progress.
func searchHandler(eng *engine.Engine, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var criteria provider.SearchCriteria
		if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
			http.Error(w, fmt.Sprintf("decode criteria: %v", err), http.StatusBadRequest)
			return
		}

		s, err := eng.Search(context.Background(), criteria)
		if err != nil {
			status := http.StatusBadGateway
			var verr *provider.ValidationError
			if errors.As(err, &verr) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}

		logger.Info().Str("session_id", s.ID()).Msg("Search accepted")
		writeJSON(w, map[string]any{
			"session_id": s.ID(),
			"hotels":     eng.Accumulator().Stubs(),
		})
	}
}

func progressHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := eng.Progress()
		writeJSON(w, map[string]any{
			"session_id": p.SessionID,
			"expected":   p.Expected,
			"resolved":   p.Resolved,
			"failed":     p.Failed,
			"done":       p.Done(),
			"hotels":     eng.Accumulator().Details(),
		})
	}
}

type detailsRequest struct {
	IDs      []string                `json:"ids"`
	Criteria provider.SearchCriteria `json:"criteria"`
}

// detailsHandler resolves an explicit identifier list synchronously. One
// identifier's failure shows up as its own entry, never as a request failure.
func detailsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req detailsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		type entry struct {
			Detail *provider.HotelInfo `json:"detail,omitempty"`
			Error  string              `json:"error,omitempty"`
		}
		out := make(map[string]entry, len(req.IDs))
		for res := range eng.GetDetails(ctx, req.IDs, req.Criteria) {
			e := entry{Detail: res.Detail}
			if res.Err != nil {
				e.Error = res.Err.Error()
			}
			out[res.HotelID] = e
		}
		writeJSON(w, out)
	}
}

type roomsRequest struct {
	ID       string                  `json:"id"`
	Criteria provider.SearchCriteria `json:"criteria"`
}

func roomsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req roomsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
			return
		}

		offers, err := eng.Rooms(r.Context(), req.ID, req.Criteria)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, offers)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
