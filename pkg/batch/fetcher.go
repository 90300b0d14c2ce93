package batch

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/stayscout/ota-client/pkg/provider"
)

// Prometheus metrics for batch fetching.
var (
	otaChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_detail_chunks_total",
		Help: "Total detail chunks dispatched by outcome",
	}, []string{"outcome"})

	otaChunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ota_detail_chunk_duration_seconds",
		Help:    "Duration of one detail chunk round trip",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30},
	})

	otaDetailResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_detail_results_total",
		Help: "Per-identifier detail results by outcome",
	}, []string{"outcome"})
)

// Mode selects which provider endpoint the fetcher uses.
type Mode string

const (
	// ModeBatched issues one batched info request per chunk.
	ModeBatched Mode = "batched"

	// ModeSingle issues one info request per identifier.
	ModeSingle Mode = "single"
)

// DetailSource is the provider surface the fetcher needs. *provider.Client
// implements it.
type DetailSource interface {
	HotelInfo(ctx context.Context, hotelID, language string) (*provider.HotelInfo, error)
	HotelInfoBatch(ctx context.Context, ids []string, criteria provider.SearchCriteria) ([]provider.HotelInfo, error)
}

// PermitGate is the rate limiter surface the fetcher needs. Every provider
// call acquires a permit first.
type PermitGate interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Result is the outcome for one hotel identifier: either a populated detail
// or that identifier's error. Exactly one of Detail and Err is set.
type Result struct {
	HotelID string
	Detail  *provider.HotelInfo
	Err     error
}

// Config holds fetcher configuration.
type Config struct {
	// Mode selects batched or per-identifier requests.
	Mode Mode

	// ChunkSize caps identifiers per batched request.
	ChunkSize int

	// MaxConcurrency is the number of chunk workers. The rate limiter remains
	// the sole point of backpressure; workers beyond its ceiling just queue.
	MaxConcurrency int

	// Timeout bounds one provider call. Expiry surfaces as a per-identifier
	// timeout error.
	Timeout time.Duration
}

// DefaultConfig returns safe defaults for the provider's observed tolerances.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeBatched,
		ChunkSize:      DefaultChunkSize,
		MaxConcurrency: 2,
		Timeout:        15 * time.Second,
	}
}

// Fetcher retrieves hotel details chunk by chunk through the rate limiter.
type Fetcher struct {
	source  DetailSource
	limiter PermitGate
	config  Config
}

// NewFetcher creates a detail fetcher.
func NewFetcher(source DetailSource, limiter PermitGate, config Config) *Fetcher {
	if config.Mode == "" {
		config.Mode = ModeBatched
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Fetcher{
		source:  source,
		limiter: limiter,
		config:  config,
	}
}

// FetchDetails fetches details for all ids and streams one Result per
// identifier as chunks resolve. Results may arrive out of submission order;
// consumers must key by HotelID. One identifier's failure never suppresses
// results for its siblings. The channel closes when every identifier has
// been resolved or ctx is cancelled.
func (f *Fetcher) FetchDetails(ctx context.Context, ids []string, criteria provider.SearchCriteria) <-chan Result {
	results := make(chan Result, len(ids))

	chunks := Chunk(ids, f.config.ChunkSize)
	if len(chunks) == 0 {
		close(results)
		return results
	}

	log.Info().
		Int("hotels", len(ids)).
		Int("chunks", len(chunks)).
		Str("mode", string(f.config.Mode)).
		Msg("Starting detail fetch")

	chunkQueue := make(chan []string, len(chunks))
	for _, c := range chunks {
		chunkQueue <- c
	}
	close(chunkQueue)

	workers := f.config.MaxConcurrency
	if workers > len(chunks) {
		workers = len(chunks)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.worker(ctx, chunkQueue, results, criteria)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Collect drains FetchDetails into a map keyed by hotel identifier.
func (f *Fetcher) Collect(ctx context.Context, ids []string, criteria provider.SearchCriteria) map[string]Result {
	out := make(map[string]Result, len(ids))
	for res := range f.FetchDetails(ctx, ids, criteria) {
		out[res.HotelID] = res
	}
	return out
}

// worker drains the chunk queue, emitting one Result per identifier.
func (f *Fetcher) worker(ctx context.Context, chunkQueue <-chan []string, results chan<- Result, criteria provider.SearchCriteria) {
	for chunk := range chunkQueue {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Chunk worker stopping (context cancelled)")
			return
		default:
		}

		start := time.Now()
		switch f.config.Mode {
		case ModeSingle:
			f.fetchSingles(ctx, chunk, results, criteria)
		default:
			f.fetchBatched(ctx, chunk, results, criteria)
		}
		otaChunkDuration.Observe(time.Since(start).Seconds())
	}
}

// fetchBatched issues one batched request for the chunk. A chunk-level
// failure yields an error marker per identifier, never a dropped identifier.
func (f *Fetcher) fetchBatched(ctx context.Context, chunk []string, results chan<- Result, criteria provider.SearchCriteria) {
	details, err := f.callBatch(ctx, chunk, criteria)
	if err != nil {
		otaChunksTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).
			Int("chunk_size", len(chunk)).
			Msg("Chunk fetch failed")
		for _, id := range chunk {
			otaDetailResultsTotal.WithLabelValues("error").Inc()
			emit(ctx, results, Result{HotelID: id, Err: perIDError(id, err)})
		}
		return
	}

	otaChunksTotal.WithLabelValues("ok").Inc()

	byID := make(map[string]*provider.HotelInfo, len(details))
	for i := range details {
		byID[details[i].ID] = &details[i]
	}

	for _, id := range chunk {
		if detail, ok := byID[id]; ok {
			otaDetailResultsTotal.WithLabelValues("ok").Inc()
			emit(ctx, results, Result{HotelID: id, Detail: detail})
			continue
		}
		// Identifier absent from the batch response.
		otaDetailResultsTotal.WithLabelValues("missing").Inc()
		emit(ctx, results, Result{HotelID: id, Err: &provider.Error{
			HotelID:  id,
			Endpoint: provider.EndpointHotelInfoBatch,
			Class:    provider.ErrorClassServer,
			Message:  "identifier missing from batch response",
		}})
	}
}

// fetchSingles issues one request per identifier in the chunk.
func (f *Fetcher) fetchSingles(ctx context.Context, chunk []string, results chan<- Result, criteria provider.SearchCriteria) {
	for _, id := range chunk {
		detail, err := f.callSingle(ctx, id, criteria.Language)
		if err != nil {
			otaDetailResultsTotal.WithLabelValues("error").Inc()
			log.Warn().Err(err).
				Str("hotel_id", id).
				Msg("Hotel detail fetch failed")
			emit(ctx, results, Result{HotelID: id, Err: perIDError(id, err)})
			continue
		}
		otaDetailResultsTotal.WithLabelValues("ok").Inc()
		emit(ctx, results, Result{HotelID: id, Detail: detail})
	}
}

// callBatch performs one rate-limited, timeout-bounded batched request.
func (f *Fetcher) callBatch(ctx context.Context, chunk []string, criteria provider.SearchCriteria) ([]provider.HotelInfo, error) {
	release, err := f.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()
	return f.source.HotelInfoBatch(callCtx, chunk, criteria)
}

// callSingle performs one rate-limited, timeout-bounded per-identifier request.
func (f *Fetcher) callSingle(ctx context.Context, id, language string) (*provider.HotelInfo, error) {
	release, err := f.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()
	return f.source.HotelInfo(callCtx, id, language)
}

// perIDError tags an error with the identifier it belongs to.
func perIDError(id string, err error) error {
	if perr, ok := err.(*provider.Error); ok {
		if perr.HotelID == "" {
			cp := *perr
			cp.HotelID = id
			return &cp
		}
		return perr
	}
	return &provider.Error{
		HotelID: id,
		Class:   provider.ErrorClassNetwork,
		Message: err.Error(),
		Err:     err,
	}
}

// emit sends a result unless the context is gone.
func emit(ctx context.Context, results chan<- Result, res Result) {
	select {
	case results <- res:
	case <-ctx.Done():
	}
}
