// Package engine ties the provider client, rate limiter, detail fetcher, and
// session accumulator into the consumer-facing search surface.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stayscout/ota-client/pkg/batch"
	"github.com/stayscout/ota-client/pkg/logging"
	"github.com/stayscout/ota-client/pkg/provider"
	"github.com/stayscout/ota-client/pkg/ratelimit"
	"github.com/stayscout/ota-client/pkg/rooms"
	"github.com/stayscout/ota-client/pkg/session"
)

// Provider is the full provider surface the engine needs. *provider.Client
// implements it.
type Provider interface {
	SearchRegion(ctx context.Context, criteria provider.SearchCriteria) ([]provider.HotelStub, error)
	FetchRooms(ctx context.Context, hotelID string, criteria provider.SearchCriteria) (*provider.RatedHotel, error)
	batch.DetailSource
}

// Config holds engine configuration.
type Config struct {
	Limiter ratelimit.Config
	Fetcher batch.Config

	// DetailSource optionally overrides where hotel details come from, for
	// example a cache.Source wrapping the provider. Defaults to the provider.
	DetailSource batch.DetailSource
}

// DefaultConfig returns the package defaults of each component.
func DefaultConfig() Config {
	return Config{
		Limiter: ratelimit.DefaultConfig(),
		Fetcher: batch.DefaultConfig(),
	}
}

// Engine runs searches: region search for provisional stubs, then chunked,
// rate-limited detail retrieval merging progressively into the active
// session.
type Engine struct {
	provider Provider
	fetcher  *batch.Fetcher
	sessions *session.Manager
	logger   zerolog.Logger
}

// New creates an engine.
func New(p Provider, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}

	logger := logging.NewLogger("engine")

	limiter, err := ratelimit.New(cfg.Limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	source := cfg.DetailSource
	if source == nil {
		source = p
	}

	return &Engine{
		provider: p,
		fetcher:  batch.NewFetcher(source, limiter, cfg.Fetcher),
		sessions: session.NewManager(),
		logger:   logger,
	}, nil
}

// Accumulator returns the shared result accumulator for progress reads.
func (e *Engine) Accumulator() *session.Accumulator {
	return e.sessions.Accumulator()
}

// Progress returns the active session's resolved/expected counts.
func (e *Engine) Progress() session.Progress {
	return e.sessions.Accumulator().Progress()
}

// Search starts a new search session, superseding any running one, and
// returns as soon as the region search has produced provisional stubs.
// Details stream in asynchronously on the session's context; progress is
// observable through the accumulator. A validation failure or a failing
// region search returns the session in Failed state together with the error.
func (e *Engine) Search(ctx context.Context, criteria provider.SearchCriteria) (*session.Session, error) {
	criteria, err := criteria.Normalize()
	if err != nil {
		s := session.New(ctx)
		_ = s.Fail()
		return s, err
	}
	if err := criteria.Validate(); err != nil {
		s := session.New(ctx)
		_ = s.Fail()
		return s, err
	}
	if criteria.RegionID == 0 {
		// Explicit identifier lists go through GetDetails, not Search.
		s := session.New(ctx)
		_ = s.Fail()
		return s, &provider.ValidationError{Field: "region_id", Reason: "required for a region search"}
	}

	s, err := e.sessions.Begin(ctx)
	if err != nil {
		return nil, err
	}
	acc := e.sessions.Accumulator()

	stubs, err := e.provider.SearchRegion(s.Context(), criteria)
	if err != nil {
		_ = s.Fail()
		e.logger.Error().Err(err).
			Str("session_id", s.ID()).
			Msg("Region search failed")
		return s, fmt.Errorf("region search: %w", err)
	}

	acc.SetStubs(s.ID(), stubs)
	e.logger.Info().
		Str("session_id", s.ID()).
		Int("hotels", len(stubs)).
		Msg("Region search resolved, fetching details")

	ids := make([]string, 0, len(stubs))
	for _, stub := range stubs {
		ids = append(ids, stub.ID)
	}

	go e.fetchInto(s, ids, criteria)
	return s, nil
}

// fetchInto streams chunked detail results into the accumulator until every
// identifier has resolved or the session is cancelled.
func (e *Engine) fetchInto(s *session.Session, ids []string, criteria provider.SearchCriteria) {
	acc := e.sessions.Accumulator()

	for res := range e.fetcher.FetchDetails(s.Context(), ids, criteria) {
		acc.Merge(s.ID(), res)
	}

	if s.Context().Err() != nil {
		// Superseded or cancelled mid-flight; state already terminal.
		return
	}
	if err := s.Complete(); err == nil {
		p := acc.Progress()
		e.logger.Info().
			Str("session_id", s.ID()).
			Int("resolved", p.Resolved).
			Int("failed", p.Failed).
			Int("expected", p.Expected).
			Msg("Session completed")
	}
}

// GetDetails streams one result per identifier: chunked, rate limited, and
// partial-failure tolerant. Results are keyed by hotel identifier and may
// arrive out of submission order.
func (e *Engine) GetDetails(ctx context.Context, ids []string, criteria provider.SearchCriteria) <-chan batch.Result {
	return e.fetcher.FetchDetails(ctx, ids, criteria)
}

// Rooms fetches one hotel's rate line items and folds them into the
// aggregated offer list.
func (e *Engine) Rooms(ctx context.Context, hotelID string, criteria provider.SearchCriteria) ([]rooms.Offer, error) {
	rated, err := e.provider.FetchRooms(ctx, hotelID, criteria)
	if err != nil {
		return nil, err
	}
	return rooms.Aggregate(rated.Rates), nil
}

// Cancel cancels the active session, if any.
func (e *Engine) Cancel() {
	if s := e.sessions.Active(); s != nil {
		s.Cancel()
	}
}
