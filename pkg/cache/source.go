package cache

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/stayscout/ota-client/pkg/batch"
	"github.com/stayscout/ota-client/pkg/provider"
)

// Source is a read-through detail source: cached hotels are served from
// Redis, misses fall through to the wrapped source and are stored on the way
// back. Cache failures degrade to provider fetches, never to errors.
type Source struct {
	inner batch.DetailSource
	store *Store
}

var _ batch.DetailSource = (*Source)(nil)

// NewSource wraps a detail source with the cache store.
func NewSource(inner batch.DetailSource, store *Store) *Source {
	return &Source{inner: inner, store: store}
}

// HotelInfo serves one hotel detail, cache first.
func (s *Source) HotelInfo(ctx context.Context, hotelID, language string) (*provider.HotelInfo, error) {
	key := Key{HotelID: hotelID, Language: language}

	detail, err := s.store.Get(ctx, key)
	if err == nil {
		return detail, nil
	}
	if !errors.Is(err, ErrMiss) {
		log.Debug().Err(err).
			Str("hotel_id", hotelID).
			Msg("Cache read failed, falling through to provider")
	}

	detail, err = s.inner.HotelInfo(ctx, hotelID, language)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, key, detail); err != nil {
		log.Debug().Err(err).
			Str("hotel_id", hotelID).
			Msg("Cache write failed")
	}
	return detail, nil
}

// HotelInfoBatch serves a batch of hotel details, fetching only the cache
// misses from the wrapped source. Output order follows the input ids for the
// cached part, then the provider's order for the fetched part; batch callers
// key results by identifier.
func (s *Source) HotelInfoBatch(ctx context.Context, ids []string, criteria provider.SearchCriteria) ([]provider.HotelInfo, error) {
	out := make([]provider.HotelInfo, 0, len(ids))
	var misses []string

	for _, id := range ids {
		detail, err := s.store.Get(ctx, Key{HotelID: id, Language: criteria.Language})
		if err != nil {
			misses = append(misses, id)
			continue
		}
		out = append(out, *detail)
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := s.inner.HotelInfoBatch(ctx, misses, criteria)
	if err != nil {
		// Partially cached results do not soften a chunk failure; the caller
		// retries the whole chunk and cached entries are served again then.
		return nil, err
	}

	for i := range fetched {
		detail := &fetched[i]
		key := Key{HotelID: detail.ID, Language: criteria.Language}
		if err := s.store.Set(ctx, key, detail); err != nil {
			log.Debug().Err(err).
				Str("hotel_id", detail.ID).
				Msg("Cache write failed")
		}
		out = append(out, *detail)
	}

	log.Debug().
		Int("cached", len(ids)-len(misses)).
		Int("fetched", len(fetched)).
		Msg("Batch detail cache lookup")
	return out, nil
}
