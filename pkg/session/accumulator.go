package session

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/stayscout/ota-client/pkg/batch"
	"github.com/stayscout/ota-client/pkg/provider"
)

// Prometheus metrics for result accumulation.
var (
	otaMergedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_merge_results_total",
		Help: "Per-identifier results merged into the active session by outcome",
	}, []string{"outcome"})

	otaMergeDiscardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_merge_discarded_total",
		Help: "Results discarded at the merge boundary",
	}, []string{"reason"})
)

// Progress is a point-in-time view of how far the active search has come.
// Resolved counts successful details only; Failed counts per-identifier error
// markers. Resolved+Failed == Expected means every chunk has reported.
type Progress struct {
	SessionID string
	Expected  int
	Resolved  int
	Failed    int
}

// Done reports whether every expected identifier has a result.
func (p Progress) Done() bool {
	return p.Expected > 0 && p.Resolved+p.Failed >= p.Expected
}

// Accumulator merges per-chunk results into the active session's state.
// Merges are keyed by hotel identifier, so out-of-order chunk completion
// cannot corrupt the result set. Writes carrying a superseded session's
// identity are discarded.
type Accumulator struct {
	mu       sync.RWMutex
	activeID string
	expected int
	stubs    []provider.HotelStub
	details  map[string]*provider.HotelInfo
	errs     map[string]error
	order    []string
}

// NewAccumulator creates an accumulator with no active session.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		details: make(map[string]*provider.HotelInfo),
		errs:    make(map[string]error),
	}
}

// Activate resets all accumulated state and binds the accumulator to the
// given session. Results from any other session are discarded from now on.
func (a *Accumulator) Activate(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.activeID = sessionID
	a.expected = 0
	a.stubs = nil
	a.details = make(map[string]*provider.HotelInfo)
	a.errs = make(map[string]error)
	a.order = nil
}

// SetStubs records the provisional search result, one stub per hotel with the
// first observed daily rate. No-op unless sessionID is the active session.
func (a *Accumulator) SetStubs(sessionID string, stubs []provider.HotelStub) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sessionID != a.activeID {
		return
	}
	a.stubs = stubs
	a.expected = len(stubs)
}

// Stubs returns the provisional search result.
func (a *Accumulator) Stubs() []provider.HotelStub {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]provider.HotelStub, len(a.stubs))
	copy(out, a.stubs)
	return out
}

// SetExpected records the total identifier count for progress reporting.
// No-op unless sessionID is the active session.
func (a *Accumulator) SetExpected(sessionID string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sessionID != a.activeID {
		return
	}
	a.expected = n
}

// Merge folds one per-identifier result into the session state. Returns false
// when the write was discarded: either sessionID is no longer active, or the
// result is an in-flight call that died of context cancellation. A user
// cancelling a search must never see the teardown surface as per-identifier
// failures. Never blocks on I/O; callers invoke it from chunk completion
// paths.
func (a *Accumulator) Merge(sessionID string, res batch.Result) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sessionID != a.activeID {
		otaMergeDiscardedTotal.WithLabelValues("superseded").Inc()
		log.Debug().
			Str("session_id", sessionID).
			Str("hotel_id", res.HotelID).
			Msg("Discarding result from superseded session")
		return false
	}

	if res.Err != nil && errors.Is(res.Err, context.Canceled) {
		otaMergeDiscardedTotal.WithLabelValues("cancelled").Inc()
		log.Debug().
			Str("session_id", sessionID).
			Str("hotel_id", res.HotelID).
			Msg("Discarding result from cancelled call")
		return false
	}

	if _, seen := a.details[res.HotelID]; !seen {
		if _, seen := a.errs[res.HotelID]; !seen {
			a.order = append(a.order, res.HotelID)
		}
	}

	if res.Err != nil {
		otaMergedTotal.WithLabelValues("error").Inc()
		a.errs[res.HotelID] = res.Err
		delete(a.details, res.HotelID)
		return true
	}

	otaMergedTotal.WithLabelValues("ok").Inc()
	a.details[res.HotelID] = res.Detail
	delete(a.errs, res.HotelID)
	return true
}

// Progress returns the running resolved/expected counts.
func (a *Accumulator) Progress() Progress {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Progress{
		SessionID: a.activeID,
		Expected:  a.expected,
		Resolved:  len(a.details),
		Failed:    len(a.errs),
	}
}

// Details returns the resolved hotel details in first-merged order.
func (a *Accumulator) Details() []provider.HotelInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]provider.HotelInfo, 0, len(a.details))
	for _, id := range a.order {
		if d, ok := a.details[id]; ok {
			out = append(out, *d)
		}
	}
	return out
}

// Errors returns the per-identifier error markers.
func (a *Accumulator) Errors() map[string]error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]error, len(a.errs))
	for id, err := range a.errs {
		out[id] = err
	}
	return out
}
