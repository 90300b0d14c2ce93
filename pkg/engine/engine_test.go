package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stayscout/ota-client/pkg/batch"
	"github.com/stayscout/ota-client/pkg/provider"
	"github.com/stayscout/ota-client/pkg/ratelimit"
	"github.com/stayscout/ota-client/pkg/session"
)

// fakeProvider serves canned stubs, details, and rates.
type fakeProvider struct {
	mu          sync.Mutex
	stubs       []provider.HotelStub
	rates       []provider.RateLineItem
	searchErr   error
	searchCalls int
	batchCalls  int

	// blockBatch, when set, stalls the next batched detail call until the
	// channel closes or the call's context is cancelled.
	blockBatch chan struct{}
}

func (f *fakeProvider) SearchRegion(ctx context.Context, criteria provider.SearchCriteria) ([]provider.HotelStub, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.stubs, nil
}

func (f *fakeProvider) FetchRooms(ctx context.Context, hotelID string, criteria provider.SearchCriteria) (*provider.RatedHotel, error) {
	return &provider.RatedHotel{ID: hotelID, Rates: f.rates}, nil
}

func (f *fakeProvider) HotelInfo(ctx context.Context, hotelID, language string) (*provider.HotelInfo, error) {
	return &provider.HotelInfo{ID: hotelID, Name: "Hotel " + hotelID}, nil
}

func (f *fakeProvider) HotelInfoBatch(ctx context.Context, ids []string, criteria provider.SearchCriteria) ([]provider.HotelInfo, error) {
	f.mu.Lock()
	f.batchCalls++
	block := f.blockBatch
	f.blockBatch = nil
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([]provider.HotelInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, provider.HotelInfo{ID: id, Name: "Hotel " + id})
	}
	return out, nil
}

func stubsFor(n int) []provider.HotelStub {
	out := make([]provider.HotelStub, n)
	for i := range out {
		out[i] = provider.HotelStub{ID: fmt.Sprintf("h%d", i), Price: float64(100 + i)}
	}
	return out
}

func validCriteria() provider.SearchCriteria {
	return provider.SearchCriteria{
		CheckIn:  "2026-10-01",
		CheckOut: "2026-10-05",
		Language: "en",
		RegionID: 2395,
		Guests:   []provider.GuestGroup{{Adults: 2}},
	}
}

func testConfig() Config {
	return Config{
		Limiter: ratelimit.Config{MaxConcurrency: 2, MinInterval: time.Millisecond},
		Fetcher: batch.Config{Mode: batch.ModeBatched, ChunkSize: 300, MaxConcurrency: 2},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestSearch_InvalidCriteriaFailsBeforeDispatch(t *testing.T) {
	p := &fakeProvider{stubs: stubsFor(3)}
	e, err := New(p, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	s, err := e.Search(context.Background(), provider.SearchCriteria{})
	if err == nil {
		t.Fatal("Expected validation error")
	}
	var verr *provider.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Error = %v, want ValidationError", err)
	}
	if s.State() != session.StateFailed {
		t.Errorf("Session state = %s, want failed", s.State())
	}
	if p.searchCalls != 0 {
		t.Errorf("Region search calls = %d, want 0", p.searchCalls)
	}
}

// Search is the region path; explicit identifier lists belong to GetDetails.
func TestSearch_RejectsExplicitIdentifierList(t *testing.T) {
	p := &fakeProvider{stubs: stubsFor(3)}
	e, err := New(p, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	criteria := validCriteria()
	criteria.RegionID = 0
	criteria.HotelIDs = []string{"h1", "h2"}

	s, err := e.Search(context.Background(), criteria)
	if err == nil {
		t.Fatal("Expected validation error for ids-only criteria")
	}
	var verr *provider.ValidationError
	if !errors.As(err, &verr) || verr.Field != "region_id" {
		t.Errorf("Error = %v, want ValidationError on region_id", err)
	}
	if s.State() != session.StateFailed {
		t.Errorf("Session state = %s, want failed", s.State())
	}
	if p.searchCalls != 0 {
		t.Errorf("Region search calls = %d, want 0", p.searchCalls)
	}
}

func TestSearch_RegionFailureFailsSession(t *testing.T) {
	p := &fakeProvider{searchErr: &provider.Error{
		StatusCode: 500,
		Class:      provider.ErrorClassServer,
		Message:    "500 Internal Server Error",
	}}
	e, err := New(p, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	s, err := e.Search(context.Background(), validCriteria())
	if err == nil {
		t.Fatal("Expected region search error")
	}
	if s.State() != session.StateFailed {
		t.Errorf("Session state = %s, want failed", s.State())
	}
}

func TestSearch_ResolvesAllDetails(t *testing.T) {
	p := &fakeProvider{stubs: stubsFor(5)}
	e, err := New(p, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	s, err := e.Search(context.Background(), validCriteria())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if s.State() != session.StateRunning {
		t.Fatalf("Session state right after Search = %s, want running", s.State())
	}

	acc := e.Accumulator()
	if got := acc.Stubs(); len(got) != 5 || got[0].Price != 100 {
		t.Errorf("Stubs = %+v, want 5 provisional entries", got)
	}

	waitFor(t, "session completion", func() bool {
		return s.State() == session.StateCompleted
	})

	pr := e.Progress()
	if pr.Resolved != 5 || pr.Failed != 0 || pr.Expected != 5 {
		t.Errorf("Progress = %+v, want 5/0/5", pr)
	}
	if details := acc.Details(); len(details) != 5 {
		t.Errorf("Detail count = %d, want 5", len(details))
	}
}

// Starting search B while A is running cancels A; A's late results never
// appear in the accumulated state.
func TestSearch_SupersessionDiscardsLateResults(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{stubs: stubsFor(3), blockBatch: release}
	e, err := New(p, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	a, err := e.Search(context.Background(), validCriteria())
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first batch call", func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.batchCalls == 1
	})

	b, err := e.Search(context.Background(), validCriteria())
	if err != nil {
		t.Fatal(err)
	}
	close(release)

	if a.State() != session.StateCancelled {
		t.Errorf("Superseded session state = %s, want cancelled", a.State())
	}

	waitFor(t, "second session completion", func() bool {
		return b.State() == session.StateCompleted
	})

	pr := e.Progress()
	if pr.SessionID != b.ID() {
		t.Errorf("Progress session = %s, want %s", pr.SessionID, b.ID())
	}
	if pr.Resolved != 3 {
		t.Errorf("Resolved = %d, want 3 (only the new session's results)", pr.Resolved)
	}
}

// Cancelling the active search kills the in-flight batch call; the
// context.Canceled errors that fall out of the teardown must not be recorded
// as per-hotel failures.
func TestCancel_DoesNotSurfaceFailures(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	p := &fakeProvider{stubs: stubsFor(3), blockBatch: release}
	e, err := New(p, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	s, err := e.Search(context.Background(), validCriteria())
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first batch call", func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.batchCalls == 1
	})

	e.Cancel()

	waitFor(t, "session cancellation", func() bool {
		return s.State() == session.StateCancelled
	})
	// Give the drain goroutine time to merge the dying call's results.
	time.Sleep(100 * time.Millisecond)

	pr := e.Progress()
	if pr.Failed != 0 {
		t.Errorf("Failed = %d, want 0 after explicit cancel", pr.Failed)
	}
	if errs := e.Accumulator().Errors(); len(errs) != 0 {
		t.Errorf("Errors = %+v, want none after explicit cancel", errs)
	}
}

func TestGetDetails_StreamsPerIdentifier(t *testing.T) {
	p := &fakeProvider{}
	e, err := New(p, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	got := make(map[string]batch.Result)
	for res := range e.GetDetails(context.Background(), []string{"h1", "h2", "h3"}, validCriteria()) {
		got[res.HotelID] = res
	}

	if len(got) != 3 {
		t.Fatalf("Result count = %d, want 3", len(got))
	}
	for id, res := range got {
		if res.Err != nil || res.Detail == nil {
			t.Errorf("Result for %s = %+v, want detail", id, res)
		}
	}
}

func TestRooms_AggregatesLineItems(t *testing.T) {
	p := &fakeProvider{rates: []provider.RateLineItem{
		{
			RoomName:    "Standard",
			Meal:        "nomeal",
			DailyPrices: []string{"100.00"},
			RoomDataTrans: provider.RoomDataTrans{
				MainRoomType: "Standard", MainName: "Standard", BeddingType: "double",
			},
		},
		{
			RoomName:    "Standard",
			Meal:        "breakfast",
			DailyPrices: []string{"120.00"},
			RoomDataTrans: provider.RoomDataTrans{
				MainRoomType: "Standard", MainName: "Standard", BeddingType: "double",
			},
		},
	}}
	e, err := New(p, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	offers, err := e.Rooms(context.Background(), "h1", validCriteria())
	if err != nil {
		t.Fatalf("Rooms() error = %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("Offer count = %d, want 1", len(offers))
	}
	if offers[0].BaseVariant.Price != 100 || offers[0].MealVariant == nil {
		t.Errorf("Offer = %+v, want baseline 100 with meal variant", offers[0])
	}
}

func TestNew_RequiresProvider(t *testing.T) {
	if _, err := New(nil, testConfig()); err == nil {
		t.Error("Expected error for nil provider")
	}
}
