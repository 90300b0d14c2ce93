package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stayscout/ota-client/pkg/batch"
	"github.com/stayscout/ota-client/pkg/provider"
)

func okResult(id string) batch.Result {
	return batch.Result{HotelID: id, Detail: &provider.HotelInfo{ID: id, Name: "Hotel " + id}}
}

func errResult(id string) batch.Result {
	return batch.Result{HotelID: id, Err: &provider.Error{
		HotelID:    id,
		StatusCode: 500,
		Class:      provider.ErrorClassServer,
		Message:    "500 Internal Server Error",
	}}
}

func TestAccumulator_MergeAndProgress(t *testing.T) {
	acc := NewAccumulator()
	acc.Activate("s1")
	acc.SetExpected("s1", 3)

	if !acc.Merge("s1", okResult("h1")) {
		t.Error("Merge for active session was discarded")
	}
	acc.Merge("s1", errResult("h2"))
	acc.Merge("s1", okResult("h3"))

	p := acc.Progress()
	if p.Resolved != 2 || p.Failed != 1 || p.Expected != 3 {
		t.Errorf("Progress = %+v, want resolved=2 failed=1 expected=3", p)
	}
	if !p.Done() {
		t.Error("Progress.Done() = false after all identifiers resolved")
	}

	details := acc.Details()
	if len(details) != 2 || details[0].ID != "h1" || details[1].ID != "h3" {
		t.Errorf("Details = %+v, want [h1 h3] in merge order", details)
	}
	if _, ok := acc.Errors()["h2"]; !ok {
		t.Error("h2 error marker missing")
	}
}

// Late-arriving results from a superseded session must never reach state.
func TestAccumulator_DiscardsSupersededSessionResults(t *testing.T) {
	acc := NewAccumulator()
	acc.Activate("old")
	acc.Merge("old", okResult("h1"))

	acc.Activate("new")
	acc.SetExpected("new", 1)

	// Results from the old session resolve after supersession.
	if acc.Merge("old", okResult("h2")) {
		t.Error("Superseded session result was merged")
	}
	acc.Merge("new", okResult("h9"))

	details := acc.Details()
	if len(details) != 1 || details[0].ID != "h9" {
		t.Errorf("Details = %+v, want only the new session's h9", details)
	}
	if p := acc.Progress(); p.SessionID != "new" || p.Resolved != 1 {
		t.Errorf("Progress = %+v, want session new with 1 resolved", p)
	}
}

// Full supersession path through the manager: session B starts while A runs,
// A's late results are absent, only B's appear.
func TestAccumulator_SupersessionEndToEnd(t *testing.T) {
	m := NewManager()
	acc := m.Accumulator()

	a, err := m.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	acc.Merge(a.ID(), okResult("a1"))

	b, err := m.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// A resolves two more hotels after B superseded it.
	acc.Merge(a.ID(), okResult("a2"))
	acc.Merge(a.ID(), okResult("a3"))
	acc.Merge(b.ID(), okResult("b1"))

	details := acc.Details()
	if len(details) != 1 || details[0].ID != "b1" {
		t.Errorf("Details = %+v, want only b1", details)
	}
}

// Cancelling a search tears down in-flight calls; the resulting errors carry
// context.Canceled and must be dropped, not recorded as hotel failures.
func TestAccumulator_DiscardsCancelledCallResults(t *testing.T) {
	acc := NewAccumulator()
	acc.Activate("s1")
	acc.SetExpected("s1", 2)

	cancelled := batch.Result{HotelID: "h1", Err: &provider.Error{
		HotelID: "h1",
		Class:   provider.ErrorClassNetwork,
		Message: context.Canceled.Error(),
		Err:     context.Canceled,
	}}
	if acc.Merge("s1", cancelled) {
		t.Error("Cancelled call result was merged")
	}
	// The same holds when the cancellation is wrapped further down.
	wrapped := batch.Result{HotelID: "h2", Err: fmt.Errorf("batch call: %w", context.Canceled)}
	if acc.Merge("s1", wrapped) {
		t.Error("Wrapped cancelled call result was merged")
	}

	p := acc.Progress()
	if p.Failed != 0 || p.Resolved != 0 {
		t.Errorf("Progress = %+v, want no failures from cancellation", p)
	}
	if len(acc.Errors()) != 0 {
		t.Errorf("Errors = %+v, want none", acc.Errors())
	}
}

// Out-of-order arrival must not corrupt the result set: merges key by
// identifier, not arrival order.
func TestAccumulator_KeyedByIdentifier(t *testing.T) {
	acc := NewAccumulator()
	acc.Activate("s1")

	for i := 4; i >= 0; i-- {
		acc.Merge("s1", okResult(fmt.Sprintf("h%d", i)))
	}
	// Duplicate merge for an already-resolved identifier.
	acc.Merge("s1", okResult("h2"))

	if p := acc.Progress(); p.Resolved != 5 {
		t.Errorf("Resolved = %d, want 5", p.Resolved)
	}
}

// An error marker followed by a successful retry result flips the identifier
// from failed to resolved, and the counts follow.
func TestAccumulator_ErrorThenSuccess(t *testing.T) {
	acc := NewAccumulator()
	acc.Activate("s1")

	acc.Merge("s1", errResult("h1"))
	if p := acc.Progress(); p.Failed != 1 || p.Resolved != 0 {
		t.Fatalf("Progress = %+v, want failed=1", p)
	}

	acc.Merge("s1", okResult("h1"))
	p := acc.Progress()
	if p.Failed != 0 || p.Resolved != 1 {
		t.Errorf("Progress = %+v, want resolved=1 failed=0", p)
	}
	if len(acc.Details()) != 1 {
		t.Errorf("Details = %+v, want one entry", acc.Details())
	}
}

func TestAccumulator_ActivateResetsState(t *testing.T) {
	acc := NewAccumulator()
	acc.Activate("s1")
	acc.SetExpected("s1", 10)
	acc.Merge("s1", okResult("h1"))

	acc.Activate("s2")

	p := acc.Progress()
	if p.Resolved != 0 || p.Failed != 0 || p.Expected != 0 {
		t.Errorf("Progress after Activate = %+v, want zeroes", p)
	}
	if len(acc.Details()) != 0 {
		t.Error("Details survived Activate")
	}
}

func TestAccumulator_SetExpectedIgnoresStaleSession(t *testing.T) {
	acc := NewAccumulator()
	acc.Activate("s2")
	acc.SetExpected("s1", 99)

	if p := acc.Progress(); p.Expected != 0 {
		t.Errorf("Expected = %d, want 0 (stale SetExpected must be ignored)", p.Expected)
	}
}
