package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podshorts/flow/store"
)

type testState struct {
	Topic   string `json:"topic"`
	Counter int    `json:"counter"`
}

// storeContract runs the Store[S] behavioral contract against one backend.
// Every backend must behave identically from the engine's point of view.
func storeContract(t *testing.T, st store.Store[testState]) {
	ctx := context.Background()

	t.Run("load of unknown run returns ErrNotFound", func(t *testing.T) {
		_, _, err := st.LoadLatest(ctx, "missing")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("load returns highest step", func(t *testing.T) {
		runID := "run-steps"
		for i := 0; i <= 3; i++ {
			s := testState{Topic: "topic", Counter: i}
			if err := st.SaveStep(ctx, runID, i, "node", s); err != nil {
				t.Fatalf("SaveStep %d failed: %v", i, err)
			}
		}

		state, step, err := st.LoadLatest(ctx, runID)
		if err != nil {
			t.Fatalf("LoadLatest failed: %v", err)
		}
		if step != 3 {
			t.Errorf("expected step 3, got %d", step)
		}
		if state.Counter != 3 {
			t.Errorf("expected counter 3, got %d", state.Counter)
		}
	})

	t.Run("save then load is idempotent", func(t *testing.T) {
		runID := "run-roundtrip"
		want := testState{Topic: "ai news", Counter: 7}
		if err := st.SaveStep(ctx, runID, 1, "research", want); err != nil {
			t.Fatal(err)
		}

		// Loading twice must return the same state; loads do not mutate.
		for i := 0; i < 2; i++ {
			got, step, err := st.LoadLatest(ctx, runID)
			if err != nil {
				t.Fatalf("LoadLatest %d failed: %v", i, err)
			}
			if got != want || step != 1 {
				t.Errorf("load %d: got %+v step %d, want %+v step 1", i, got, step, want)
			}
		}
	})

	t.Run("suspension lifecycle", func(t *testing.T) {
		runID := "run-suspend"
		if err := st.SaveStep(ctx, runID, 1, "gate", testState{Topic: "t"}); err != nil {
			t.Fatal(err)
		}

		susp, err := st.PendingSuspension(ctx, runID)
		if err != nil {
			t.Fatal(err)
		}
		if susp != nil {
			t.Fatal("fresh run reports a pending suspension")
		}

		rec := store.Suspension{
			NodeID:    "gate",
			Reason:    "topic_selection",
			Payload:   json.RawMessage(`{"topics":["a","b"]}`),
			CreatedAt: time.Now().UTC(),
		}
		if err := st.RecordSuspension(ctx, runID, rec); err != nil {
			t.Fatal(err)
		}

		susp, err = st.PendingSuspension(ctx, runID)
		if err != nil {
			t.Fatal(err)
		}
		if susp == nil {
			t.Fatal("recorded suspension not returned")
		}
		if susp.NodeID != "gate" || susp.Reason != "topic_selection" {
			t.Errorf("unexpected record: %+v", susp)
		}
		if string(susp.Payload) != `{"topics":["a","b"]}` {
			t.Errorf("payload mangled: %s", susp.Payload)
		}

		if err := st.ClearSuspension(ctx, runID); err != nil {
			t.Fatal(err)
		}
		susp, err = st.PendingSuspension(ctx, runID)
		if err != nil {
			t.Fatal(err)
		}
		if susp != nil {
			t.Error("suspension survived ClearSuspension")
		}

		// Clearing again is a no-op, not an error.
		if err := st.ClearSuspension(ctx, runID); err != nil {
			t.Errorf("double clear failed: %v", err)
		}
	})

	t.Run("runs are isolated", func(t *testing.T) {
		if err := st.SaveStep(ctx, "run-a", 1, "n", testState{Topic: "a"}); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveStep(ctx, "run-b", 5, "n", testState{Topic: "b"}); err != nil {
			t.Fatal(err)
		}

		stateA, stepA, err := st.LoadLatest(ctx, "run-a")
		if err != nil {
			t.Fatal(err)
		}
		if stateA.Topic != "a" || stepA != 1 {
			t.Errorf("run-a leaked: %+v step %d", stateA, stepA)
		}

		if err := st.RecordSuspension(ctx, "run-a", store.Suspension{NodeID: "g", Reason: "r"}); err != nil {
			t.Fatal(err)
		}
		suspB, err := st.PendingSuspension(ctx, "run-b")
		if err != nil {
			t.Fatal(err)
		}
		if suspB != nil {
			t.Error("suspension leaked across runs")
		}
	})
}

func TestMemStore(t *testing.T) {
	storeContract(t, store.NewMemStore[testState]())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLiteStore[testState](path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer st.Close()

	storeContract(t, st)

	t.Run("state survives reopen", func(t *testing.T) {
		ctx := context.Background()
		want := testState{Topic: "durable", Counter: 42}
		if err := st.SaveStep(ctx, "run-durable", 2, "draft", want); err != nil {
			t.Fatal(err)
		}
		if err := st.RecordSuspension(ctx, "run-durable", store.Suspension{
			NodeID: "review_gate", Reason: "script_review", Payload: json.RawMessage(`{}`),
		}); err != nil {
			t.Fatal(err)
		}
		if err := st.Close(); err != nil {
			t.Fatal(err)
		}

		reopened, err := store.NewSQLiteStore[testState](path)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer reopened.Close()

		got, step, err := reopened.LoadLatest(ctx, "run-durable")
		if err != nil {
			t.Fatal(err)
		}
		if got != want || step != 2 {
			t.Errorf("got %+v step %d, want %+v step 2", got, step, want)
		}

		susp, err := reopened.PendingSuspension(ctx, "run-durable")
		if err != nil {
			t.Fatal(err)
		}
		if susp == nil || susp.Reason != "script_review" {
			t.Errorf("suspension lost across reopen: %+v", susp)
		}
	})
}

func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("set TEST_MYSQL_DSN to run MySQL store tests")
	}

	st, err := store.NewMySQLStore[testState](dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	defer st.Close()

	storeContract(t, st)
}
