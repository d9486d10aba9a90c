package engine

import (
	"path/filepath"
	"testing"
)

func TestStoreSaveGetList(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "executions.db"), filepath.Join(dir, "executions.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	state := failedState()
	state.ExecutionID = NewExecutionID()
	state.Touch()
	if err := store.Save(*state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(state.ExecutionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ExecutionID != state.ExecutionID {
		t.Fatalf("unexpected execution id: %s", got.ExecutionID)
	}
	if got.Error != "insufficient liquidity" {
		t.Fatalf("unexpected execution error: %s", got.Error)
	}
	if got.OriginalUserAmount == nil || got.OriginalUserAmount.AmountWei != "1500000000000000000" {
		t.Fatalf("original amount lost in round trip: %+v", got.OriginalUserAmount)
	}

	failed, err := store.List("failed", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected one failed execution, got %d", len(failed))
	}

	got.Error = ""
	if err := store.Save(got); err != nil {
		t.Fatalf("Save update failed: %v", err)
	}
	completed, err := store.List("completed", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected one completed execution, got %d", len(completed))
	}
}

func TestStoreGetMissingExecution(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "executions.db"), filepath.Join(dir, "executions.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.Get("exec_missing"); err == nil {
		t.Fatal("expected missing execution error")
	}
}
