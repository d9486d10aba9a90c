package engine

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nmorales/agentexec/internal/adapter"
	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/plan"
	"github.com/nmorales/agentexec/internal/token"
)

const testDestination = "0x000000000000000000000000000000000000dEaD"

// fakeBackend implements both adapter interfaces with canned outcomes so
// coordinator behavior can be exercised without a chain.
type fakeBackend struct {
	calls   []plan.Action
	swapOut string
	failOn  plan.Action
	failErr error
}

func (f *fakeBackend) invoke(action plan.Action) (adapter.Result, error) {
	f.calls = append(f.calls, action)
	if action == f.failOn {
		return adapter.Result{}, f.failErr
	}
	return adapter.Result{
		TxHash:  "0x" + strings.Repeat("ab", 32),
		Summary: string(action) + " confirmed",
	}, nil
}

func (f *fakeBackend) Swap(_ context.Context, req adapter.Request) (adapter.Result, error) {
	res, err := f.invoke(req.Action)
	if err != nil {
		return res, err
	}
	res.AmountOutWei = f.swapOut
	return res, nil
}

func (f *fakeBackend) Transfer(_ context.Context, req adapter.Request) (adapter.Result, error) {
	return f.invoke(req.Action)
}

func (f *fakeBackend) SweepRemaining(_ context.Context, req adapter.Request) (adapter.Result, error) {
	return f.invoke(req.Action)
}

func (f *fakeBackend) Stake(_ context.Context, req adapter.Request) (adapter.Result, error) {
	return f.invoke(req.Action)
}

func (f *fakeBackend) Unstake(_ context.Context, req adapter.Request) (adapter.Result, error) {
	return f.invoke(req.Action)
}

func testAdapters(f *fakeBackend) Adapters {
	return Adapters{Swap: f, Stake: f}
}

func validatedPlan(t *testing.T, p plan.AgentPlan) plan.AgentPlan {
	t.Helper()
	p = plan.Validate(p)
	if !p.IsValid {
		t.Fatalf("expected valid plan, got: %s", p.Error)
	}
	return p
}

func swapStakeSweepPlan(t *testing.T) plan.AgentPlan {
	t.Helper()
	return validatedPlan(t, plan.AgentPlan{
		InitialToken:       "eth",
		InitialAmount:      "1.5",
		DestinationAddress: testDestination,
		Steps: []plan.PlanStep{
			{StepID: 1, Type: plan.StepTypeOnchainKit, Action: plan.ActionSwapETHToUSDC, Params: plan.StepParams{Amount: "1.5"}},
			{StepID: 2, Type: plan.StepTypeAgentKit, Action: plan.ActionStakeUSDC, Params: plan.StepParams{AmountWei: "2500000000"}},
			{StepID: 3, Type: plan.StepTypeOnchainKit, Action: plan.ActionSendRemaining, Params: plan.StepParams{Destination: testDestination}},
		},
	})
}

func TestRunCompletesAllSteps(t *testing.T) {
	backend := &fakeBackend{swapOut: "2500000000"}
	coord := NewCoordinator(testAdapters(backend))

	state, err := coord.Run(context.Background(), swapStakeSweepPlan(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !state.IsComplete || state.Error != "" {
		t.Fatalf("expected clean completion, got complete=%v error=%q", state.IsComplete, state.Error)
	}
	if state.CurrentStep != 3 {
		t.Fatalf("expected cursor past last step, got %d", state.CurrentStep)
	}
	for i, step := range state.Steps {
		if step.Status != StepStatusCompleted {
			t.Fatalf("step %d not completed: %s", i, step.Status)
		}
		if step.TxHash == "" {
			t.Fatalf("step %d missing tx hash", i)
		}
	}
	if got := len(backend.calls); got != 3 {
		t.Fatalf("expected 3 adapter calls, got %d", got)
	}
	// The final sweep settles everything back to the user.
	if !state.UserShouldReceive.IsZero() {
		t.Fatalf("expected owed balance settled after sweep, got %+v", state.UserShouldReceive)
	}
}

func TestRunCapturesOriginalAmountOnce(t *testing.T) {
	backend := &fakeBackend{swapOut: "2500000000"}
	coord := NewCoordinator(testAdapters(backend))

	state, err := coord.Run(context.Background(), swapStakeSweepPlan(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	orig := state.OriginalUserAmount
	if orig == nil {
		t.Fatal("expected original amount to be captured")
	}
	if orig.Token != token.ETH || orig.Amount != "1.5" || orig.AmountWei != "1500000000000000000" {
		t.Fatalf("unexpected original amount: %+v", orig)
	}
}

func TestRunHaltsOnStepFailure(t *testing.T) {
	backend := &fakeBackend{
		swapOut: "2500000000",
		failOn:  plan.ActionStakeUSDC,
		failErr: clierr.New(clierr.CodeAdapterFailure, "insufficient liquidity"),
	}
	coord := NewCoordinator(testAdapters(backend))

	state, err := coord.Run(context.Background(), swapStakeSweepPlan(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !state.IsComplete {
		t.Fatal("expected halted execution to be marked complete")
	}
	if state.Error != "insufficient liquidity" {
		t.Fatalf("unexpected execution error: %q", state.Error)
	}
	if state.CurrentStep != 1 {
		t.Fatalf("expected cursor to stay at failing step, got %d", state.CurrentStep)
	}
	if state.Steps[0].Status != StepStatusCompleted {
		t.Fatalf("expected first step completed, got %s", state.Steps[0].Status)
	}
	if state.Steps[1].Status != StepStatusError || state.Steps[1].Error != "insufficient liquidity" {
		t.Fatalf("unexpected failing step record: %+v", state.Steps[1])
	}
	if state.Steps[2].Status != StepStatusPending {
		t.Fatalf("expected later step to never start, got %s", state.Steps[2].Status)
	}
	if got := len(backend.calls); got != 2 {
		t.Fatalf("expected adapter calls to stop at the failure, got %d", got)
	}
	// The completed swap converted the user's ETH; they are now owed USDC.
	if state.UserShouldReceive == nil || state.UserShouldReceive.USDCUnits != "2500000000" {
		t.Fatalf("unexpected owed balance: %+v", state.UserShouldReceive)
	}
	if state.LastCredited != token.USDC {
		t.Fatalf("expected last credited token usdc, got %s", state.LastCredited)
	}
}

func TestRunCreditsUnstakedAmount(t *testing.T) {
	p := validatedPlan(t, plan.AgentPlan{
		InitialToken:  "usdc",
		InitialAmount: "100",
		Steps: []plan.PlanStep{
			{StepID: 1, Type: plan.StepTypeAgentKit, Action: plan.ActionUnstakeUSDC, Params: plan.StepParams{Amount: "100"}},
			{StepID: 2, Type: plan.StepTypeAgentKit, Action: plan.ActionStakeUSDC, Params: plan.StepParams{Amount: "100"}},
		},
	})
	backend := &fakeBackend{
		failOn:  plan.ActionStakeUSDC,
		failErr: clierr.New(clierr.CodeAdapterFailure, "pool is frozen"),
	}
	coord := NewCoordinator(testAdapters(backend))

	state, err := coord.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if state.UserShouldReceive == nil || state.UserShouldReceive.USDCUnits != "100000000" {
		t.Fatalf("expected unstaked amount owed, got %+v", state.UserShouldReceive)
	}
}

func TestRunRecordsUntrackedSwapOutput(t *testing.T) {
	// No swap output is reported (simulation off), so the completed swap
	// cannot be credited; the gap must be flagged rather than lost.
	backend := &fakeBackend{
		failOn:  plan.ActionStakeUSDC,
		failErr: clierr.New(clierr.CodeAdapterFailure, "pool is frozen"),
	}
	coord := NewCoordinator(testAdapters(backend))

	state, err := coord.Run(context.Background(), swapStakeSweepPlan(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !state.UserShouldReceive.IsZero() {
		t.Fatalf("expected no owed credit without a known swap output, got %+v", state.UserShouldReceive)
	}
	if len(state.AccountingNotes) != 1 || !strings.Contains(state.AccountingNotes[0], "swap output unknown") {
		t.Fatalf("expected an accounting note for the untracked swap, got %+v", state.AccountingNotes)
	}

	refund, err := ComputeRefund(state)
	if err != nil {
		t.Fatalf("ComputeRefund failed: %v", err)
	}
	if refund.Token != token.ETH || refund.AmountWei != "1500000000000000000" {
		t.Fatalf("expected fallback to the original commitment, got %+v", refund)
	}
	if len(refund.Notes) != 1 {
		t.Fatalf("expected the accounting note on the refund, got %+v", refund.Notes)
	}
}

func TestRunRejectsUnvalidatedPlan(t *testing.T) {
	coord := NewCoordinator(testAdapters(&fakeBackend{}))
	_, err := coord.Run(context.Background(), plan.AgentPlan{})
	if err == nil {
		t.Fatal("expected error for unvalidated plan")
	}
	if code := clierr.CodeOf(err); code != clierr.CodeInvalidPlan {
		t.Fatalf("expected invalid plan code, got %d", code)
	}
}

func TestRunHonorsCancellationBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &fakeBackend{swapOut: "2500000000"}
	coord := NewCoordinator(testAdapters(backend))

	state, err := coord.Run(ctx, swapStakeSweepPlan(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !state.IsComplete {
		t.Fatal("expected canceled execution to be marked complete")
	}
	if !strings.Contains(state.Error, "canceled") {
		t.Fatalf("expected cancellation error, got %q", state.Error)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("expected no adapter calls after cancellation, got %d", len(backend.calls))
	}
}

func TestRunPersistsTerminalState(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "executions.db"), filepath.Join(dir, "executions.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	backend := &fakeBackend{swapOut: "2500000000"}
	coord := NewCoordinator(testAdapters(backend), WithStore(store))

	state, err := coord.Run(context.Background(), swapStakeSweepPlan(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	saved, err := store.Get(state.ExecutionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !saved.IsComplete || saved.StatusLabel() != "completed" {
		t.Fatalf("unexpected persisted state: complete=%v status=%s", saved.IsComplete, saved.StatusLabel())
	}
}
