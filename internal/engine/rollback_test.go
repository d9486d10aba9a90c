package engine

import (
	"testing"

	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/token"
)

func failedState() *ExecutionState {
	return &ExecutionState{
		ExecutionID: "exec_test",
		IsComplete:  true,
		Error:       "insufficient liquidity",
		CurrentStep: 1,
		Steps: []ExecutionStatus{
			{StepID: 1, Status: StepStatusCompleted},
			{StepID: 3, Status: StepStatusError, Error: "insufficient liquidity"},
		},
		OriginalUserAmount: &TrackedAmount{
			Token:     token.ETH,
			Amount:    "1.5",
			AmountWei: "1500000000000000000",
		},
	}
}

func TestComputeRefundUsesOriginalAmountWithoutCredits(t *testing.T) {
	refund, err := ComputeRefund(failedState())
	if err != nil {
		t.Fatalf("ComputeRefund failed: %v", err)
	}
	if refund.Token != token.ETH || refund.AmountWei != "1500000000000000000" {
		t.Fatalf("unexpected refund: %+v", refund)
	}
	if refund.Amount != "1.5" {
		t.Fatalf("unexpected refund decimal: %s", refund.Amount)
	}
	if refund.FailedStep != 3 || refund.Error != "insufficient liquidity" {
		t.Fatalf("unexpected refund context: %+v", refund)
	}
}

func TestComputeRefundReportsFailingStepID(t *testing.T) {
	state := failedState()
	refund, err := ComputeRefund(state)
	if err != nil {
		t.Fatalf("ComputeRefund failed: %v", err)
	}
	// The step id of the halting step, not its position in the plan.
	if refund.FailedStep != state.Steps[1].StepID {
		t.Fatalf("expected failed step id %d, got %d", state.Steps[1].StepID, refund.FailedStep)
	}
}

func TestComputeRefundCarriesAccountingNotes(t *testing.T) {
	state := failedState()
	state.AccountingNotes = []string{"step 1: swap output unknown, owed balance not credited"}
	refund, err := ComputeRefund(state)
	if err != nil {
		t.Fatalf("ComputeRefund failed: %v", err)
	}
	if len(refund.Notes) != 1 || refund.Notes[0] != state.AccountingNotes[0] {
		t.Fatalf("expected accounting notes on the refund, got %+v", refund.Notes)
	}
	// The untracked swap leaves the owed balance empty, so the refund
	// falls back to the original commitment.
	if refund.Token != token.ETH || refund.AmountWei != "1500000000000000000" {
		t.Fatalf("unexpected refund: %+v", refund)
	}
}

func TestComputeRefundUsesOwedBalanceAfterConversion(t *testing.T) {
	state := failedState()
	state.UserShouldReceive = &Owed{ETHWei: "0", USDCUnits: "2500000000"}
	state.LastCredited = token.USDC

	refund, err := ComputeRefund(state)
	if err != nil {
		t.Fatalf("ComputeRefund failed: %v", err)
	}
	if refund.Token != token.USDC || refund.AmountWei != "2500000000" {
		t.Fatalf("unexpected refund: %+v", refund)
	}
	if refund.Amount != "2500" {
		t.Fatalf("unexpected refund decimal: %s", refund.Amount)
	}
}

func TestComputeRefundRejectsRunningExecution(t *testing.T) {
	state := failedState()
	state.IsComplete = false
	if _, err := ComputeRefund(state); err == nil {
		t.Fatal("expected error for running execution")
	}
}

func TestComputeRefundRejectsSuccessfulExecution(t *testing.T) {
	state := failedState()
	state.Error = ""
	_, err := ComputeRefund(state)
	if err == nil {
		t.Fatal("expected error for successful execution")
	}
	if code := clierr.CodeOf(err); code != clierr.CodeInvalidPlan {
		t.Fatalf("unexpected error code: %d", code)
	}
}

func TestComputeRefundTreatsSettledBalanceAsOriginal(t *testing.T) {
	state := failedState()
	state.UserShouldReceive = &Owed{ETHWei: "0", USDCUnits: "0"}
	state.LastCredited = token.USDC

	refund, err := ComputeRefund(state)
	if err != nil {
		t.Fatalf("ComputeRefund failed: %v", err)
	}
	if refund.Token != token.ETH {
		t.Fatalf("expected original token for zero owed balance, got %s", refund.Token)
	}
}
