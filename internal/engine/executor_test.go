package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/plan"
	"github.com/nmorales/agentexec/internal/token"
)

func TestExecuteStepProducesTerminalStatus(t *testing.T) {
	backend := &fakeBackend{swapOut: "42"}
	bound := plan.BoundStep{
		StepID: 1,
		Type:   plan.StepTypeOnchainKit,
		Action: plan.ActionSwapUSDCToETH,
		Op:     plan.SwapOp{From: token.USDC, To: token.ETH, Amount: "1", AmountWei: "1000000"},
	}

	outcome := executeStep(context.Background(), bound, testAdapters(backend))
	if outcome.status.Status != StepStatusCompleted {
		t.Fatalf("expected completed step, got %s", outcome.status.Status)
	}
	if !outcome.status.Status.Terminal() {
		t.Fatal("expected terminal status")
	}
	if outcome.result.AmountOutWei != "42" {
		t.Fatalf("expected swap output to carry through, got %q", outcome.result.AmountOutWei)
	}
}

func TestExecuteStepMissingBackend(t *testing.T) {
	bound := plan.BoundStep{
		StepID: 1,
		Type:   plan.StepTypeAgentKit,
		Action: plan.ActionStakeETH,
		Op:     plan.StakeOp{Token: token.ETH, Amount: "1", AmountWei: "1000000000000000000"},
	}

	outcome := executeStep(context.Background(), bound, Adapters{})
	if outcome.status.Status != StepStatusError {
		t.Fatalf("expected error status, got %s", outcome.status.Status)
	}
	if !strings.Contains(outcome.status.Error, "not configured") {
		t.Fatalf("unexpected error message: %q", outcome.status.Error)
	}
}

func TestStepErrorMessageSurfacesDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	msg := stepErrorMessage(ctx, errors.New("receipt not found"))
	if !strings.Contains(msg, "deadline") {
		t.Fatalf("expected deadline in message, got %q", msg)
	}
}

func TestStepErrorMessageKeepsTypedTimeout(t *testing.T) {
	err := clierr.New(clierr.CodeTimeout, "step timed out waiting for receipt")
	msg := stepErrorMessage(context.Background(), err)
	if msg != "step timed out waiting for receipt" {
		t.Fatalf("unexpected message: %q", msg)
	}
}
