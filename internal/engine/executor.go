package engine

import (
	"context"
	"fmt"

	"github.com/nmorales/agentexec/internal/adapter"
	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/plan"
)

// Adapters bundles the two executor backends a run dispatches into.
type Adapters struct {
	Swap  adapter.SwapAdapter
	Stake adapter.StakeAdapter
}

// stepOutcome pairs the terminal step record with accounting inputs the
// coordinator needs when the step completed.
type stepOutcome struct {
	status ExecutionStatus
	result adapter.Result
}

// executeStep dispatches one bound step to its action handler and
// normalizes the outcome into a terminal ExecutionStatus. Exactly one
// adapter invocation happens per call and no error escapes this
// boundary: adapter failures, timeouts and cancellations all come back
// as a step in the error state.
func executeStep(ctx context.Context, bound plan.BoundStep, deps Adapters) stepOutcome {
	status := ExecutionStatus{StepID: bound.StepID, Status: StepStatusRunning}

	result, err := dispatch(ctx, bound, deps)
	if err != nil {
		status.Status = StepStatusError
		status.Error = stepErrorMessage(ctx, err)
		return stepOutcome{status: status}
	}
	status.Status = StepStatusCompleted
	status.TxHash = result.TxHash
	status.Result = result.Summary
	return stepOutcome{status: status, result: result}
}

func dispatch(ctx context.Context, bound plan.BoundStep, deps Adapters) (adapter.Result, error) {
	switch op := bound.Op.(type) {
	case plan.SwapOp:
		if deps.Swap == nil {
			return adapter.Result{}, clierr.New(clierr.CodeInternal, "swap backend is not configured")
		}
		return deps.Swap.Swap(ctx, adapter.Request{
			Action:    bound.Action,
			Token:     op.From,
			AmountWei: op.AmountWei,
		})
	case plan.StakeOp:
		if deps.Stake == nil {
			return adapter.Result{}, clierr.New(clierr.CodeInternal, "staking backend is not configured")
		}
		req := adapter.Request{
			Action:    bound.Action,
			Token:     op.Token,
			AmountWei: op.AmountWei,
		}
		if op.Unstake {
			return deps.Stake.Unstake(ctx, req)
		}
		return deps.Stake.Stake(ctx, req)
	case plan.FundOp:
		if deps.Swap == nil {
			return adapter.Result{}, clierr.New(clierr.CodeInternal, "transfer backend is not configured")
		}
		return deps.Swap.Transfer(ctx, adapter.Request{
			Action:    bound.Action,
			Token:     op.Token,
			AmountWei: op.AmountWei,
			From:      op.From,
			To:        op.To,
		})
	case plan.SweepOp:
		if deps.Swap == nil {
			return adapter.Result{}, clierr.New(clierr.CodeInternal, "transfer backend is not configured")
		}
		return deps.Swap.SweepRemaining(ctx, adapter.Request{
			Action: bound.Action,
			Token:  op.Token,
			To:     op.Destination,
		})
	}
	// Unreachable for plans that passed validation.
	return adapter.Result{}, clierr.New(clierr.CodeUnsupportedAction, fmt.Sprintf("step %d: no handler for action %q", bound.StepID, bound.Action))
}

// stepErrorMessage surfaces deadline expiry as a timeout error even when
// the adapter reported the raw context error.
func stepErrorMessage(ctx context.Context, err error) string {
	if code := clierr.CodeOf(err); code == clierr.CodeTimeout {
		return err.Error()
	}
	if ctx.Err() == context.DeadlineExceeded {
		return clierr.Wrap(clierr.CodeTimeout, "step deadline exceeded", err).Error()
	}
	return err.Error()
}
