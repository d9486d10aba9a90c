package engine

import (
	"context"
	"fmt"

	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/plan"
	"go.uber.org/zap"
)

// Coordinator owns the ExecutionState for plan runs: it sequences steps,
// decides continue or halt on error, and keeps the rollback accounting
// fields current. One coordinator may serve many concurrent runs; each
// run's state is touched by exactly one goroutine.
type Coordinator struct {
	adapters Adapters
	store    *Store
	logger   *zap.Logger
}

type CoordinatorOption func(*Coordinator)

func WithStore(store *Store) CoordinatorOption {
	return func(c *Coordinator) { c.store = store }
}

func WithLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCoordinator(adapters Adapters, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{adapters: adapters, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Run executes a validated plan to completion or first failure and
// returns the terminal state. The plan is never mutated. Steps run
// strictly in order; cancellation is honored between steps, and an
// in-flight adapter call is only abandoned through its own context.
func (c *Coordinator) Run(ctx context.Context, p plan.AgentPlan) (*ExecutionState, error) {
	state, err := NewExecution(p)
	if err != nil {
		return nil, err
	}
	bound, err := plan.Compile(p)
	if err != nil {
		// A validated plan always compiles; a failure here means the plan
		// was tampered with after validation.
		return nil, err
	}
	c.persist(state)
	c.logger.Info("execution started",
		zap.String("execution_id", state.ExecutionID),
		zap.Int("steps", len(bound)),
		zap.String("initial_token", state.OriginalUserAmount.Token.Symbol()),
		zap.String("initial_amount_wei", state.OriginalUserAmount.AmountWei),
	)

	for !state.IsComplete {
		if err := ctx.Err(); err != nil {
			c.haltBetweenSteps(state, err)
			break
		}
		if err := c.Advance(ctx, state, bound); err != nil {
			return state, err
		}
	}

	c.persist(state)
	if state.Error != "" {
		c.logger.Warn("execution halted",
			zap.String("execution_id", state.ExecutionID),
			zap.Int("current_step", state.CurrentStep),
			zap.String("error", state.Error),
		)
	} else {
		c.logger.Info("execution completed", zap.String("execution_id", state.ExecutionID))
	}
	return state, nil
}

// Advance runs the step at the cursor. On completion the cursor moves
// forward and owed-balance deltas are merged; on error the run halts with
// the failing step's message and later steps never start.
func (c *Coordinator) Advance(ctx context.Context, state *ExecutionState, bound []plan.BoundStep) error {
	if state.IsComplete {
		return clierr.New(clierr.CodeInternal, "advance called on a complete execution")
	}
	if err := state.checkParallel(); err != nil {
		return err
	}
	if state.CurrentStep >= len(bound) {
		return clierr.New(clierr.CodeInternal, "execution cursor is past the last step")
	}

	idx := state.CurrentStep
	step := bound[idx]
	state.Steps[idx].Status = StepStatusRunning
	state.Touch()
	c.persist(state)
	c.logger.Info("step running",
		zap.String("execution_id", state.ExecutionID),
		zap.Int64("step_id", step.StepID),
		zap.String("action", string(step.Action)),
	)

	outcome := executeStep(ctx, step, c.adapters)
	state.Steps[idx] = outcome.status
	state.Touch()

	if outcome.status.Status == StepStatusError {
		state.Error = outcome.status.Error
		state.IsComplete = true
		c.persist(state)
		c.logger.Warn("step failed",
			zap.String("execution_id", state.ExecutionID),
			zap.Int64("step_id", step.StepID),
			zap.String("error", outcome.status.Error),
		)
		return nil
	}

	c.applyAccounting(state, step, outcome)
	state.CurrentStep++
	if state.CurrentStep == len(state.Steps) {
		state.IsComplete = true
	}
	c.persist(state)
	c.logger.Info("step completed",
		zap.String("execution_id", state.ExecutionID),
		zap.Int64("step_id", step.StepID),
		zap.String("tx_hash", outcome.status.TxHash),
	)
	return nil
}

// applyAccounting merges a completed step's balance effect into the
// owed-amount tracking. Swaps credit their realized output in the
// destination token; unstakes make a locked amount liquid again; a
// completed sweep settles everything back to the user.
func (c *Coordinator) applyAccounting(state *ExecutionState, step plan.BoundStep, outcome stepOutcome) {
	switch op := step.Op.(type) {
	case plan.SwapOp:
		out := outcome.result.AmountOutWei
		if out == "" {
			state.AccountingNotes = append(state.AccountingNotes,
				fmt.Sprintf("step %d: swap output unknown, owed balance not credited", step.StepID))
			c.logger.Warn("swap output unknown, owed tracking unchanged",
				zap.String("execution_id", state.ExecutionID),
				zap.Int64("step_id", step.StepID),
			)
			return
		}
		state.credit(op.To, out)
	case plan.StakeOp:
		if op.Unstake {
			state.credit(op.Token, op.AmountWei)
		}
	case plan.SweepOp:
		state.settle()
	}
}

func (c *Coordinator) haltBetweenSteps(state *ExecutionState, cause error) {
	state.Error = clierr.Wrap(clierr.CodeTimeout, "execution canceled between steps", cause).Error()
	state.IsComplete = true
	state.Touch()
	c.logger.Warn("execution canceled",
		zap.String("execution_id", state.ExecutionID),
		zap.Int("current_step", state.CurrentStep),
	)
}

func (c *Coordinator) persist(state *ExecutionState) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(*state); err != nil {
		c.logger.Error("persist execution state",
			zap.String("execution_id", state.ExecutionID),
			zap.Error(err),
		)
	}
}
