// Package engine turns a validated agent plan into a sequence of
// confirmed or failed on-chain effects, tracking balances exactly and
// keeping enough state for partial-failure recovery.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nmorales/agentexec/internal/amount"
	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/plan"
	"github.com/nmorales/agentexec/internal/token"
)

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusError     StepStatus = "error"
)

// Terminal reports whether a step status admits no further transition.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusError
}

// ExecutionStatus is the per-step record. Write-once past running: a step
// reaches exactly one of completed or error and stays there.
type ExecutionStatus struct {
	StepID int64      `json:"step_id"`
	Status StepStatus `json:"status"`
	TxHash string     `json:"tx_hash,omitempty"`
	Error  string     `json:"error,omitempty"`
	Result string     `json:"result,omitempty"`
}

// TrackedAmount is a token quantity in both representations. AmountWei is
// the canonical integer form.
type TrackedAmount struct {
	Token     token.Token `json:"token"`
	Amount    string      `json:"amount"`
	AmountWei string      `json:"amount_wei"`
}

// Owed tracks what the user is currently owed, per token, in smallest
// units. The two-field shape mirrors the supported token pair.
type Owed struct {
	ETHWei    string `json:"eth_wei"`
	USDCUnits string `json:"usdc_units"`
}

func (o *Owed) IsZero() bool {
	if o == nil {
		return true
	}
	return amount.MustBig(o.ETHWei).Sign() == 0 && amount.MustBig(o.USDCUnits).Sign() == 0
}

// ExecutionState is the aggregate root for one plan run. The plan is
// immutable shared input; everything else is owned exclusively by the
// coordinator driving this state.
type ExecutionState struct {
	ExecutionID string            `json:"execution_id"`
	Plan        plan.AgentPlan    `json:"plan"`
	Steps       []ExecutionStatus `json:"steps"`
	CurrentStep int               `json:"current_step"`
	IsComplete  bool              `json:"is_complete"`
	Error       string            `json:"error,omitempty"`

	// OriginalUserAmount is captured once before any step runs and is the
	// rollback reference; never mutated afterwards.
	OriginalUserAmount *TrackedAmount `json:"original_user_amount,omitempty"`
	// UserShouldReceive is written only by completed steps that change
	// what the user is owed. Fields only grow, except a completed sweep
	// zeroes them.
	UserShouldReceive *Owed `json:"user_should_receive,omitempty"`
	// LastCredited names the token most recently credited to
	// UserShouldReceive, so the refund surface can report the owed amount
	// in its current form.
	LastCredited token.Token `json:"last_credited,omitempty"`
	// AccountingNotes records completed steps whose balance effect could
	// not be tracked, so the refund surface can flag the gap.
	AccountingNotes []string `json:"accounting_notes,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func NewExecutionID() string {
	return "exec_" + uuid.NewString()
}

// NewExecution accepts a validated plan and prepares the initial state:
// all steps pending, cursor at zero, and the user's original commitment
// captured in exact integer form.
func NewExecution(p plan.AgentPlan) (*ExecutionState, error) {
	if !p.IsValid {
		reason := p.Error
		if reason == "" {
			reason = "plan has not been validated"
		}
		return nil, clierr.New(clierr.CodeInvalidPlan, reason)
	}

	initialToken, err := token.Parse(p.InitialToken)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInvalidPlan, "initial token", err)
	}
	dec, base, err := amount.Resolve(p.InitialAmount, "", initialToken.Decimals())
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInvalidPlan, "initial amount", err)
	}

	steps := make([]ExecutionStatus, 0, len(p.Steps))
	for _, step := range p.Steps {
		steps = append(steps, ExecutionStatus{StepID: step.StepID, Status: StepStatusPending})
	}

	now := time.Now().UTC().Format(time.RFC3339)
	return &ExecutionState{
		ExecutionID: NewExecutionID(),
		Plan:        p,
		Steps:       steps,
		CurrentStep: 0,
		OriginalUserAmount: &TrackedAmount{
			Token:     initialToken,
			Amount:    dec,
			AmountWei: base,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *ExecutionState) Touch() {
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// StatusLabel summarizes the run for listings: running, completed or
// failed.
func (s *ExecutionState) StatusLabel() string {
	switch {
	case !s.IsComplete:
		return "running"
	case s.Error != "":
		return "failed"
	default:
		return "completed"
	}
}

// credit grows the owed amount for one token. Amounts are exact integer
// strings; the addition is big.Int based.
func (s *ExecutionState) credit(tok token.Token, wei string) {
	if amount.MustBig(wei).Sign() <= 0 {
		return
	}
	if s.UserShouldReceive == nil {
		s.UserShouldReceive = &Owed{ETHWei: "0", USDCUnits: "0"}
	}
	switch tok {
	case token.ETH:
		s.UserShouldReceive.ETHWei = addWei(s.UserShouldReceive.ETHWei, wei)
	case token.USDC:
		s.UserShouldReceive.USDCUnits = addWei(s.UserShouldReceive.USDCUnits, wei)
	}
	s.LastCredited = tok
}

// settle zeroes the owed amounts after a completed sweep returned the
// residual funds to the user.
func (s *ExecutionState) settle() {
	if s.UserShouldReceive == nil {
		return
	}
	s.UserShouldReceive.ETHWei = "0"
	s.UserShouldReceive.USDCUnits = "0"
}

func addWei(a, b string) string {
	sum := amount.MustBig(a)
	sum.Add(sum, amount.MustBig(b))
	return sum.String()
}

// checkParallel verifies the structural invariant between plan and state
// step sequences.
func (s *ExecutionState) checkParallel() error {
	if len(s.Steps) != len(s.Plan.Steps) {
		return clierr.New(clierr.CodeInternal, fmt.Sprintf("state has %d step records for %d plan steps", len(s.Steps), len(s.Plan.Steps)))
	}
	for i := range s.Steps {
		if s.Steps[i].StepID != s.Plan.Steps[i].StepID {
			return clierr.New(clierr.CodeInternal, fmt.Sprintf("step record %d has id %d, plan step has id %d", i, s.Steps[i].StepID, s.Plan.Steps[i].StepID))
		}
	}
	return nil
}
