package engine

import (
	"github.com/nmorales/agentexec/internal/amount"
	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/token"
)

// Refund is what a failed execution owes the user, in exact smallest
// units. It is a report, not an instruction: nothing in this package
// moves funds to satisfy it.
type Refund struct {
	ExecutionID string      `json:"execution_id"`
	Token       token.Token `json:"token"`
	Amount      string      `json:"amount"`
	AmountWei   string      `json:"amount_wei"`
	// FailedStep is the plan step id of the step the run halted on.
	FailedStep int64  `json:"failed_step"`
	Error      string `json:"error"`
	// Notes flags accounting gaps, such as a swap whose realized output
	// was never observed; the amounts above may then understate or
	// overstate what the user is owed.
	Notes []string `json:"notes,omitempty"`
}

// ComputeRefund derives the refund owed by a halted execution. Only
// complete executions that ended in error have a refund; a run still in
// progress or one that finished cleanly yields an error instead.
//
// When no completed step changed what the user holds, the refund is the
// original commitment. Otherwise it is the currently owed amount in the
// token it was last converted into.
func ComputeRefund(state *ExecutionState) (Refund, error) {
	if state == nil {
		return Refund{}, clierr.New(clierr.CodeInternal, "refund requested for nil execution state")
	}
	if !state.IsComplete {
		return Refund{}, clierr.New(clierr.CodeInvalidPlan, "execution is still running; no refund is determinable yet")
	}
	if state.Error == "" {
		return Refund{}, clierr.New(clierr.CodeInvalidPlan, "execution completed successfully; nothing to refund")
	}
	if state.OriginalUserAmount == nil {
		return Refund{}, clierr.New(clierr.CodeInternal, "execution state has no original amount recorded")
	}

	refund := Refund{
		ExecutionID: state.ExecutionID,
		Error:       state.Error,
		Notes:       state.AccountingNotes,
	}
	if state.CurrentStep >= 0 && state.CurrentStep < len(state.Steps) {
		refund.FailedStep = state.Steps[state.CurrentStep].StepID
	}

	if state.UserShouldReceive.IsZero() {
		orig := state.OriginalUserAmount
		refund.Token = orig.Token
		refund.Amount = orig.Amount
		refund.AmountWei = orig.AmountWei
		return refund, nil
	}

	tok := state.LastCredited
	if !tok.Valid() {
		return Refund{}, clierr.New(clierr.CodeInternal, "owed balance present without a credited token")
	}
	var wei string
	switch tok {
	case token.ETH:
		wei = state.UserShouldReceive.ETHWei
	case token.USDC:
		wei = state.UserShouldReceive.USDCUnits
	}
	dec, err := amount.ToDecimal(wei, tok.Decimals())
	if err != nil {
		return Refund{}, clierr.Wrap(clierr.CodeInternal, "owed balance is not a valid amount", err)
	}
	refund.Token = tok
	refund.Amount = dec
	refund.AmountWei = wei
	return refund, nil
}
