package plan

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nmorales/agentexec/internal/amount"
	clierr "github.com/nmorales/agentexec/internal/errors"
	"github.com/nmorales/agentexec/internal/token"
)

// Operation is the typed form of a step's parameter bag: one variant per
// action family, carrying exactly the fields that action requires.
type Operation interface {
	operation()
}

// SwapOp converts the full supplied amount of From into To.
type SwapOp struct {
	From      token.Token
	To        token.Token
	Amount    string
	AmountWei string
}

// StakeOp deposits Token into the staking position; Unstake withdraws.
type StakeOp struct {
	Token     token.Token
	Amount    string
	AmountWei string
	Unstake   bool
}

// FundOp moves user funds into the agent wallet before the plan proper.
type FundOp struct {
	Token     token.Token
	Amount    string
	AmountWei string
	From      string
	To        string
}

// SweepOp returns all residual funds of Token to the destination
// address. Always the final step of a plan; defaults to the native
// token when the step names none.
type SweepOp struct {
	Token       token.Token
	Destination string
}

func (SwapOp) operation()  {}
func (StakeOp) operation() {}
func (FundOp) operation()  {}
func (SweepOp) operation() {}

// BoundStep pairs a plan step's identity with its compiled operation.
type BoundStep struct {
	StepID int64
	Type   StepType
	Action Action
	Op     Operation
}

// swapTokens maps a swap action to its input and output tokens.
func swapTokens(a Action) (token.Token, token.Token) {
	if a == ActionSwapETHToUSDC {
		return token.ETH, token.USDC
	}
	return token.USDC, token.ETH
}

func stakeToken(a Action) token.Token {
	switch a {
	case ActionStakeETH, ActionUnstakeETH:
		return token.ETH
	default:
		return token.USDC
	}
}

// InputToken is the token a step consumes, used for plan flow checks.
// send_remaining consumes whatever is left and reports no requirement.
func (a Action) InputToken(params StepParams) (token.Token, bool) {
	switch a {
	case ActionSwapETHToUSDC, ActionSwapUSDCToETH:
		from, _ := swapTokens(a)
		return from, true
	case ActionStakeETH, ActionStakeUSDC, ActionUnstakeETH, ActionUnstakeUSDC:
		return stakeToken(a), true
	case ActionFundAgent:
		tok, err := token.Parse(params.Token)
		if err != nil {
			return "", false
		}
		return tok, true
	}
	return "", false
}

// CompileStep turns a raw step into its typed operation, resolving the
// decimal and base-unit amount representations against each other. A step
// missing a required parameter, or carrying disagreeing representations,
// fails here and never reaches an adapter.
func CompileStep(step PlanStep) (BoundStep, error) {
	bound := BoundStep{StepID: step.StepID, Type: step.Type, Action: step.Action}

	backend, ok := step.Action.Backend()
	if !ok {
		return BoundStep{}, clierr.New(clierr.CodeUnsupportedAction, fmt.Sprintf("step %d: unknown action %q", step.StepID, step.Action))
	}
	if step.Type != StepTypeOnchainKit && step.Type != StepTypeAgentKit {
		return BoundStep{}, clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: unknown step type %q", step.StepID, step.Type))
	}
	if step.Type != backend {
		return BoundStep{}, clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: action %s requires the %s backend, got %s", step.StepID, step.Action, backend, step.Type))
	}

	switch step.Action {
	case ActionSwapETHToUSDC, ActionSwapUSDCToETH:
		from, to := swapTokens(step.Action)
		dec, base, err := resolveStepAmount(step, from)
		if err != nil {
			return BoundStep{}, err
		}
		bound.Op = SwapOp{From: from, To: to, Amount: dec, AmountWei: base}
	case ActionStakeETH, ActionStakeUSDC, ActionUnstakeETH, ActionUnstakeUSDC:
		tok := stakeToken(step.Action)
		dec, base, err := resolveStepAmount(step, tok)
		if err != nil {
			return BoundStep{}, err
		}
		unstake := step.Action == ActionUnstakeETH || step.Action == ActionUnstakeUSDC
		bound.Op = StakeOp{Token: tok, Amount: dec, AmountWei: base, Unstake: unstake}
	case ActionFundAgent:
		tok, err := token.Parse(step.Params.Token)
		if err != nil {
			return BoundStep{}, clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: fund_agent requires a supported token", step.StepID))
		}
		dec, base, err := resolveStepAmount(step, tok)
		if err != nil {
			return BoundStep{}, err
		}
		if step.Params.To != "" && !common.IsHexAddress(step.Params.To) {
			return BoundStep{}, clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: invalid agent wallet address %q", step.StepID, step.Params.To))
		}
		bound.Op = FundOp{Token: tok, Amount: dec, AmountWei: base, From: step.Params.From, To: step.Params.To}
	case ActionSendRemaining:
		dest := step.Params.Destination
		if !common.IsHexAddress(dest) {
			return BoundStep{}, clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: send_remaining requires a valid destination address, got %q", step.StepID, dest))
		}
		sweepToken := token.ETH
		if step.Params.Token != "" {
			tok, err := token.Parse(step.Params.Token)
			if err != nil {
				return BoundStep{}, clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: %v", step.StepID, err))
			}
			sweepToken = tok
		}
		bound.Op = SweepOp{Token: sweepToken, Destination: dest}
	}

	return bound, nil
}

// Compile binds every step of an already-validated plan.
func Compile(p AgentPlan) ([]BoundStep, error) {
	bound := make([]BoundStep, 0, len(p.Steps))
	for _, step := range p.Steps {
		b, err := CompileStep(step)
		if err != nil {
			return nil, err
		}
		bound = append(bound, b)
	}
	return bound, nil
}

func resolveStepAmount(step PlanStep, tok token.Token) (string, string, error) {
	if step.Params.Token != "" {
		supplied, err := token.Parse(step.Params.Token)
		if err != nil {
			return "", "", clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: %v", step.StepID, err))
		}
		if supplied != tok {
			return "", "", clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: action %s operates on %s, parameters name %s", step.StepID, step.Action, tok.Symbol(), supplied.Symbol()))
		}
	}
	dec, base, err := amount.Resolve(step.Params.Amount, step.Params.AmountWei, tok.Decimals())
	if err != nil {
		return "", "", clierr.Wrap(clierr.CodeInvalidPlan, fmt.Sprintf("step %d", step.StepID), err)
	}
	if base == "0" {
		return "", "", clierr.New(clierr.CodeInvalidPlan, fmt.Sprintf("step %d: amount must be positive", step.StepID))
	}
	return dec, base, nil
}
