package plan

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nmorales/agentexec/internal/amount"
	"github.com/nmorales/agentexec/internal/token"
)

// Validate runs the structural checks on a plan and returns it with
// IsValid and Error set. Step content is never mutated. Checks run in
// order and short-circuit on the first failure; an invalid plan is never
// executed.
func Validate(p AgentPlan) AgentPlan {
	if reason := validate(p); reason != "" {
		p.IsValid = false
		p.Error = reason
		return p
	}
	p.IsValid = true
	p.Error = ""
	return p
}

func validate(p AgentPlan) string {
	if len(p.Steps) == 0 {
		return "plan has no steps"
	}

	if p.Steps[0].StepID != 1 {
		return fmt.Sprintf("step ids must start at 1, got %d", p.Steps[0].StepID)
	}
	for i := 1; i < len(p.Steps); i++ {
		if p.Steps[i].StepID <= p.Steps[i-1].StepID {
			return fmt.Sprintf("step ids must be strictly increasing: id %d follows id %d", p.Steps[i].StepID, p.Steps[i-1].StepID)
		}
	}

	for _, step := range p.Steps {
		if _, err := CompileStep(step); err != nil {
			return err.Error()
		}
	}

	initialToken, err := token.Parse(p.InitialToken)
	if err != nil {
		return fmt.Sprintf("initial token: %v", err)
	}
	base, err := amount.ToBaseUnits(p.InitialAmount, initialToken.Decimals())
	if err != nil {
		return fmt.Sprintf("initial amount: %v", err)
	}
	if base == "0" {
		return "initial amount must be positive"
	}
	first := p.Steps[0]
	if expected, ok := first.Action.InputToken(first.Params); ok && expected != initialToken {
		return fmt.Sprintf("initial token %s does not match first step's input token %s", initialToken.Symbol(), expected.Symbol())
	}

	for i, step := range p.Steps {
		if step.Action != ActionSendRemaining {
			continue
		}
		if i != len(p.Steps)-1 {
			return fmt.Sprintf("send_remaining must be the last step, found at step %d", step.StepID)
		}
		if !common.IsHexAddress(step.Params.Destination) {
			return fmt.Sprintf("send_remaining destination %q is not a valid address", step.Params.Destination)
		}
	}

	return ""
}
