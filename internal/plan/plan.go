// Package plan defines the agent plan consumed by the engine and the
// structural validation that gates execution.
package plan

// Action identifies one of the eight supported on-chain operations. The
// set is closed; the step executor switches exhaustively over it.
type Action string

const (
	ActionSwapETHToUSDC Action = "swap_eth_to_usdc"
	ActionSwapUSDCToETH Action = "swap_usdc_to_eth"
	ActionStakeETH      Action = "stake_eth"
	ActionStakeUSDC     Action = "stake_usdc"
	ActionUnstakeETH    Action = "unstake_eth"
	ActionUnstakeUSDC   Action = "unstake_usdc"
	ActionFundAgent     Action = "fund_agent"
	ActionSendRemaining Action = "send_remaining"
)

// StepType selects the executor backend for a step.
type StepType string

const (
	StepTypeOnchainKit StepType = "onchainkit"
	StepTypeAgentKit   StepType = "agentkit"
)

// Backend returns the step type an action is served by: swaps and
// transfers run through the onchainkit backend, staking through agentkit.
func (a Action) Backend() (StepType, bool) {
	switch a {
	case ActionSwapETHToUSDC, ActionSwapUSDCToETH, ActionFundAgent, ActionSendRemaining:
		return StepTypeOnchainKit, true
	case ActionStakeETH, ActionStakeUSDC, ActionUnstakeETH, ActionUnstakeUSDC:
		return StepTypeAgentKit, true
	}
	return "", false
}

func (a Action) Known() bool {
	_, ok := a.Backend()
	return ok
}

// StepParams is the loosely-typed parameter bag as produced by the
// planner. The validator compiles it into a typed Operation so that a
// missing parameter fails at construction time, not mid-execution.
type StepParams struct {
	Token       string `json:"token,omitempty"`
	Amount      string `json:"amount,omitempty"`
	AmountWei   string `json:"amount_wei,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Destination string `json:"destination,omitempty"`
	Label       string `json:"label,omitempty"`
}

type PlanStep struct {
	StepID int64      `json:"step_id"`
	Type   StepType   `json:"type"`
	Action Action     `json:"action"`
	Params StepParams `json:"parameters"`
}

// AgentPlan is the validated, ordered sequence of steps for one run. It is
// immutable input once execution starts; the engine never writes to it.
type AgentPlan struct {
	IsValid            bool       `json:"is_valid"`
	Error              string     `json:"error,omitempty"`
	Steps              []PlanStep `json:"steps"`
	InitialToken       string     `json:"initial_token"`
	InitialAmount      string     `json:"initial_amount"`
	DestinationAddress string     `json:"destination_address,omitempty"`
}
