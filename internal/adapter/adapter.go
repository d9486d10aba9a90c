// Package adapter defines the chain adapter boundary the engine executes
// steps against. Adapters are opaque, possibly slow, possibly failing
// remote collaborators: they submit at most one transaction per call and
// report its outcome. They must be safe for concurrent use by independent
// executions.
package adapter

import (
	"context"

	"github.com/nmorales/agentexec/internal/plan"
	"github.com/nmorales/agentexec/internal/token"
)

// Request carries everything an adapter needs for one transaction.
// Amounts cross this boundary in smallest-unit decimal-string form.
type Request struct {
	Action    plan.Action
	Token     token.Token
	AmountWei string
	From      string
	To        string
}

// Result reports a confirmed transaction. AmountOutWei carries the
// realized output of a conversion step in smallest units, when the
// backend can determine it; empty otherwise.
type Result struct {
	TxHash       string
	Summary      string
	AmountOutWei string
}

// SwapAdapter is the onchainkit-style backend: swaps, transfers and the
// residual sweep.
type SwapAdapter interface {
	Swap(ctx context.Context, req Request) (Result, error)
	Transfer(ctx context.Context, req Request) (Result, error)
	// SweepRemaining transfers the wallet's entire remaining balance of
	// req.Token to req.To; req.AmountWei is ignored.
	SweepRemaining(ctx context.Context, req Request) (Result, error)
}

// StakeAdapter is the agentkit-style backend for staking positions.
type StakeAdapter interface {
	Stake(ctx context.Context, req Request) (Result, error)
	Unstake(ctx context.Context, req Request) (Result, error)
}
