// Package token holds the closed set of tokens the engine can move.
package token

import (
	"fmt"
	"strings"

	clierr "github.com/nmorales/agentexec/internal/errors"
)

// Token is one of the supported transferable assets. The set is closed:
// every dispatch site switches exhaustively over these values.
type Token string

const (
	ETH  Token = "eth"
	USDC Token = "usdc"
)

type Info struct {
	Symbol   string
	Decimals int
	Native   bool
	// Address is the ERC20 contract on the execution chain; empty for the
	// native coin.
	Address string
}

// Base mainnet deployment addresses.
var registry = map[Token]Info{
	ETH:  {Symbol: "ETH", Decimals: 18, Native: true},
	USDC: {Symbol: "USDC", Decimals: 6, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"},
}

func Parse(input string) (Token, error) {
	norm := Token(strings.ToLower(strings.TrimSpace(input)))
	if _, ok := registry[norm]; !ok {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported token: %s", input))
	}
	return norm, nil
}

func (t Token) Valid() bool {
	_, ok := registry[t]
	return ok
}

func (t Token) Info() Info {
	return registry[t]
}

func (t Token) Decimals() int {
	return registry[t].Decimals
}

func (t Token) Symbol() string {
	return registry[t].Symbol
}

func (t Token) IsNative() bool {
	return registry[t].Native
}

// Other returns the counterpart token in the two-token pair.
func (t Token) Other() Token {
	if t == ETH {
		return USDC
	}
	return ETH
}
