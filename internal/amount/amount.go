// Package amount converts between human-readable decimal token amounts and
// their exact smallest-unit integer form. All arithmetic is big.Int based;
// binary floating point is never involved, so repeated conversions within a
// plan cannot drift.
package amount

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/nmorales/agentexec/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToBaseUnits converts a decimal string like "1.25" into its smallest-unit
// integer string at the given precision. The input must be non-negative,
// use "." as the separator, carry no grouping characters, and not exceed
// the token's decimals in fractional digits.
func ToBaseUnits(decimal string, decimals int) (string, error) {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return "", clierr.New(clierr.CodeInvalidAmount, "amount is required")
	}
	if decimals < 0 {
		return "", clierr.New(clierr.CodeInvalidAmount, "decimals must be >= 0")
	}
	if !decimalPattern.MatchString(clean) {
		return "", clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("amount must be a non-negative decimal like 1.23, got %q", decimal))
	}

	parts := strings.SplitN(clean, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return "", clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("amount precision exceeds token decimals (%d)", decimals))
	}

	fracPart += strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return "0", nil
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", clierr.New(clierr.CodeInvalidAmount, "invalid decimal amount")
	}
	return combined, nil
}

// ToDecimal converts a smallest-unit integer string back into canonical
// decimal form: no leading zeros, no trailing fractional zeros, "." as the
// separator. ToDecimal(ToBaseUnits(a, d), d) == a for canonical a with at
// most d fractional digits.
func ToDecimal(baseUnits string, decimals int) (string, error) {
	clean := strings.TrimSpace(baseUnits)
	if clean == "" {
		return "", clierr.New(clierr.CodeInvalidAmount, "base-unit amount is required")
	}
	if decimals < 0 {
		return "", clierr.New(clierr.CodeInvalidAmount, "decimals must be >= 0")
	}
	n, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return "", clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("base-unit amount must be an integer string, got %q", baseUnits))
	}
	if n.Sign() < 0 {
		return "", clierr.New(clierr.CodeInvalidAmount, "base-unit amount must be non-negative")
	}
	if decimals == 0 {
		return n.String(), nil
	}

	s := n.String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}

// Resolve reconciles the two representations of one quantity. Either form
// may be empty; the other is derived. A supplied decimal keeps the
// caller's spelling, trailing fractional zeros included, so amounts echo
// back exactly as they were written; the base-unit form is always
// canonical. When both are present they must agree after conversion at
// the given precision.
func Resolve(decimal, baseUnits string, decimals int) (string, string, error) {
	decimal = strings.TrimSpace(decimal)
	baseUnits = strings.TrimSpace(baseUnits)
	switch {
	case decimal == "" && baseUnits == "":
		return "", "", clierr.New(clierr.CodeInvalidAmount, "amount is required in decimal or base-unit form")
	case baseUnits == "":
		base, err := ToBaseUnits(decimal, decimals)
		if err != nil {
			return "", "", err
		}
		return decimal, base, nil
	case decimal == "":
		dec, err := ToDecimal(baseUnits, decimals)
		if err != nil {
			return "", "", err
		}
		base, err := ToBaseUnits(dec, decimals)
		if err != nil {
			return "", "", err
		}
		return dec, base, nil
	}

	base, err := ToBaseUnits(decimal, decimals)
	if err != nil {
		return "", "", err
	}
	supplied, ok := new(big.Int).SetString(baseUnits, 10)
	if !ok || supplied.Sign() < 0 {
		return "", "", clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("base-unit amount must be a non-negative integer string, got %q", baseUnits))
	}
	if supplied.String() != base {
		return "", "", clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("amount %q and base-unit amount %q disagree at %d decimals", decimal, baseUnits, decimals))
	}
	return decimal, base, nil
}

// MustBig parses a base-unit string already validated by this package.
func MustBig(baseUnits string) *big.Int {
	n, ok := new(big.Int).SetString(baseUnits, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}
