// Package asset handles the bridged asset's unit arithmetic. Job amounts are
// stored as human-unit decimal strings; on-chain comparisons and transfers use
// integer base units. Conversion happens exactly once per job, with the
// decimal count fixed by configuration.
package asset

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Asset describes the bridged token.
type Asset struct {
	Symbol   string
	Decimals int32
}

// New returns an Asset with a fixed decimal count.
func New(symbol string, decimals int32) *Asset {
	return &Asset{Symbol: symbol, Decimals: decimals}
}

// ToBaseUnits converts a human-unit decimal string into integer base units
// (amount * 10^decimals). It rejects negative, zero and malformed amounts, and
// amounts with more fractional digits than the asset supports.
func (a *Asset) ToBaseUnits(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %q", amount)
	}
	if d.Exponent() < -a.Decimals {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", amount, a.Decimals)
	}

	shifted := d.Shift(a.Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q is not representable in base units", amount)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits converts integer base units back to a human-unit decimal string.
func (a *Asset) FromBaseUnits(amount *big.Int) string {
	return decimal.NewFromBigInt(amount, -a.Decimals).String()
}
