package main

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amounts are expressed in grin on the command line and in nanogrin
// everywhere else.
const grinExponent = 9

var (
	errInvalidAmount = fmt.Errorf(
		"amount must be a positive number of grin with at most %d decimals",
		grinExponent,
	)
	maxAmount = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

// parseAmount converts a grin amount to nanogrin.
func parseAmount(amount string) (uint64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		return 0, errInvalidAmount
	}
	nano := d.Shift(grinExponent)
	if !nano.Equal(nano.Floor()) || nano.GreaterThan(maxAmount) {
		return 0, errInvalidAmount
	}
	return nano.BigInt().Uint64(), nil
}

// formatAmount converts an amount of nanogrin to grin.
func formatAmount(nano uint64) string {
	return decimal.NewFromBigInt(
		new(big.Int).SetUint64(nano), -grinExponent,
	).StringFixed(grinExponent)
}
