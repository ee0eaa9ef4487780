// Package core provides the savings domain model: accounts, interest
// proration, and the validation errors shared by every layer.
//
// Amounts are int64 base units (the smallest indivisible unit of the
// asset). Interest math never touches floating point: the proration
// formula is computed with big.Int so that the floor division is exact
// for any realistic principal, rate, and elapsed-time product.
package core

import (
	"math/big"
	"time"
)

// SecondsPerYear is a flat 365-day year. No leap-year adjustment.
const SecondsPerYear = 365 * 24 * 60 * 60

// BpsDenominator converts basis points to a fraction: 10000 bps = 100%.
const BpsDenominator = 10000

// ProrateInterest returns the interest earned by principal at rateBps
// (basis points per 365-day year) over elapsed time:
//
//	floor(principal * rateBps * elapsedSeconds / (SecondsPerYear * 10000))
//
// The fractional remainder is forgone, never carried forward. Elapsed
// time is truncated to whole seconds. Non-positive principal, rate, or
// elapsed time yields zero.
func ProrateInterest(principal, rateBps int64, elapsed time.Duration) int64 {
	seconds := int64(elapsed / time.Second)
	if principal <= 0 || rateBps <= 0 || seconds <= 0 {
		return 0
	}

	num := new(big.Int).SetInt64(principal)
	num.Mul(num, big.NewInt(rateBps))
	num.Mul(num, big.NewInt(seconds))

	den := big.NewInt(SecondsPerYear * BpsDenominator)
	num.Quo(num, den)

	// A realistic principal earns far less than itself per interval, so
	// the quotient fits in int64 whenever the inputs do.
	return num.Int64()
}
