package orchestrator

import "math/big"

// NumOptions is the fixed option slot count of the batch tally circuit.
const NumOptions = 10

// Isqrt returns the integer square root of n, or 0 for non-positive n.
// Pure function; the quadratic-voting weight of a credit sum.
func Isqrt(n *big.Int) *big.Int {
	if n == nil || n.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sqrt(n)
}

// CreditSqrts applies the quadratic-voting transform to each per-option
// credit sum.
func CreditSqrts(credits []*big.Int) []*big.Int {
	out := make([]*big.Int, len(credits))
	for i, c := range credits {
		out[i] = Isqrt(c)
	}
	return out
}
