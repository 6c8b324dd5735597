package pricing

import "math/big"

var (
	wad         = big.NewInt(1_000_000_000_000_000_000)
	basisPoints = big.NewInt(10_000)
	two         = big.NewInt(2)
	five        = big.NewInt(5)
)

// mulDiv computes a*b/den with floor division, allocation-free for callers.
func mulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// sqrt is the integer square root. math/big implements the Newton iteration;
// products of four wad-scaled factors exceed 256 bits, so arbitrary precision
// is required here.
func sqrt(x *big.Int) *big.Int {
	return new(big.Int).Sqrt(x)
}

// applyDeduction shaves the configured basis-point haircut off a raw quote.
func applyDeduction(price *big.Int, deductionBps uint64) *big.Int {
	if deductionBps == 0 {
		return price
	}
	keep := new(big.Int).SetUint64(10_000 - deductionBps)
	return mulDiv(price, keep, basisPoints)
}
