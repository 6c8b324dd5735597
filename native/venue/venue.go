// Package venue declares the boundary to the external fixed-yield venue and
// constant-product pool the isolation module converts against. Everything here
// is called into, never re-implemented; the Manual implementation exists for
// tests and dev deployments only.
package venue

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ApproxParams bound the venue router's on-chain binary search when the exact
// swap outcome cannot be computed in closed form. Values are produced by the
// venue's off-chain quoting service and carried opaquely inside order data.
type ApproxParams struct {
	GuessMin      *big.Int
	GuessMax      *big.Int
	GuessOffchain *big.Int
	MaxIteration  uint64
	Eps           *big.Int
}

// Clone returns a deep copy so decoded order data cannot alias caller state.
func (p ApproxParams) Clone() ApproxParams {
	clone := ApproxParams{MaxIteration: p.MaxIteration}
	if p.GuessMin != nil {
		clone.GuessMin = new(big.Int).Set(p.GuessMin)
	}
	if p.GuessMax != nil {
		clone.GuessMax = new(big.Int).Set(p.GuessMax)
	}
	if p.GuessOffchain != nil {
		clone.GuessOffchain = new(big.Int).Set(p.GuessOffchain)
	}
	if p.Eps != nil {
		clone.Eps = new(big.Int).Set(p.Eps)
	}
	return clone
}

// Router is the venue's swap entry point. The router pulls the input token,
// executes against the market and returns the realised output amount. Each
// call enforces the minimum embedded in its arguments and fails the whole
// operation when it cannot be met.
type Router interface {
	SwapExactTokenForPT(market common.Address, amountIn, minPtOut *big.Int, approx ApproxParams) (*big.Int, error)
	SwapExactPTForToken(market common.Address, amountIn, minTokenOut *big.Int) (*big.Int, error)
	RedeemPTForToken(market common.Address, amountIn, minTokenOut *big.Int) (*big.Int, error)
}

// FixedYieldMarket exposes the maturity state of the venue market. Post
// maturity the AMM no longer prices the principal token meaningfully and
// conversions must redeem instead of swap.
type FixedYieldMarket interface {
	IsExpired() (bool, error)
}

// OracleState reports the warm-up status of the venue's TWAP rate oracle.
type OracleState struct {
	IncreaseCardinalityRequired bool
	CardinalityRequired         uint32
	OldestObservationSatisfied  bool
}

// Ready reports whether the oracle has enough observations to serve rates.
func (s OracleState) Ready() bool {
	return !s.IncreaseCardinalityRequired && s.OldestObservationSatisfied
}

// RateOracle is the venue's own time-weighted rate accessor for principal
// tokens. Rates are wad scaled (1e18) units of underlying per principal token.
type RateOracle interface {
	PTToAssetRate(market common.Address, twapDuration uint32) (*big.Int, error)
	OracleState(market common.Address, twapDuration uint32) (OracleState, error)
}

// Pool is the constant-product pair backing an LP share token.
type Pool interface {
	Reserves() (*big.Int, *big.Int, error)
	TotalSupply() (*big.Int, error)
	// KLast is the invariant recorded at the last liquidity mint; zero when
	// the protocol fee has never been accrued against.
	KLast() (*big.Int, error)
	// FeeTo is the protocol fee recipient; the zero address means the fee
	// switch is off.
	FeeTo() (common.Address, error)
}

// PriceSource resolves the margin protocol's own USD price for a standard
// token, wad scaled. The valuation engine composes these with venue state.
type PriceSource interface {
	GetPrice(token common.Address) (*big.Int, error)
}

// LedgerView exposes the slice of margin-ledger market configuration the
// valuation engine depends on. Isolation-mode instruments must be listed as
// closing (collateral only, never borrowable).
type LedgerView interface {
	MarketIsClosing(token common.Address) (bool, error)
}
