package pricing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
	"isomargin/native/venue"
)

const lpOracleContract = "LPTokenPriceOracle"

// LPOracleConfig wires the LP-share oracle to its pool and price sources.
type LPOracleConfig struct {
	LPToken common.Address
	Token0  common.Address
	Token1  common.Address
	Pool    venue.Pool
	Prices  venue.PriceSource
	Ledger  venue.LedgerView
}

// LPOracle prices one share of a constant-product pool at its fair value
// 2*sqrt(reserve0*price0 * reserve1*price1) / totalSupply, computed from live
// reserves and each token's independent oracle price rather than the pool's
// own spot ratio, which is manipulable within a block.
type LPOracle struct {
	cfg LPOracleConfig
}

// NewLPOracle validates the wiring.
func NewLPOracle(cfg LPOracleConfig) (*LPOracle, error) {
	if cfg.LPToken == (common.Address{}) || cfg.Token0 == (common.Address{}) || cfg.Token1 == (common.Address{}) {
		return nil, nativecommon.NewError(lpOracleContract, nativecommon.CodeInvalidToken, "token addresses required")
	}
	if cfg.Pool == nil || cfg.Prices == nil || cfg.Ledger == nil {
		return nil, nativecommon.NewError(lpOracleContract, nativecommon.CodeInvalidToken, "pool, price source and ledger required")
	}
	return &LPOracle{cfg: cfg}, nil
}

// Token returns the LP share token this oracle prices.
func (o *LPOracle) Token() common.Address { return o.cfg.LPToken }

// GetPrice returns the wad USD fair value of one LP share. When the pool
// charges a protocol fee on invariant growth, the supply is first inflated by
// the fee mint that growth since kLast entitles the recipient to, so the
// price reflects dilution not yet realised on-chain.
func (o *LPOracle) GetPrice(token common.Address) (*big.Int, error) {
	if err := checkToken(lpOracleContract, token, o.cfg.LPToken); err != nil {
		return nil, err
	}
	if err := checkCollateralOnly(lpOracleContract, o.cfg.Ledger, o.cfg.LPToken); err != nil {
		return nil, err
	}

	reserve0, reserve1, err := o.cfg.Pool.Reserves()
	if err != nil {
		return nil, err
	}
	supply, err := o.cfg.Pool.TotalSupply()
	if err != nil {
		return nil, err
	}
	if supply == nil || supply.Sign() <= 0 {
		return nil, nativecommon.NewError(lpOracleContract, nativecommon.CodeInvalidToken, "pool has no outstanding supply")
	}
	rawPrice0, price0Err := o.cfg.Prices.GetPrice(o.cfg.Token0)
	price0, err := positivePrice(lpOracleContract, rawPrice0, price0Err)
	if err != nil {
		return nil, err
	}
	rawPrice1, price1Err := o.cfg.Prices.GetPrice(o.cfg.Token1)
	price1, err := positivePrice(lpOracleContract, rawPrice1, price1Err)
	if err != nil {
		return nil, err
	}

	supply, err = o.feeAdjustedSupply(supply, reserve0, reserve1)
	if err != nil {
		return nil, err
	}

	value0 := new(big.Int).Mul(reserve0, price0)
	value1 := new(big.Int).Mul(reserve1, price1)
	root := sqrt(new(big.Int).Mul(value0, value1))
	fair := new(big.Int).Mul(two, root)
	return fair.Quo(fair, supply), nil
}

// feeAdjustedSupply mirrors the pool's own fee mint: when sqrt(k) has grown
// past sqrt(kLast), the recipient is entitled to
// supply*(rootK-rootKLast)/(5*rootK+rootKLast) new shares on the next mint.
func (o *LPOracle) feeAdjustedSupply(supply, reserve0, reserve1 *big.Int) (*big.Int, error) {
	feeTo, err := o.cfg.Pool.FeeTo()
	if err != nil {
		return nil, err
	}
	if feeTo == (common.Address{}) {
		return supply, nil
	}
	kLast, err := o.cfg.Pool.KLast()
	if err != nil {
		return nil, err
	}
	if kLast == nil || kLast.Sign() == 0 {
		return supply, nil
	}
	rootK := sqrt(new(big.Int).Mul(reserve0, reserve1))
	rootKLast := sqrt(kLast)
	if rootK.Cmp(rootKLast) <= 0 {
		return supply, nil
	}
	numerator := new(big.Int).Mul(supply, new(big.Int).Sub(rootK, rootKLast))
	denominator := new(big.Int).Mul(five, rootK)
	denominator.Add(denominator, rootKLast)
	feeMint := numerator.Quo(numerator, denominator)
	return new(big.Int).Add(supply, feeMint), nil
}
