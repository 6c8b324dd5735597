package pricing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
	"isomargin/native/venue"
)

const ptOracleContract = "PTPriceOracle"

// PTOracleConfig fixes the principal-token oracle wiring at construction.
type PTOracleConfig struct {
	PTToken         common.Address
	UnderlyingToken common.Address
	// Market is the venue market the rate oracle observes.
	Market      common.Address
	RateOracle  venue.RateOracle
	MarketState venue.FixedYieldMarket
	Underlying  venue.PriceSource
	Ledger      venue.LedgerView
	// TwapDuration is the observation window passed to the venue oracle,
	// in seconds.
	TwapDuration uint32
	// DeductionCoefficientBps haircuts the raw quote for collateral use.
	// Zero means no deduction.
	DeductionCoefficientBps uint64
}

// PTOracle prices a fixed-yield principal token as
// underlyingPrice x ptToAssetRate. The rate converges to 1:1 as maturity
// approaches; post-maturity the instrument redeems 1:1 so the price is the
// underlying price.
type PTOracle struct {
	cfg PTOracleConfig
}

// NewPTOracle validates the wiring and requires the venue rate oracle to be
// warmed up: a token whose oracle lacks observation cardinality is not
// eligible as collateral at all.
func NewPTOracle(cfg PTOracleConfig) (*PTOracle, error) {
	if cfg.PTToken == (common.Address{}) || cfg.UnderlyingToken == (common.Address{}) || cfg.Market == (common.Address{}) {
		return nil, nativecommon.NewError(ptOracleContract, nativecommon.CodeInvalidToken, "token and market addresses required")
	}
	if cfg.RateOracle == nil || cfg.MarketState == nil || cfg.Underlying == nil || cfg.Ledger == nil {
		return nil, nativecommon.NewError(ptOracleContract, nativecommon.CodeInvalidToken, "venue collaborators required")
	}
	if cfg.TwapDuration == 0 {
		return nil, nativecommon.NewError(ptOracleContract, nativecommon.CodeOracleNotReady, "twap duration must be positive")
	}
	if cfg.DeductionCoefficientBps >= 10_000 {
		return nil, nativecommon.NewError(ptOracleContract, nativecommon.CodeInvalidToken, "deduction coefficient must leave a positive price")
	}
	oracle := &PTOracle{cfg: cfg}
	if err := oracle.checkReady(); err != nil {
		return nil, err
	}
	return oracle, nil
}

// Token returns the principal token this oracle prices.
func (o *PTOracle) Token() common.Address { return o.cfg.PTToken }

// GetPrice returns the wad USD price of one principal token after the
// configured deduction haircut.
func (o *PTOracle) GetPrice(token common.Address) (*big.Int, error) {
	price, err := o.rawPrice(token)
	if err != nil {
		return nil, err
	}
	return applyDeduction(price, o.cfg.DeductionCoefficientBps), nil
}

// rawPrice computes the undeducted price. The yield-token oracle reuses this
// so the PT/YT complement identity holds for any configured haircut.
func (o *PTOracle) rawPrice(token common.Address) (*big.Int, error) {
	if err := checkToken(ptOracleContract, token, o.cfg.PTToken); err != nil {
		return nil, err
	}
	if err := checkCollateralOnly(ptOracleContract, o.cfg.Ledger, o.cfg.PTToken); err != nil {
		return nil, err
	}
	if err := o.checkReady(); err != nil {
		return nil, err
	}

	rawUnderlying, underlyingErr := o.cfg.Underlying.GetPrice(o.cfg.UnderlyingToken)
	underlying, err := positivePrice(ptOracleContract, rawUnderlying, underlyingErr)
	if err != nil {
		return nil, err
	}

	expired, err := o.cfg.MarketState.IsExpired()
	if err != nil {
		return nil, err
	}
	if expired {
		return new(big.Int).Set(underlying), nil
	}

	rate, err := o.cfg.RateOracle.PTToAssetRate(o.cfg.Market, o.cfg.TwapDuration)
	if err != nil {
		return nil, err
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, nativecommon.NewError(ptOracleContract, nativecommon.CodeOracleNotReady, "venue reported a non-positive rate")
	}
	return mulDiv(underlying, rate, wad), nil
}

func (o *PTOracle) checkReady() error {
	state, err := o.cfg.RateOracle.OracleState(o.cfg.Market, o.cfg.TwapDuration)
	if err != nil {
		return err
	}
	if !state.Ready() {
		return nativecommon.NewError(ptOracleContract, nativecommon.CodeOracleNotReady,
			"venue oracle warm-up incomplete (cardinality required %d)", state.CardinalityRequired)
	}
	return nil
}
