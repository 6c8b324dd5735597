package pricing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
	"isomargin/native/venue"
)

const ytOracleContract = "YTPriceOracle"

// YTOracleConfig wires the yield-token oracle to its principal-token
// counterpart.
type YTOracleConfig struct {
	YTToken common.Address
	// PT supplies the undeducted principal-token price and the underlying
	// price source; the two instruments share one market.
	PT     *PTOracle
	Ledger venue.LedgerView
}

// YTOracle prices the yield token as the residual claim:
// underlyingPrice - principalTokenPrice. Post-maturity the yield claim is
// exhausted; the price floors at 1 wei so downstream health arithmetic never
// divides by zero.
type YTOracle struct {
	cfg YTOracleConfig
}

// NewYTOracle validates the wiring.
func NewYTOracle(cfg YTOracleConfig) (*YTOracle, error) {
	if cfg.YTToken == (common.Address{}) {
		return nil, nativecommon.NewError(ytOracleContract, nativecommon.CodeInvalidToken, "yield token address required")
	}
	if cfg.PT == nil || cfg.Ledger == nil {
		return nil, nativecommon.NewError(ytOracleContract, nativecommon.CodeInvalidToken, "principal oracle and ledger required")
	}
	return &YTOracle{cfg: cfg}, nil
}

// Token returns the yield token this oracle prices.
func (o *YTOracle) Token() common.Address { return o.cfg.YTToken }

// GetPrice returns the wad USD price of one yield token.
func (o *YTOracle) GetPrice(token common.Address) (*big.Int, error) {
	if err := checkToken(ytOracleContract, token, o.cfg.YTToken); err != nil {
		return nil, err
	}
	if err := checkCollateralOnly(ytOracleContract, o.cfg.Ledger, o.cfg.YTToken); err != nil {
		return nil, err
	}

	rawUnderlying, underlyingErr := o.cfg.PT.cfg.Underlying.GetPrice(o.cfg.PT.cfg.UnderlyingToken)
	underlying, err := positivePrice(ytOracleContract, rawUnderlying, underlyingErr)
	if err != nil {
		return nil, err
	}
	ptPrice, err := o.cfg.PT.rawPrice(o.cfg.PT.cfg.PTToken)
	if err != nil {
		return nil, err
	}

	price := new(big.Int).Sub(underlying, ptPrice)
	if price.Sign() <= 0 {
		return big.NewInt(1), nil
	}
	return price, nil
}
