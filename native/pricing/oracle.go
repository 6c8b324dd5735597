// Package pricing derives defensible mark-to-market USD prices for
// isolation-mode tokens from the external venue's own invariants. Every
// oracle is a pure function of current venue state: no caching, recomputed on
// each query.
package pricing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
	"isomargin/native/venue"
)

// PriceOracle resolves the wad-scaled USD value of one unit of a token.
type PriceOracle interface {
	GetPrice(token common.Address) (*big.Int, error)
}

func checkToken(contract string, token, want common.Address) error {
	if token == (common.Address{}) {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidToken, "token address must not be zero")
	}
	if token != want {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidToken, "token %s not configured for this oracle", token.Hex())
	}
	return nil
}

// checkCollateralOnly enforces that the margin ledger lists the instrument as
// closing: isolation-mode tokens are collateral only, never borrowable.
func checkCollateralOnly(contract string, ledger venue.LedgerView, token common.Address) error {
	closing, err := ledger.MarketIsClosing(token)
	if err != nil {
		return err
	}
	if !closing {
		return nativecommon.NewError(contract, nativecommon.CodeMustNotBeBorrowable, "market for %s must be closing", token.Hex())
	}
	return nil
}

func positivePrice(contract string, price *big.Int, err error) (*big.Int, error) {
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, nativecommon.NewError(contract, nativecommon.CodeInvalidToken, "underlying price must be positive")
	}
	return price, nil
}
