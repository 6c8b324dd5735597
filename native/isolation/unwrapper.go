package isolation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
)

const unwrapperContract = "IsolationUnwrapper"

// Unwrapper converts the isolation-mode token back into its underlying. One
// atomic conversion per call: validate, execute the external venue call,
// settle. Any failure aborts the enclosing margin-engine operation.
type Unwrapper struct {
	core traderCore
}

// NewUnwrapper constructs the unwrapping trader for a fixed token pair.
func NewUnwrapper(cfg TraderConfig) (*Unwrapper, error) {
	core, err := newTraderCore(unwrapperContract, cfg)
	if err != nil {
		return nil, err
	}
	return &Unwrapper{core: core}, nil
}

// SetPauses wires the governance pause view checked before every exchange.
func (u *Unwrapper) SetPauses(p nativecommon.PauseView) {
	if u == nil {
		return
	}
	u.core.setPauses(p)
}

// IsolationToken returns the token this trader unwraps.
func (u *Unwrapper) IsolationToken() common.Address { return u.core.cfg.IsolationToken }

// UnderlyingToken returns the standard token this trader produces.
func (u *Unwrapper) UnderlyingToken() common.Address { return u.core.cfg.UnderlyingToken }

// Exchange performs one isolation-token to underlying conversion on behalf of
// the margin engine. Pre-maturity the decoded route is swapped through the
// venue router; post-maturity the principal token is redeemed directly since
// the AMM no longer prices it meaningfully. The realised output is asserted
// against the order's minimum before it is returned for ledger crediting.
func (u *Unwrapper) Exchange(caller, tradeOriginator, receiver, outputToken, inputToken common.Address, inputAmount *big.Int, orderData []byte) (*big.Int, error) {
	if err := u.core.validateExchange(caller, tradeOriginator, receiver, outputToken, inputToken, inputAmount,
		u.core.cfg.IsolationToken, u.core.cfg.UnderlyingToken); err != nil {
		return nil, err
	}

	order, err := DecodeOrder(orderData)
	if err != nil {
		return nil, err
	}
	if err := u.core.checkDeadline(order); err != nil {
		return nil, err
	}

	expired, err := u.core.cfg.MarketState.IsExpired()
	if err != nil {
		return nil, err
	}

	var output *big.Int
	switch {
	case expired:
		if order.Kind != OrderKindRedeem {
			return nil, nativecommon.NewError(unwrapperContract, nativecommon.CodeInvalidOrderData,
				"market matured, order must route through redemption")
		}
		output, err = u.core.cfg.Router.RedeemPTForToken(u.core.cfg.Market, inputAmount, order.Redeem.MinOutput)
	default:
		if order.Kind != OrderKindSwap {
			return nil, nativecommon.NewError(unwrapperContract, nativecommon.CodeInvalidOrderData,
				"market not matured, order must route through a swap")
		}
		output, err = u.core.cfg.Router.SwapExactPTForToken(u.core.cfg.Market, inputAmount, order.Swap.MinOutput)
	}
	if err != nil {
		return nil, err
	}

	minOutput := order.MinOutput()
	if output == nil || output.Cmp(minOutput) < 0 {
		return nil, nativecommon.NewError(unwrapperContract, nativecommon.CodeInsufficientOutput,
			"output %s below minimum %s", output, minOutput)
	}
	return output, nil
}

// GetExchangeCost is unsupported: the true conversion cost depends on the
// venue's off-chain quoting and cannot be replicated here. Obtain order data
// off-chain first.
func (u *Unwrapper) GetExchangeCost(makerToken, takerToken common.Address, desiredMakerAmount *big.Int, orderData []byte) (*big.Int, error) {
	return nil, nativecommon.NewError(unwrapperContract, nativecommon.CodeNotImplemented, "exchange cost requires off-chain quoting")
}

// CreateActionsForUnwrapping assembles the margin-engine action list that
// sells the isolation token through this trader and moves the proceeds to the
// other sub-account. No state change happens here.
func (u *Unwrapper) CreateActionsForUnwrapping(params ConversionParams) ([]Action, error) {
	if err := u.core.validateParams(params); err != nil {
		return nil, err
	}
	return u.core.sellAndTransferActions(params), nil
}
