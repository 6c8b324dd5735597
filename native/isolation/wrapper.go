package isolation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
)

const wrapperContract = "IsolationWrapper"

// Wrapper converts the underlying token into the isolation-mode token. The
// mirror image of the Unwrapper with one asymmetry: there is no post-call
// output assertion because the minimum is expressed inside the order data and
// enforced by the venue router itself.
type Wrapper struct {
	core traderCore
}

// NewWrapper constructs the wrapping trader for a fixed token pair.
func NewWrapper(cfg TraderConfig) (*Wrapper, error) {
	core, err := newTraderCore(wrapperContract, cfg)
	if err != nil {
		return nil, err
	}
	return &Wrapper{core: core}, nil
}

// SetPauses wires the governance pause view checked before every exchange.
func (w *Wrapper) SetPauses(p nativecommon.PauseView) {
	if w == nil {
		return
	}
	w.core.setPauses(p)
}

// IsolationToken returns the token this trader produces.
func (w *Wrapper) IsolationToken() common.Address { return w.core.cfg.IsolationToken }

// UnderlyingToken returns the standard token this trader consumes.
func (w *Wrapper) UnderlyingToken() common.Address { return w.core.cfg.UnderlyingToken }

// Exchange performs one underlying to isolation-token conversion on behalf of
// the margin engine via a single router swap.
func (w *Wrapper) Exchange(caller, tradeOriginator, receiver, outputToken, inputToken common.Address, inputAmount *big.Int, orderData []byte) (*big.Int, error) {
	if err := w.core.validateExchange(caller, tradeOriginator, receiver, outputToken, inputToken, inputAmount,
		w.core.cfg.UnderlyingToken, w.core.cfg.IsolationToken); err != nil {
		return nil, err
	}

	order, err := DecodeOrder(orderData)
	if err != nil {
		return nil, err
	}
	if order.Kind != OrderKindSwap {
		return nil, nativecommon.NewError(wrapperContract, nativecommon.CodeInvalidOrderData, "wrapping only routes through a swap")
	}
	if err := w.core.checkDeadline(order); err != nil {
		return nil, err
	}

	return w.core.cfg.Router.SwapExactTokenForPT(w.core.cfg.Market, inputAmount, order.Swap.MinOutput, order.Swap.Approx)
}

// GetExchangeCost is unsupported; see Unwrapper.GetExchangeCost.
func (w *Wrapper) GetExchangeCost(makerToken, takerToken common.Address, desiredMakerAmount *big.Int, orderData []byte) (*big.Int, error) {
	return nil, nativecommon.NewError(wrapperContract, nativecommon.CodeNotImplemented, "exchange cost requires off-chain quoting")
}

// CreateActionsForWrapping assembles the action list that sources the
// underlying from the other sub-account and sells it through this trader into
// the isolation position. No state change happens here.
func (w *Wrapper) CreateActionsForWrapping(params ConversionParams) ([]Action, error) {
	if err := w.core.validateParams(params); err != nil {
		return nil, err
	}
	order, err := DecodeOrder(params.OrderData)
	if err != nil {
		return nil, err
	}
	if order.Kind != OrderKindSwap {
		return nil, nativecommon.NewError(wrapperContract, nativecommon.CodeInvalidOrderData, "wrapping only routes through a swap")
	}

	fund := Action{
		Type:            ActionTypeTransfer,
		AccountID:       params.OtherAccountID,
		OtherAccountID:  params.PrimaryAccountID,
		PrimaryMarketID: params.InputMarket,
		Amount:          new(big.Int).Set(params.InputAmount),
	}
	legs := w.core.sellAndTransferActions(params)
	// The sell proceeds already land on the primary account; the trailing
	// transfer leg is only needed when unwrapping back out.
	return []Action{fund, legs[0]}, nil
}
