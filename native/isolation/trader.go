package isolation

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
	"isomargin/native/venue"
)

const moduleName = "isolation"

// TraderConfig fixes a trader's token pair and collaborators at construction.
// There is no mutation path afterwards; redeploy to change wiring.
type TraderConfig struct {
	// TraderAddress is the identity the margin engine dispatches sell legs to.
	TraderAddress   common.Address
	IsolationToken  common.Address
	UnderlyingToken common.Address
	MarginEngine    common.Address
	// Market is the venue market the router executes against.
	Market      common.Address
	Router      venue.Router
	MarketState venue.FixedYieldMarket
	Vaults      VaultRegistry
}

func (c TraderConfig) validate(contract string) error {
	if isZeroAddress(c.TraderAddress) {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidToken, "trader address required")
	}
	if isZeroAddress(c.IsolationToken) {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidToken, "isolation token address required")
	}
	if isZeroAddress(c.UnderlyingToken) {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidToken, "underlying token address required")
	}
	if isZeroAddress(c.MarginEngine) {
		return nativecommon.NewError(contract, nativecommon.CodeUnauthorized, "margin engine address required")
	}
	if isZeroAddress(c.Market) {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidMarketAddress, "venue market address required")
	}
	if c.Router == nil {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidRouterAddress, "venue router required")
	}
	if c.MarketState == nil {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidMarketAddress, "venue market state required")
	}
	if c.Vaults == nil {
		return nativecommon.NewError(contract, nativecommon.CodeInvalidOriginator, "vault registry required")
	}
	return nil
}

// traderCore carries the validation shared by the wrapper and unwrapper.
// Composition instead of a base-class hierarchy: each concrete trader embeds
// the core and supplies its own exchange semantics.
type traderCore struct {
	contract string
	cfg      TraderConfig
	pauses   nativecommon.PauseView
	now      func() uint64
}

func newTraderCore(contract string, cfg TraderConfig) (traderCore, error) {
	if err := cfg.validate(contract); err != nil {
		return traderCore{}, err
	}
	return traderCore{
		contract: contract,
		cfg:      cfg,
		now:      func() uint64 { return uint64(time.Now().Unix()) },
	}, nil
}

func (t *traderCore) setPauses(p nativecommon.PauseView) {
	if t == nil {
		return
	}
	t.pauses = p
}

// validateExchange applies the preconditions every conversion shares. Caller
// identity comes before the pause guard so a stranger always sees
// Unauthorized regardless of governance state.
func (t *traderCore) validateExchange(caller, tradeOriginator, receiver, outputToken, inputToken common.Address, inputAmount *big.Int, wantInput, wantOutput common.Address) error {
	if caller != t.cfg.MarginEngine {
		return nativecommon.NewError(t.contract, nativecommon.CodeUnauthorized, "caller %s is not the margin engine", caller.Hex())
	}
	if receiver != t.cfg.MarginEngine {
		return nativecommon.NewError(t.contract, nativecommon.CodeUnauthorized, "receiver %s is not the margin engine", receiver.Hex())
	}
	if err := nativecommon.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	genuine, err := t.cfg.Vaults.IsVault(tradeOriginator, t.cfg.IsolationToken)
	if err != nil {
		return err
	}
	if !genuine {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidOriginator, "trade originator %s is not an isolation vault", tradeOriginator.Hex())
	}
	if inputToken != wantInput {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidInputToken, "input token %s not accepted", inputToken.Hex())
	}
	if outputToken != wantOutput {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidOutputToken, "output token %s not accepted", outputToken.Hex())
	}
	if inputAmount == nil || inputAmount.Sign() <= 0 {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidInputAmount, "input amount must be positive")
	}
	return nil
}

// checkDeadline rejects swap orders whose execution window has passed. A zero
// deadline disables the check; redeem orders carry none.
func (t *traderCore) checkDeadline(order Order) error {
	if order.Kind != OrderKindSwap || order.Swap == nil || order.Swap.Deadline == 0 {
		return nil
	}
	if t.now() > order.Swap.Deadline {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidOrderData,
			"order expired at %d (rebuild the quote)", order.Swap.Deadline)
	}
	return nil
}

// validateParams checks an action-builder configuration. Builders perform no
// state change, so the checks are purely structural.
func (t *traderCore) validateParams(params ConversionParams) error {
	if params.InputAmount == nil || params.InputAmount.Sign() <= 0 {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidInputAmount, "input amount must be positive")
	}
	if params.MinOutputAmount == nil || params.MinOutputAmount.Sign() <= 0 {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidInputAmount, "minimum output amount must be positive")
	}
	if params.InputMarket == params.OutputMarket {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidInputToken, "input and output markets must differ")
	}
	if isZeroAddress(params.PrimaryAccountOwner) || isZeroAddress(params.OtherAccountOwner) {
		return nativecommon.NewError(t.contract, nativecommon.CodeInvalidOriginator, "account owners required")
	}
	if _, err := DecodeOrder(params.OrderData); err != nil {
		return err
	}
	return nil
}

// sellAndTransferActions is the common two-leg shape both builders produce: a
// sell on the primary account executed by this trader, then a transfer of the
// proceeds between the primary and other sub-accounts.
func (t *traderCore) sellAndTransferActions(params ConversionParams) []Action {
	sell := Action{
		Type:              ActionTypeSell,
		AccountID:         params.PrimaryAccountID,
		PrimaryMarketID:   params.InputMarket,
		SecondaryMarketID: params.OutputMarket,
		Amount:            new(big.Int).Set(params.InputAmount),
		OtherAddress:      t.cfg.TraderAddress,
		Data:              append([]byte(nil), params.OrderData...),
	}
	transfer := Action{
		Type:            ActionTypeTransfer,
		AccountID:       params.PrimaryAccountID,
		OtherAccountID:  params.OtherAccountID,
		PrimaryMarketID: params.OutputMarket,
		Amount:          new(big.Int).Set(params.MinOutputAmount),
	}
	return []Action{sell, transfer}
}
