package isolation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	nativecommon "isomargin/native/common"
	"isomargin/native/venue"
)

// OrderSchemaVersion tags the order wire format. A mismatch means the
// off-chain quoter is stale and the order must be rebuilt, not reinterpreted.
const OrderSchemaVersion = 1

const orderDataContract = "IsolationOrderData"

// OrderKind discriminates the venue-call variants an order can describe.
type OrderKind uint8

const (
	OrderKindSwap   OrderKind = 1
	OrderKindRedeem OrderKind = 2
)

// SwapOrder routes a conversion through the venue router's swap path. The
// minimum output is the caller-supplied slippage bound; the approx parameters
// drive the router's bounded iteration. Deadline is the unix time after which
// the traders refuse to execute the order; zero disables the check.
type SwapOrder struct {
	MinOutput *big.Int
	Approx    venue.ApproxParams
	Deadline  uint64
}

// RedeemOrder routes a post-maturity conversion through direct redemption.
type RedeemOrder struct {
	MinOutput *big.Int
}

// Order is the decoded tagged union. Exactly one branch is populated.
type Order struct {
	Kind   OrderKind
	Swap   *SwapOrder
	Redeem *RedeemOrder
}

// MinOutput returns the slippage bound of whichever branch is populated.
func (o Order) MinOutput() *big.Int {
	switch o.Kind {
	case OrderKindSwap:
		if o.Swap != nil {
			return o.Swap.MinOutput
		}
	case OrderKindRedeem:
		if o.Redeem != nil {
			return o.Redeem.MinOutput
		}
	}
	return nil
}

type orderEnvelope struct {
	Version uint8
	Kind    uint8
	Payload []byte
}

// EncodeSwapOrder serialises a swap order into the opaque wire form carried
// through the margin engine. Used by the off-chain order construction layer
// and by tests.
func EncodeSwapOrder(order SwapOrder) ([]byte, error) {
	payload, err := rlp.EncodeToBytes(&order)
	if err != nil {
		return nil, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "encode swap payload: %v", err)
	}
	return encodeEnvelope(OrderKindSwap, payload)
}

// EncodeRedeemOrder serialises a redeem order.
func EncodeRedeemOrder(order RedeemOrder) ([]byte, error) {
	payload, err := rlp.EncodeToBytes(&order)
	if err != nil {
		return nil, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "encode redeem payload: %v", err)
	}
	return encodeEnvelope(OrderKindRedeem, payload)
}

func encodeEnvelope(kind OrderKind, payload []byte) ([]byte, error) {
	envelope := orderEnvelope{Version: OrderSchemaVersion, Kind: uint8(kind), Payload: payload}
	encoded, err := rlp.EncodeToBytes(&envelope)
	if err != nil {
		return nil, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "encode envelope: %v", err)
	}
	return encoded, nil
}

// DecodeOrder parses opaque order data into its tagged form. Decoding is
// strict: trailing bytes, unknown kinds and version mismatches are all
// rejected so a stale or corrupted quote can never be half-interpreted.
func DecodeOrder(data []byte) (Order, error) {
	if len(data) == 0 {
		return Order{}, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "order data required")
	}
	var envelope orderEnvelope
	if err := rlp.DecodeBytes(data, &envelope); err != nil {
		return Order{}, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "decode envelope: %v", err)
	}
	if envelope.Version != OrderSchemaVersion {
		return Order{}, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData,
			"schema version %d not supported, want %d (rebuild the quote)", envelope.Version, OrderSchemaVersion)
	}
	switch OrderKind(envelope.Kind) {
	case OrderKindSwap:
		var swap SwapOrder
		if err := rlp.DecodeBytes(envelope.Payload, &swap); err != nil {
			return Order{}, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "decode swap payload: %v", err)
		}
		if swap.MinOutput == nil || swap.MinOutput.Sign() <= 0 {
			return Order{}, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "swap order requires a positive minimum output")
		}
		swap.Approx = swap.Approx.Clone()
		return Order{Kind: OrderKindSwap, Swap: &swap}, nil
	case OrderKindRedeem:
		var redeem RedeemOrder
		if err := rlp.DecodeBytes(envelope.Payload, &redeem); err != nil {
			return Order{}, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "decode redeem payload: %v", err)
		}
		if redeem.MinOutput == nil || redeem.MinOutput.Sign() <= 0 {
			return Order{}, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "redeem order requires a positive minimum output")
		}
		return Order{Kind: OrderKindRedeem, Redeem: &redeem}, nil
	}
	return Order{}, nativecommon.NewError(orderDataContract, nativecommon.CodeInvalidOrderData, "unknown order kind %d", envelope.Kind)
}
