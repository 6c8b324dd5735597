// Package isolation implements the conversion protocol and vault layer for
// isolation-mode collateral: tokens the margin protocol holds and prices but
// never lets move outside its controlled paths.
package isolation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ActionType enumerates the margin-engine-native action kinds the builders
// assemble. The engine interprets these inside a single atomic operation.
type ActionType uint8

const (
	ActionTypeDeposit ActionType = iota
	ActionTypeWithdraw
	ActionTypeTransfer
	ActionTypeSell
)

func (t ActionType) String() string {
	switch t {
	case ActionTypeDeposit:
		return "deposit"
	case ActionTypeWithdraw:
		return "withdraw"
	case ActionTypeTransfer:
		return "transfer"
	case ActionTypeSell:
		return "sell"
	}
	return "unknown"
}

// Action is one leg of a margin-engine operation. Builders produce these; the
// engine owns execution and ledger settlement.
type Action struct {
	Type              ActionType
	AccountID         uint64
	OtherAccountID    uint64
	PrimaryMarketID   uint64
	SecondaryMarketID uint64
	Amount            *big.Int
	// OtherAddress identifies the trader contract executing a sell leg.
	OtherAddress common.Address
	Data         []byte
}

// ConversionParams configures an action-builder call. Field layout mirrors the
// margin engine's account model: the primary account holds the isolation
// position, the other account sources or receives the standard token.
type ConversionParams struct {
	PrimaryAccountID     uint64
	OtherAccountID       uint64
	PrimaryAccountOwner  common.Address
	PrimaryAccountNumber uint64
	OtherAccountOwner    common.Address
	OtherAccountNumber   uint64
	OutputMarket         uint64
	InputMarket          uint64
	MinOutputAmount      *big.Int
	InputAmount          *big.Int
	OrderData            []byte
}

// Position is the persisted record for one isolation vault. The balance is
// only ever mutated by the vault acting for its owner or the margin engine.
type Position struct {
	Owner      common.Address
	SubAccount uint64
	Token      common.Address
	Balance    *big.Int
}

// Copy returns a deep copy for defensive use by callers.
func (p *Position) Copy() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Balance != nil {
		clone.Balance = new(big.Int).Set(p.Balance)
	}
	return &clone
}

// Event is a structured notification emitted by the registry and vault.
type Event struct {
	Name       string
	Attributes map[string]string
}

// EventSink receives emitted events. A nil sink disables emission.
type EventSink interface {
	Emit(event Event)
}

// Operator is the margin engine's atomic entry point. Every action list is
// applied all-or-nothing inside one engine transaction.
type Operator interface {
	Operate(actions []Action) error
}

// VaultRegistry answers whether an address is a genuine isolation vault for
// the given token. Backed by the vault factory's bookkeeping, which is outside
// this module.
type VaultRegistry interface {
	IsVault(vault common.Address, token common.Address) (bool, error)
}

func emit(sink EventSink, event Event) {
	if sink == nil {
		return
	}
	sink.Emit(event)
}

func isZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
