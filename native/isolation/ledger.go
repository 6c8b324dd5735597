package isolation

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	nativecommon "isomargin/native/common"
	"isomargin/storage"
)

const ledgerContract = "IsolationPositionLedger"

var positionKeyPrefix = []byte("isolation/position/")

type storedPosition struct {
	Owner      common.Address
	SubAccount uint64
	Token      common.Address
	Balance    *big.Int
}

// PositionLedger persists isolation positions keyed by vault address. A
// position exists only while its balance is positive; writing a zero balance
// deletes the record, matching the position lifecycle.
type PositionLedger struct {
	store storage.Database
}

// NewPositionLedger binds the ledger to a storage backend.
func NewPositionLedger(store storage.Database) (*PositionLedger, error) {
	if store == nil {
		return nil, nativecommon.NewError(ledgerContract, nativecommon.CodeInvalidToken, "storage backend required")
	}
	return &PositionLedger{store: store}, nil
}

// Get loads the position for a vault address. Missing positions return nil
// without error; callers treat that as a zero balance.
func (l *PositionLedger) Get(vault common.Address) (*Position, error) {
	raw, err := l.store.Get(positionKey(vault))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, nativecommon.NewError(ledgerContract, nativecommon.CodeInvalidToken, "decode position for %s: %v", vault.Hex(), err)
	}
	balance := big.NewInt(0)
	if stored.Balance != nil {
		balance = new(big.Int).Set(stored.Balance)
	}
	return &Position{
		Owner:      stored.Owner,
		SubAccount: stored.SubAccount,
		Token:      stored.Token,
		Balance:    balance,
	}, nil
}

// Put stores the position, or deletes it when the balance has returned to
// zero. Negative balances are rejected outright.
func (l *PositionLedger) Put(vault common.Address, position *Position) error {
	if position == nil {
		return nativecommon.NewError(ledgerContract, nativecommon.CodeInvalidToken, "position must not be nil")
	}
	balance := position.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return nativecommon.NewError(ledgerContract, nativecommon.CodeInvalidInputAmount, "position balance must not be negative")
	}
	if balance.Sign() == 0 {
		return l.store.Delete(positionKey(vault))
	}
	stored := storedPosition{
		Owner:      position.Owner,
		SubAccount: position.SubAccount,
		Token:      position.Token,
		Balance:    balance,
	}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return nativecommon.NewError(ledgerContract, nativecommon.CodeInvalidToken, "encode position for %s: %v", vault.Hex(), err)
	}
	return l.store.Put(positionKey(vault), encoded)
}

// Has reports whether a live position exists for the vault.
func (l *PositionLedger) Has(vault common.Address) (bool, error) {
	return l.store.Has(positionKey(vault))
}

func positionKey(vault common.Address) []byte {
	return append(append([]byte(nil), positionKeyPrefix...), vault.Bytes()...)
}
