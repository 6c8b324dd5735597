package isolation

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
)

const vaultContract = "IsolationVault"

// VaultConfig fixes a vault's identity and collaborators at construction.
type VaultConfig struct {
	// Address is the vault's own identity and its key in the position ledger.
	Address          common.Address
	Owner            common.Address
	SubAccountNumber uint64
	IsolationToken   common.Address
	MarginEngine     common.Address
	Engine           Operator
	Wrapper          *Wrapper
	Unwrapper        *Unwrapper
	Ledger           *PositionLedger
}

// Vault is the per-position proxy. It exposes deposit, withdraw and the two
// narrow conversion entry points; only the position owner or the margin
// engine may invoke any of them. A per-instance call-depth guard rejects
// recursive re-entry through a malicious router or token callback.
type Vault struct {
	cfg    VaultConfig
	sink   EventSink
	pauses nativecommon.PauseView

	mu   sync.Mutex
	busy bool
}

// NewVault validates the configuration and constructs the vault.
func NewVault(cfg VaultConfig, sink EventSink) (*Vault, error) {
	if isZeroAddress(cfg.Address) {
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeInvalidToken, "vault address required")
	}
	if isZeroAddress(cfg.Owner) {
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeUnauthorized, "owner address required")
	}
	if isZeroAddress(cfg.IsolationToken) {
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeInvalidToken, "isolation token address required")
	}
	if isZeroAddress(cfg.MarginEngine) {
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeUnauthorized, "margin engine address required")
	}
	if cfg.Engine == nil {
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeUnauthorized, "margin engine operator required")
	}
	if cfg.Wrapper == nil || cfg.Unwrapper == nil {
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeInvalidToken, "trader pair required")
	}
	if cfg.Ledger == nil {
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeInvalidToken, "position ledger required")
	}
	return &Vault{cfg: cfg, sink: sink}, nil
}

// SetPauses wires the governance pause view checked before every mutation.
func (v *Vault) SetPauses(p nativecommon.PauseView) {
	if v == nil {
		return
	}
	v.pauses = p
}

// Address returns the vault's identity.
func (v *Vault) Address() common.Address { return v.cfg.Address }

// Owner returns the position owner.
func (v *Vault) Owner() common.Address { return v.cfg.Owner }

// Balance reports the current position balance, zero when no position exists.
func (v *Vault) Balance() (*big.Int, error) {
	position, err := v.cfg.Ledger.Get(v.cfg.Address)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(position.Balance), nil
}

// Deposit credits isolation tokens to the position. Creates the position
// record on first deposit.
func (v *Vault) Deposit(caller common.Address, amount *big.Int) error {
	release, err := v.enter(caller)
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return nativecommon.NewError(vaultContract, nativecommon.CodeInvalidInputAmount, "deposit amount must be positive")
	}
	position, err := v.cfg.Ledger.Get(v.cfg.Address)
	if err != nil {
		return err
	}
	if position == nil {
		position = &Position{
			Owner:      v.cfg.Owner,
			SubAccount: v.cfg.SubAccountNumber,
			Token:      v.cfg.IsolationToken,
			Balance:    big.NewInt(0),
		}
	}
	position.Balance = new(big.Int).Add(position.Balance, amount)
	if err := v.cfg.Ledger.Put(v.cfg.Address, position); err != nil {
		return err
	}
	emit(v.sink, Event{Name: "Deposit", Attributes: map[string]string{
		"vault":  v.cfg.Address.Hex(),
		"amount": amount.String(),
	}})
	return nil
}

// Withdraw debits isolation tokens from the position. The record is destroyed
// when the balance returns to zero.
func (v *Vault) Withdraw(caller common.Address, amount *big.Int) error {
	release, err := v.enter(caller)
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return nativecommon.NewError(vaultContract, nativecommon.CodeInvalidInputAmount, "withdraw amount must be positive")
	}
	position, err := v.cfg.Ledger.Get(v.cfg.Address)
	if err != nil {
		return err
	}
	if position == nil || position.Balance.Cmp(amount) < 0 {
		return nativecommon.NewError(vaultContract, nativecommon.CodeInvalidInputAmount, "withdraw amount exceeds balance")
	}
	position.Balance = new(big.Int).Sub(position.Balance, amount)
	if err := v.cfg.Ledger.Put(v.cfg.Address, position); err != nil {
		return err
	}
	emit(v.sink, Event{Name: "Withdraw", Attributes: map[string]string{
		"vault":  v.cfg.Address.Hex(),
		"amount": amount.String(),
	}})
	return nil
}

// InitiateWrapping builds the wrapping action list and submits it to the
// margin engine in one shot.
func (v *Vault) InitiateWrapping(caller common.Address, params ConversionParams) error {
	release, err := v.enter(caller)
	if err != nil {
		return err
	}
	defer release()

	actions, err := v.cfg.Wrapper.CreateActionsForWrapping(params)
	if err != nil {
		return err
	}
	return v.cfg.Engine.Operate(actions)
}

// InitiateUnwrapping builds the unwrapping action list and submits it to the
// margin engine in one shot.
func (v *Vault) InitiateUnwrapping(caller common.Address, params ConversionParams) error {
	release, err := v.enter(caller)
	if err != nil {
		return err
	}
	defer release()

	actions, err := v.cfg.Unwrapper.CreateActionsForUnwrapping(params)
	if err != nil {
		return err
	}
	return v.cfg.Engine.Operate(actions)
}

// enter performs authorisation, the pause guard and the reentrancy check, and
// returns the release func restoring the guard. Authorisation runs first so a
// stranger always sees Unauthorized regardless of governance state.
func (v *Vault) enter(caller common.Address) (func(), error) {
	if caller != v.cfg.Owner && caller != v.cfg.MarginEngine {
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeUnauthorized, "caller %s is neither owner nor margin engine", caller.Hex())
	}
	if err := nativecommon.Guard(v.pauses, moduleName); err != nil {
		return nil, err
	}
	v.mu.Lock()
	if v.busy {
		v.mu.Unlock()
		return nil, nativecommon.NewError(vaultContract, nativecommon.CodeReentrantCall, "vault re-entered during an active call")
	}
	v.busy = true
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		v.busy = false
		v.mu.Unlock()
	}, nil
}
