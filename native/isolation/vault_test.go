package isolation

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
	"isomargin/storage"
)

type recordingOperator struct {
	operations [][]Action
	err        error
}

func (o *recordingOperator) Operate(actions []Action) error {
	o.operations = append(o.operations, actions)
	return o.err
}

// reentrantOperator models a margin engine whose operation calls back into the
// vault, the shape of a router or token callback attack.
type reentrantOperator struct {
	vault  *Vault
	caller common.Address
	result error
}

func (o *reentrantOperator) Operate([]Action) error {
	o.result = o.vault.Withdraw(o.caller, big.NewInt(1))
	return nil
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Emit(event Event) {
	s.events = append(s.events, event)
}

type vaultFixture struct {
	vault  *Vault
	ledger *PositionLedger
	engine *recordingOperator
	sink   *recordingSink
	owner  common.Address
	margin common.Address
}

func newVaultFixture(t *testing.T) vaultFixture {
	t.Helper()
	traders := newTraderFixture(t)
	wrapper, err := NewWrapper(traders.cfg)
	if err != nil {
		t.Fatalf("new wrapper: %v", err)
	}
	unwrapper, err := NewUnwrapper(traders.cfg)
	if err != nil {
		t.Fatalf("new unwrapper: %v", err)
	}
	ledger, err := NewPositionLedger(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	engine := &recordingOperator{}
	sink := &recordingSink{}
	owner := makeAddress(0x31)
	margin := traders.cfg.MarginEngine
	vault, err := NewVault(VaultConfig{
		Address:          traders.vault,
		Owner:            owner,
		SubAccountNumber: 3,
		IsolationToken:   traders.cfg.IsolationToken,
		MarginEngine:     margin,
		Engine:           engine,
		Wrapper:          wrapper,
		Unwrapper:        unwrapper,
		Ledger:           ledger,
	}, sink)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return vaultFixture{vault: vault, ledger: ledger, engine: engine, sink: sink, owner: owner, margin: margin}
}

func TestVaultDepositWithdrawLifecycle(t *testing.T) {
	fixture := newVaultFixture(t)

	if err := fixture.vault.Deposit(fixture.owner, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	balance, err := fixture.vault.Balance()
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected balance 500, got %s", balance)
	}

	position, err := fixture.ledger.Get(fixture.vault.Address())
	if err != nil {
		t.Fatalf("ledger get: %v", err)
	}
	if position == nil || position.Owner != fixture.owner || position.SubAccount != 3 {
		t.Fatalf("unexpected position record: %+v", position)
	}

	if err := fixture.vault.Withdraw(fixture.owner, big.NewInt(200)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	balance, err = fixture.vault.Balance()
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected balance 300, got %s", balance)
	}

	// Draining the position destroys the record.
	if err := fixture.vault.Withdraw(fixture.owner, big.NewInt(300)); err != nil {
		t.Fatalf("withdraw remainder: %v", err)
	}
	exists, err := fixture.ledger.Has(fixture.vault.Address())
	if err != nil {
		t.Fatalf("ledger has: %v", err)
	}
	if exists {
		t.Fatal("expected position record destroyed at zero balance")
	}
	balance, err = fixture.vault.Balance()
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", balance)
	}
}

func TestVaultDepositEmitsEvent(t *testing.T) {
	fixture := newVaultFixture(t)
	if err := fixture.vault.Deposit(fixture.owner, big.NewInt(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(fixture.sink.events) != 1 || fixture.sink.events[0].Name != "Deposit" {
		t.Fatalf("expected one Deposit event, got %+v", fixture.sink.events)
	}
	if got := fixture.sink.events[0].Attributes["amount"]; got != "10" {
		t.Fatalf("expected amount attribute 10, got %q", got)
	}
}

func TestVaultWithdrawExceedsBalance(t *testing.T) {
	fixture := newVaultFixture(t)
	if err := fixture.vault.Deposit(fixture.owner, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := fixture.vault.Withdraw(fixture.owner, big.NewInt(101)); !errors.Is(err, nativecommon.ErrInvalidInputAmount) {
		t.Fatalf("expected ErrInvalidInputAmount, got %v", err)
	}
}

func TestVaultRejectsStrangers(t *testing.T) {
	fixture := newVaultFixture(t)
	stranger := makeAddress(0x99)

	if err := fixture.vault.Deposit(stranger, big.NewInt(1)); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for deposit, got %v", err)
	}
	if err := fixture.vault.Withdraw(stranger, big.NewInt(1)); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for withdraw, got %v", err)
	}
	if err := fixture.vault.InitiateWrapping(stranger, ConversionParams{}); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrapping, got %v", err)
	}
}

func TestVaultAcceptsMarginEngineCaller(t *testing.T) {
	fixture := newVaultFixture(t)
	if err := fixture.vault.Deposit(fixture.margin, big.NewInt(50)); err != nil {
		t.Fatalf("deposit as margin engine: %v", err)
	}
}

func TestVaultGuardBlocksWhilePaused(t *testing.T) {
	fixture := newVaultFixture(t)
	fixture.vault.SetPauses(stubPauseView{modules: map[string]bool{moduleName: true}})
	if err := fixture.vault.Deposit(fixture.owner, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}

func TestPausedVaultStillRejectsStrangers(t *testing.T) {
	fixture := newVaultFixture(t)
	fixture.vault.SetPauses(stubPauseView{modules: map[string]bool{moduleName: true}})

	stranger := makeAddress(0x99)
	if err := fixture.vault.Deposit(stranger, big.NewInt(1)); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a stranger while paused, got %v", err)
	}
}

func TestVaultRejectsReentrantCall(t *testing.T) {
	fixture := newVaultFixture(t)
	if err := fixture.vault.Deposit(fixture.owner, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	reentrant := &reentrantOperator{vault: fixture.vault, caller: fixture.owner}
	fixture.vault.cfg.Engine = reentrant

	params := ConversionParams{
		PrimaryAccountOwner: fixture.owner,
		OtherAccountOwner:   makeAddress(0x22),
		OutputMarket:        2,
		InputMarket:         5,
		MinOutputAmount:     big.NewInt(90),
		InputAmount:         big.NewInt(100),
		OrderData:           mustSwapOrder(t, 90),
	}
	if err := fixture.vault.InitiateUnwrapping(fixture.owner, params); err != nil {
		t.Fatalf("initiate unwrapping: %v", err)
	}
	if !errors.Is(reentrant.result, nativecommon.ErrReentrantCall) {
		t.Fatalf("expected nested call to fail with ErrReentrantCall, got %v", reentrant.result)
	}

	// The guard releases after the outer call completes.
	if err := fixture.vault.Withdraw(fixture.owner, big.NewInt(1)); err != nil {
		t.Fatalf("withdraw after release: %v", err)
	}
}

func TestVaultInitiateWrappingSubmitsActions(t *testing.T) {
	fixture := newVaultFixture(t)
	params := ConversionParams{
		PrimaryAccountID:    1,
		OtherAccountID:      2,
		PrimaryAccountOwner: fixture.owner,
		OtherAccountOwner:   makeAddress(0x22),
		OutputMarket:        5,
		InputMarket:         2,
		MinOutputAmount:     big.NewInt(100),
		InputAmount:         big.NewInt(95),
		OrderData:           mustSwapOrder(t, 100),
	}
	if err := fixture.vault.InitiateWrapping(fixture.owner, params); err != nil {
		t.Fatalf("initiate wrapping: %v", err)
	}
	if len(fixture.engine.operations) != 1 {
		t.Fatalf("expected one engine operation, got %d", len(fixture.engine.operations))
	}
	if len(fixture.engine.operations[0]) != 2 {
		t.Fatalf("expected two actions submitted, got %d", len(fixture.engine.operations[0]))
	}
}

func TestVaultInitiateUnwrappingPropagatesEngineFailure(t *testing.T) {
	fixture := newVaultFixture(t)
	fixture.engine.err = errors.New("operation reverted")

	params := ConversionParams{
		PrimaryAccountOwner: fixture.owner,
		OtherAccountOwner:   makeAddress(0x22),
		OutputMarket:        2,
		InputMarket:         5,
		MinOutputAmount:     big.NewInt(90),
		InputAmount:         big.NewInt(100),
		OrderData:           mustSwapOrder(t, 90),
	}
	if err := fixture.vault.InitiateUnwrapping(fixture.owner, params); err == nil {
		t.Fatal("expected engine failure to propagate")
	}
}
