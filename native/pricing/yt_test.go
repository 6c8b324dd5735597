package pricing

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "isomargin/native/common"
)

func newYTFixture(t *testing.T, deductionBps uint64) (ptFixture, *YTOracle) {
	t.Helper()
	fixture := newPTFixture(t)
	fixture.cfg.DeductionCoefficientBps = deductionBps
	ptOracle, err := NewPTOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new pt oracle: %v", err)
	}

	ytToken := makeAddress(0x1B)
	fixture.venue.SetClosing(ytToken, true)
	ytOracle, err := NewYTOracle(YTOracleConfig{YTToken: ytToken, PT: ptOracle, Ledger: fixture.venue})
	if err != nil {
		t.Fatalf("new yt oracle: %v", err)
	}
	return fixture, ytOracle
}

func TestYTPriceIsResidualClaim(t *testing.T) {
	_, oracle := newYTFixture(t, 0)

	price, err := oracle.GetPrice(oracle.Token())
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	// Underlying 2000, principal 1900.
	if want := wadScaled(100); price.Cmp(want) != 0 {
		t.Fatalf("expected price %s, got %s", want, price)
	}
}

func TestYTComplementIdentityIgnoresHaircut(t *testing.T) {
	// The principal oracle's collateral haircut must not leak into the
	// yield-token price: the two always sum to the underlying.
	_, oracle := newYTFixture(t, 500)

	ytPrice, err := oracle.GetPrice(oracle.Token())
	if err != nil {
		t.Fatalf("get yt price: %v", err)
	}
	rawPT := new(big.Int).Sub(wadScaled(2000), ytPrice)
	if rawPT.Cmp(wadScaled(1900)) != 0 {
		t.Fatalf("expected undeducted principal price 1900, got %s", rawPT)
	}
}

func TestYTPriceFloorsAtOneWeiAfterMaturity(t *testing.T) {
	fixture, oracle := newYTFixture(t, 0)
	fixture.venue.SetExpired(true)

	price, err := oracle.GetPrice(oracle.Token())
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected floor price 1, got %s", price)
	}
}

func TestYTPriceRequiresClosingMarket(t *testing.T) {
	fixture, oracle := newYTFixture(t, 0)
	fixture.venue.SetClosing(oracle.Token(), false)

	if _, err := oracle.GetPrice(oracle.Token()); !errors.Is(err, nativecommon.ErrMustNotBeBorrowable) {
		t.Fatalf("expected ErrMustNotBeBorrowable, got %v", err)
	}
}

func TestYTPriceRejectsForeignToken(t *testing.T) {
	_, oracle := newYTFixture(t, 0)
	if _, err := oracle.GetPrice(makeAddress(0x99)); !errors.Is(err, nativecommon.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
