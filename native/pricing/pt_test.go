package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
	"isomargin/native/venue"
)

func makeAddress(fill byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func wadScaled(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), wad)
}

// rateOf builds a wad rate from a percentage, e.g. rateOf(95) is 0.95.
func rateOf(percent int64) *big.Int {
	return new(big.Int).Quo(new(big.Int).Mul(big.NewInt(percent), wad), big.NewInt(100))
}

type ptFixture struct {
	cfg   PTOracleConfig
	venue *venue.Manual
}

func newPTFixture(t *testing.T) ptFixture {
	t.Helper()
	manual := venue.NewManual()
	manual.SetPTRate(rateOf(95))

	ptToken := makeAddress(0x0B)
	underlying := makeAddress(0x0C)
	manual.SetPrice(underlying, wadScaled(2000))
	manual.SetClosing(ptToken, true)

	return ptFixture{
		cfg: PTOracleConfig{
			PTToken:         ptToken,
			UnderlyingToken: underlying,
			Market:          makeAddress(0x0E),
			RateOracle:      manual,
			MarketState:     manual,
			Underlying:      manual,
			Ledger:          manual,
			TwapDuration:    900,
		},
		venue: manual,
	}
}

func TestPTPriceBeforeMaturity(t *testing.T) {
	fixture := newPTFixture(t)
	oracle, err := NewPTOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	price, err := oracle.GetPrice(fixture.cfg.PTToken)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	// 2000 underlying at a 0.95 rate.
	if want := wadScaled(1900); price.Cmp(want) != 0 {
		t.Fatalf("expected price %s, got %s", want, price)
	}
}

func TestPTPriceConvergesTowardUnderlying(t *testing.T) {
	fixture := newPTFixture(t)
	oracle, err := NewPTOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	underlying := wadScaled(2000)

	var previous *big.Int
	for _, percent := range []int64{90, 95, 99} {
		fixture.venue.SetPTRate(rateOf(percent))
		price, err := oracle.GetPrice(fixture.cfg.PTToken)
		if err != nil {
			t.Fatalf("get price at rate %d%%: %v", percent, err)
		}
		if price.Cmp(underlying) >= 0 {
			t.Fatalf("pre-maturity price %s must stay below underlying %s", price, underlying)
		}
		if previous != nil && price.Cmp(previous) <= 0 {
			t.Fatalf("price must rise with the rate: %s then %s", previous, price)
		}
		previous = price
	}
}

func TestPTPriceAfterMaturityEqualsUnderlying(t *testing.T) {
	fixture := newPTFixture(t)
	oracle, err := NewPTOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	fixture.venue.SetExpired(true)

	price, err := oracle.GetPrice(fixture.cfg.PTToken)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if want := wadScaled(2000); price.Cmp(want) != 0 {
		t.Fatalf("expected post-maturity price %s, got %s", want, price)
	}
}

func TestPTDeductionHaircut(t *testing.T) {
	fixture := newPTFixture(t)
	fixture.cfg.DeductionCoefficientBps = 200
	oracle, err := NewPTOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	price, err := oracle.GetPrice(fixture.cfg.PTToken)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	// 1900 shaved by 2%.
	if want := wadScaled(1862); price.Cmp(want) != 0 {
		t.Fatalf("expected haircut price %s, got %s", want, price)
	}
}

func TestPTConstructionRequiresWarmOracle(t *testing.T) {
	fixture := newPTFixture(t)
	fixture.venue.SetOracleState(venue.OracleState{IncreaseCardinalityRequired: true, CardinalityRequired: 12})

	if _, err := NewPTOracle(fixture.cfg); !errors.Is(err, nativecommon.ErrOracleNotReady) {
		t.Fatalf("expected ErrOracleNotReady at construction, got %v", err)
	}
}

func TestPTPriceFailsWhenOracleCoolsDown(t *testing.T) {
	fixture := newPTFixture(t)
	oracle, err := NewPTOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	fixture.venue.SetOracleState(venue.OracleState{OldestObservationSatisfied: false})
	if _, err := oracle.GetPrice(fixture.cfg.PTToken); !errors.Is(err, nativecommon.ErrOracleNotReady) {
		t.Fatalf("expected ErrOracleNotReady, got %v", err)
	}
}

func TestPTPriceRequiresClosingMarket(t *testing.T) {
	fixture := newPTFixture(t)
	oracle, err := NewPTOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	fixture.venue.SetClosing(fixture.cfg.PTToken, false)
	if _, err := oracle.GetPrice(fixture.cfg.PTToken); !errors.Is(err, nativecommon.ErrMustNotBeBorrowable) {
		t.Fatalf("expected ErrMustNotBeBorrowable, got %v", err)
	}
}

func TestPTPriceRejectsForeignToken(t *testing.T) {
	fixture := newPTFixture(t)
	oracle, err := NewPTOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	if _, err := oracle.GetPrice(makeAddress(0x99)); !errors.Is(err, nativecommon.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := oracle.GetPrice(common.Address{}); !errors.Is(err, nativecommon.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for zero address, got %v", err)
	}
}

func TestNewPTOracleRejectsExcessiveDeduction(t *testing.T) {
	fixture := newPTFixture(t)
	fixture.cfg.DeductionCoefficientBps = 10_000
	if _, err := NewPTOracle(fixture.cfg); !errors.Is(err, nativecommon.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
