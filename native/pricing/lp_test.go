package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
	"isomargin/native/venue"
)

type lpFixture struct {
	cfg      LPOracleConfig
	venue    *venue.Manual
	reserve0 *big.Int
	reserve1 *big.Int
	supply   *big.Int
}

// newLPFixture seeds a pool worth 2000 per share: 0.25 of a 4000-priced token
// and 1000 of a 1-priced token backing a single outstanding share.
func newLPFixture(t *testing.T) lpFixture {
	t.Helper()
	manual := venue.NewManual()

	lpToken := makeAddress(0x2B)
	token0 := makeAddress(0x2C)
	token1 := makeAddress(0x2D)
	manual.SetPrice(token0, wadScaled(4000))
	manual.SetPrice(token1, wadScaled(1))
	manual.SetClosing(lpToken, true)

	reserve0 := new(big.Int).Quo(wad, big.NewInt(4))
	reserve1 := wadScaled(1000)
	supply := new(big.Int).Set(wad)
	manual.SetPool(reserve0, reserve1, supply, big.NewInt(0), common.Address{})

	return lpFixture{
		cfg: LPOracleConfig{
			LPToken: lpToken,
			Token0:  token0,
			Token1:  token1,
			Pool:    manual,
			Prices:  manual,
			Ledger:  manual,
		},
		venue:    manual,
		reserve0: reserve0,
		reserve1: reserve1,
		supply:   supply,
	}
}

func TestLPFairValue(t *testing.T) {
	fixture := newLPFixture(t)
	oracle, err := NewLPOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	price, err := oracle.GetPrice(fixture.cfg.LPToken)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	// 2*sqrt(0.25*4000 * 1000*1) = 2000 per share.
	if want := wadScaled(2000); price.Cmp(want) != 0 {
		t.Fatalf("expected price %s, got %s", want, price)
	}
}

func TestLPFairValueIgnoresSpotRatio(t *testing.T) {
	fixture := newLPFixture(t)
	oracle, err := NewLPOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	base, err := oracle.GetPrice(fixture.cfg.LPToken)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}

	// Shift the reserves along the constant-product curve: double one side,
	// halve the other. The invariant is unchanged, so the fair value is too.
	shifted0 := new(big.Int).Mul(fixture.reserve0, big.NewInt(2))
	shifted1 := new(big.Int).Quo(fixture.reserve1, big.NewInt(2))
	fixture.venue.SetPool(shifted0, shifted1, fixture.supply, big.NewInt(0), common.Address{})

	price, err := oracle.GetPrice(fixture.cfg.LPToken)
	if err != nil {
		t.Fatalf("get price after shift: %v", err)
	}
	if price.Cmp(base) != 0 {
		t.Fatalf("expected fair value unchanged by reserve shift: %s vs %s", base, price)
	}
}

func TestLPFeeGrowthDilutesShareValue(t *testing.T) {
	fixture := newLPFixture(t)
	oracle, err := NewLPOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	base, err := oracle.GetPrice(fixture.cfg.LPToken)
	if err != nil {
		t.Fatalf("get base price: %v", err)
	}

	// Reserves have grown fourfold since the last mint, so the fee recipient
	// is owed shares that dilute every holder.
	k := new(big.Int).Mul(fixture.reserve0, fixture.reserve1)
	kLast := new(big.Int).Quo(k, big.NewInt(4))
	fixture.venue.SetPool(fixture.reserve0, fixture.reserve1, fixture.supply, kLast, makeAddress(0x2E))

	diluted, err := oracle.GetPrice(fixture.cfg.LPToken)
	if err != nil {
		t.Fatalf("get diluted price: %v", err)
	}
	if diluted.Cmp(base) >= 0 {
		t.Fatalf("expected fee growth to dilute the price: base %s, diluted %s", base, diluted)
	}
}

func TestLPNoDilutionWhenFeeSwitchOff(t *testing.T) {
	fixture := newLPFixture(t)
	oracle, err := NewLPOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	k := new(big.Int).Mul(fixture.reserve0, fixture.reserve1)
	kLast := new(big.Int).Quo(k, big.NewInt(4))
	// Fee recipient unset: invariant growth mints nothing.
	fixture.venue.SetPool(fixture.reserve0, fixture.reserve1, fixture.supply, kLast, common.Address{})

	price, err := oracle.GetPrice(fixture.cfg.LPToken)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if want := wadScaled(2000); price.Cmp(want) != 0 {
		t.Fatalf("expected undiluted price %s, got %s", want, price)
	}
}

func TestLPNoDilutionWhenInvariantFlat(t *testing.T) {
	fixture := newLPFixture(t)
	oracle, err := NewLPOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	k := new(big.Int).Mul(fixture.reserve0, fixture.reserve1)
	fixture.venue.SetPool(fixture.reserve0, fixture.reserve1, fixture.supply, k, makeAddress(0x2E))

	price, err := oracle.GetPrice(fixture.cfg.LPToken)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if want := wadScaled(2000); price.Cmp(want) != 0 {
		t.Fatalf("expected undiluted price %s, got %s", want, price)
	}
}

func TestLPPriceRequiresClosingMarket(t *testing.T) {
	fixture := newLPFixture(t)
	oracle, err := NewLPOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	fixture.venue.SetClosing(fixture.cfg.LPToken, false)
	if _, err := oracle.GetPrice(fixture.cfg.LPToken); !errors.Is(err, nativecommon.ErrMustNotBeBorrowable) {
		t.Fatalf("expected ErrMustNotBeBorrowable, got %v", err)
	}
}

func TestLPPriceRejectsForeignToken(t *testing.T) {
	fixture := newLPFixture(t)
	oracle, err := NewLPOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	if _, err := oracle.GetPrice(makeAddress(0x99)); !errors.Is(err, nativecommon.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLPPriceRequiresOutstandingSupply(t *testing.T) {
	fixture := newLPFixture(t)
	oracle, err := NewLPOracle(fixture.cfg)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	fixture.venue.SetPool(fixture.reserve0, fixture.reserve1, big.NewInt(0), big.NewInt(0), common.Address{})
	if _, err := oracle.GetPrice(fixture.cfg.LPToken); !errors.Is(err, nativecommon.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty pool, got %v", err)
	}
}
