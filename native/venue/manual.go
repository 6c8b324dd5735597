package venue

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var wad = big.NewInt(1_000_000_000_000_000_000)

// Manual is an in-memory venue used by tests and manual overrides during
// incident response. It implements every boundary interface in this package
// with operator-settable state.
type Manual struct {
	mu sync.RWMutex

	ptRate  *big.Int // wad underlying per principal token
	expired bool
	state   OracleState
	feeBps  uint64

	reserve0    *big.Int
	reserve1    *big.Int
	totalSupply *big.Int
	kLast       *big.Int
	feeTo       common.Address

	prices  map[common.Address]*big.Int
	closing map[common.Address]bool
}

// NewManual constructs an empty manual venue. The rate oracle starts not
// warmed up; callers must seed state before pricing against it.
func NewManual() *Manual {
	return &Manual{
		prices:  make(map[common.Address]*big.Int),
		closing: make(map[common.Address]bool),
		state:   OracleState{IncreaseCardinalityRequired: true},
	}
}

// SetPTRate stores the wad-scaled underlying-per-PT rate and marks the rate
// oracle warmed up.
func (m *Manual) SetPTRate(rate *big.Int) {
	if m == nil || rate == nil {
		return
	}
	m.mu.Lock()
	m.ptRate = new(big.Int).Set(rate)
	m.state = OracleState{OldestObservationSatisfied: true}
	m.mu.Unlock()
}

// SetOracleState overrides the reported warm-up status.
func (m *Manual) SetOracleState(state OracleState) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// SetExpired flips the market maturity flag.
func (m *Manual) SetExpired(expired bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.expired = expired
	m.mu.Unlock()
}

// SetFeeBps configures the swap fee charged on router outputs.
func (m *Manual) SetFeeBps(bps uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.feeBps = bps
	m.mu.Unlock()
}

// SetPool seeds the constant-product pair state.
func (m *Manual) SetPool(reserve0, reserve1, totalSupply, kLast *big.Int, feeTo common.Address) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.reserve0 = cloneInt(reserve0)
	m.reserve1 = cloneInt(reserve1)
	m.totalSupply = cloneInt(totalSupply)
	m.kLast = cloneInt(kLast)
	m.feeTo = feeTo
	m.mu.Unlock()
}

// SetPrice stores the wad USD price for a token.
func (m *Manual) SetPrice(token common.Address, price *big.Int) {
	if m == nil || price == nil {
		return
	}
	m.mu.Lock()
	m.prices[token] = new(big.Int).Set(price)
	m.mu.Unlock()
}

// SetClosing records the margin-ledger closing flag for a token.
func (m *Manual) SetClosing(token common.Address, closing bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.closing[token] = closing
	m.mu.Unlock()
}

func (m *Manual) SwapExactTokenForPT(market common.Address, amountIn, minPtOut *big.Int, approx ApproxParams) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expired {
		return nil, fmt.Errorf("manual venue: market %s expired", market.Hex())
	}
	if m.ptRate == nil || m.ptRate.Sign() <= 0 {
		return nil, fmt.Errorf("manual venue: pt rate not seeded")
	}
	out := new(big.Int).Mul(amountIn, wad)
	out.Quo(out, m.ptRate)
	out = m.applyFee(out)
	if minPtOut != nil && out.Cmp(minPtOut) < 0 {
		return nil, fmt.Errorf("manual venue: output %s below minimum %s", out, minPtOut)
	}
	return out, nil
}

func (m *Manual) SwapExactPTForToken(market common.Address, amountIn, minTokenOut *big.Int) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expired {
		return nil, fmt.Errorf("manual venue: market %s expired", market.Hex())
	}
	if m.ptRate == nil || m.ptRate.Sign() <= 0 {
		return nil, fmt.Errorf("manual venue: pt rate not seeded")
	}
	out := new(big.Int).Mul(amountIn, m.ptRate)
	out.Quo(out, wad)
	out = m.applyFee(out)
	if minTokenOut != nil && out.Cmp(minTokenOut) < 0 {
		return nil, fmt.Errorf("manual venue: output %s below minimum %s", out, minTokenOut)
	}
	return out, nil
}

func (m *Manual) RedeemPTForToken(market common.Address, amountIn, minTokenOut *big.Int) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.expired {
		return nil, fmt.Errorf("manual venue: market %s not matured", market.Hex())
	}
	out := new(big.Int).Set(amountIn)
	if minTokenOut != nil && out.Cmp(minTokenOut) < 0 {
		return nil, fmt.Errorf("manual venue: output %s below minimum %s", out, minTokenOut)
	}
	return out, nil
}

func (m *Manual) IsExpired() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expired, nil
}

func (m *Manual) PTToAssetRate(market common.Address, twapDuration uint32) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.state.Ready() {
		return nil, fmt.Errorf("manual venue: rate oracle not warmed up")
	}
	if m.ptRate == nil {
		return nil, fmt.Errorf("manual venue: pt rate not seeded")
	}
	return new(big.Int).Set(m.ptRate), nil
}

func (m *Manual) OracleState(market common.Address, twapDuration uint32) (OracleState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

func (m *Manual) Reserves() (*big.Int, *big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.reserve0 == nil || m.reserve1 == nil {
		return nil, nil, fmt.Errorf("manual venue: pool not seeded")
	}
	return new(big.Int).Set(m.reserve0), new(big.Int).Set(m.reserve1), nil
}

func (m *Manual) TotalSupply() (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.totalSupply == nil {
		return nil, fmt.Errorf("manual venue: pool not seeded")
	}
	return new(big.Int).Set(m.totalSupply), nil
}

func (m *Manual) KLast() (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.kLast == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(m.kLast), nil
}

func (m *Manual) FeeTo() (common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feeTo, nil
}

func (m *Manual) GetPrice(token common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.prices[token]
	if !ok {
		return nil, fmt.Errorf("manual venue: price for %s not seeded", token.Hex())
	}
	return new(big.Int).Set(price), nil
}

func (m *Manual) MarketIsClosing(token common.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closing[token], nil
}

func (m *Manual) applyFee(amount *big.Int) *big.Int {
	if m.feeBps == 0 || amount.Sign() <= 0 {
		return amount
	}
	keep := new(big.Int).SetUint64(10_000 - m.feeBps)
	out := new(big.Int).Mul(amount, keep)
	return out.Quo(out, big.NewInt(10_000))
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
