package isolation

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "isomargin/native/common"
)

const registryContract = "IsolationRegistry"

// RegistryConfig seeds the registry at construction. Every address must be
// non-zero; the registry always holds a current value for each field.
type RegistryConfig struct {
	Router          common.Address
	Market          common.Address
	Oracle          common.Address
	UnderlyingToken common.Address
}

// Registry stores the venue addresses shared by the conversion protocol and
// the valuation engine. Pure configuration: owner-gated setters, sanity
// checks, change events, nothing else.
type Registry struct {
	mu    sync.RWMutex
	owner common.Address
	sink  EventSink

	router          common.Address
	market          common.Address
	oracle          common.Address
	underlyingToken common.Address
}

// NewRegistry validates the seed configuration and constructs the store.
func NewRegistry(owner common.Address, cfg RegistryConfig, sink EventSink) (*Registry, error) {
	if isZeroAddress(owner) {
		return nil, nativecommon.NewError(registryContract, nativecommon.CodeUnauthorized, "owner address required")
	}
	if isZeroAddress(cfg.Router) {
		return nil, nativecommon.NewError(registryContract, nativecommon.CodeInvalidRouterAddress, "router address must not be zero")
	}
	if isZeroAddress(cfg.Market) {
		return nil, nativecommon.NewError(registryContract, nativecommon.CodeInvalidMarketAddress, "market address must not be zero")
	}
	if isZeroAddress(cfg.Oracle) {
		return nil, nativecommon.NewError(registryContract, nativecommon.CodeInvalidOracleAddress, "oracle address must not be zero")
	}
	if isZeroAddress(cfg.UnderlyingToken) {
		return nil, nativecommon.NewError(registryContract, nativecommon.CodeInvalidUnderlyingAddress, "underlying token address must not be zero")
	}
	return &Registry{
		owner:           owner,
		sink:            sink,
		router:          cfg.Router,
		market:          cfg.Market,
		oracle:          cfg.Oracle,
		underlyingToken: cfg.UnderlyingToken,
	}, nil
}

// Owner returns the governance address allowed to mutate the registry.
func (r *Registry) Owner() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

func (r *Registry) Router() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.router
}

func (r *Registry) Market() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.market
}

func (r *Registry) Oracle() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.oracle
}

func (r *Registry) UnderlyingToken() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.underlyingToken
}

// OwnerSetRouter replaces the venue router address and emits RouterSet.
func (r *Registry) OwnerSetRouter(caller, router common.Address) error {
	return r.setField(caller, router, nativecommon.CodeInvalidRouterAddress, "RouterSet", func(reg *Registry, addr common.Address) {
		reg.router = addr
	})
}

// OwnerSetMarket replaces the venue market address and emits MarketSet.
func (r *Registry) OwnerSetMarket(caller, market common.Address) error {
	return r.setField(caller, market, nativecommon.CodeInvalidMarketAddress, "MarketSet", func(reg *Registry, addr common.Address) {
		reg.market = addr
	})
}

// OwnerSetOracle replaces the venue rate-oracle address and emits OracleSet.
func (r *Registry) OwnerSetOracle(caller, oracle common.Address) error {
	return r.setField(caller, oracle, nativecommon.CodeInvalidOracleAddress, "OracleSet", func(reg *Registry, addr common.Address) {
		reg.oracle = addr
	})
}

// OwnerSetUnderlyingToken replaces the underlying token address and emits
// UnderlyingTokenSet.
func (r *Registry) OwnerSetUnderlyingToken(caller, token common.Address) error {
	return r.setField(caller, token, nativecommon.CodeInvalidUnderlyingAddress, "UnderlyingTokenSet", func(reg *Registry, addr common.Address) {
		reg.underlyingToken = addr
	})
}

func (r *Registry) setField(caller, value common.Address, zeroCode nativecommon.ErrorCode, eventName string, assign func(*Registry, common.Address)) error {
	if r == nil {
		return nativecommon.NewError(registryContract, nativecommon.CodeUnauthorized, "registry not configured")
	}
	r.mu.Lock()
	if caller != r.owner {
		r.mu.Unlock()
		return nativecommon.NewError(registryContract, nativecommon.CodeUnauthorized, "caller %s is not the owner", caller.Hex())
	}
	if isZeroAddress(value) {
		r.mu.Unlock()
		return nativecommon.NewError(registryContract, zeroCode, "new address must not be zero")
	}
	assign(r, value)
	sink := r.sink
	r.mu.Unlock()

	emit(sink, Event{Name: eventName, Attributes: map[string]string{"address": value.Hex()}})
	return nil
}
