package isolation

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// StaticVaultRegistry is an in-memory vault directory used by tests, dev
// tooling and manual overrides. Production deployments back VaultRegistry
// with the vault factory's own bookkeeping.
type StaticVaultRegistry struct {
	mu     sync.RWMutex
	vaults map[common.Address]common.Address
}

// NewStaticVaultRegistry constructs an empty directory.
func NewStaticVaultRegistry() *StaticVaultRegistry {
	return &StaticVaultRegistry{vaults: make(map[common.Address]common.Address)}
}

// Add records a vault and the isolation token it holds.
func (r *StaticVaultRegistry) Add(vault, token common.Address) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.vaults[vault] = token
	r.mu.Unlock()
}

// Remove drops a vault from the directory.
func (r *StaticVaultRegistry) Remove(vault common.Address) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.vaults, vault)
	r.mu.Unlock()
}

// IsVault reports whether the address is a registered vault for the token.
func (r *StaticVaultRegistry) IsVault(vault common.Address, token common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	held, ok := r.vaults[vault]
	return ok && held == token, nil
}
