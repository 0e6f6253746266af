package server

import (
	"fmt"
	"sync"

	"github.com/spleety/spleety/internal/keys"
)

// vault holds the dev wallets the server custodies. Keys never leave the
// process; sessions reference them by address. A production deployment would
// verify client-side signatures instead.
type vault struct {
	mu      sync.RWMutex
	wallets map[keys.Address]*keys.Keypair
}

func newVault() *vault {
	return &vault{wallets: make(map[keys.Address]*keys.Keypair)}
}

// create generates and stores a new wallet.
func (v *vault) create() (*keys.Keypair, error) {
	kp, err := keys.NewKeypair()
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.wallets[kp.Address()] = kp
	v.mu.Unlock()
	return kp, nil
}

// signer returns the signing capability for addr.
func (v *vault) signer(addr keys.Address) (keys.Signer, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	kp, ok := v.wallets[addr]
	if !ok {
		return nil, fmt.Errorf("no wallet for %s", addr.Short())
	}
	return kp, nil
}
