// Package ledger implements a minimal account-based ledger: balances in
// native minor units, opaque record data, rent-exempt minimums, and atomic
// transactions.
//
// Accounts are keyed by address and carry an owner namespace. Plain wallets
// are owned by the system namespace (the zero address) and are debited only
// with the holder's signature. Record accounts are owned by a program
// namespace and are written and debited only by that namespace.
//
// All writes go through Commit, which serializes transactions under one lock
// and applies each transaction fully or not at all. Reads never block a
// writer and observe a consistent committed snapshot.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spleety/spleety/internal/keys"
)

var (
	// ErrAccountNotFound is returned when reading an address with no account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an account at an occupied
	// address.
	ErrAccountExists = errors.New("account already exists")

	// ErrInsufficientFunds is returned when a debit exceeds the available
	// balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrMissingSigner is returned when a transaction lacks a valid
	// signature from a required signer.
	ErrMissingSigner = errors.New("required signer missing")

	// ErrNotOwner is returned when a transaction touches a record account
	// outside its program namespace.
	ErrNotOwner = errors.New("account not owned by transaction program")

	// ErrBelowRentExempt is returned when an operation would leave a record
	// account below its rent-exempt minimum.
	ErrBelowRentExempt = errors.New("balance below rent-exempt minimum")

	// ErrNothingToSweep is returned by a sweep when no balance sits above
	// the rent-exempt minimum.
	ErrNothingToSweep = errors.New("no balance above rent-exempt minimum")
)

// Account is one ledger entry.
type Account struct {
	// Owner is the namespace that controls the account: keys.ZeroAddress
	// for wallets, a program address for record accounts.
	Owner keys.Address

	// Balance is the account's funds in native minor units.
	Balance uint64

	// Data is the record payload; nil for wallets.
	Data []byte
}

func (a *Account) clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// AccountStore persists ledger accounts between runs.
type AccountStore interface {
	// SaveAccounts upserts a batch of accounts as one atomic write: either
	// every account lands or none do. A commit's write-back goes through a
	// single call, so a store failure can never leave half a transaction
	// on disk.
	SaveAccounts(ctx context.Context, accounts map[keys.Address]*Account) error

	// LoadAccounts returns every persisted account.
	LoadAccounts(ctx context.Context) (map[keys.Address]*Account, error)

	// Close releases any resources held by the store.
	Close() error
}

// Entry pairs an address with a committed account snapshot.
type Entry struct {
	Address keys.Address
	Account Account
}

// Ledger is the account store plus its commit lock.
type Ledger struct {
	mu          sync.RWMutex
	accounts    map[keys.Address]*Account
	rentPerByte uint64
	store       AccountStore
}

// New returns an in-memory ledger with the given rent rate.
func New(rentPerByte uint64) *Ledger {
	return &Ledger{
		accounts:    make(map[keys.Address]*Account),
		rentPerByte: rentPerByte,
	}
}

// NewWithStore returns a ledger backed by a persistent account store,
// preloaded with every account the store holds.
func NewWithStore(ctx context.Context, rentPerByte uint64, store AccountStore) (*Ledger, error) {
	accounts, err := store.LoadAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if accounts == nil {
		accounts = make(map[keys.Address]*Account)
	}
	return &Ledger{
		accounts:    accounts,
		rentPerByte: rentPerByte,
		store:       store,
	}, nil
}

// RentExemptMinimum returns the balance an account holding dataLen bytes must
// retain to stay allocated. The 128-byte overhead covers account metadata.
func (l *Ledger) RentExemptMinimum(dataLen int) uint64 {
	return l.rentPerByte * (128 + uint64(dataLen))
}

// GetAccount returns a copy of the account at addr.
func (l *Ledger) GetAccount(addr keys.Address) (Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[addr]
	if !ok {
		return Account{}, false
	}
	return *acct.clone(), true
}

// Balance returns the balance at addr, zero if the account does not exist.
func (l *Ledger) Balance(addr keys.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if acct, ok := l.accounts[addr]; ok {
		return acct.Balance
	}
	return 0
}

// ScanByOwner returns a snapshot of every account owned by owner whose data
// begins with prefix. The prefix compare is a cheap byte filter, run before
// any decode; pass nil to match all. Order is unspecified.
func (l *Ledger) ScanByOwner(owner keys.Address, prefix []byte) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for addr, acct := range l.accounts {
		if acct.Owner != owner {
			continue
		}
		if len(prefix) > 0 {
			if len(acct.Data) < len(prefix) || !bytes.Equal(acct.Data[:len(prefix)], prefix) {
				continue
			}
		}
		out = append(out, Entry{Address: addr, Account: *acct.clone()})
	}
	return out
}

// Airdrop mints amount into the wallet at addr, creating it if needed. Dev
// faucet only; there is no corresponding debit.
func (l *Ledger) Airdrop(ctx context.Context, addr keys.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[addr]
	if !ok {
		acct = &Account{Owner: keys.ZeroAddress}
	}
	acct.Balance += amount

	if l.store != nil {
		if err := l.store.SaveAccounts(ctx, map[keys.Address]*Account{addr: acct}); err != nil {
			return fmt.Errorf("persist airdrop: %w", err)
		}
	}
	l.accounts[addr] = acct
	return nil
}

// Close closes the backing store, if any.
func (l *Ledger) Close() error {
	if l.store != nil {
		return l.store.Close()
	}
	return nil
}
