// Package sqlite provides a SQLite-backed implementation of the
// ledger.AccountStore interface, so ledger state survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/ledger"
)

// Ensure Store implements ledger.AccountStore
var _ ledger.AccountStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    address TEXT PRIMARY KEY,
    owner   TEXT NOT NULL,
    balance INTEGER NOT NULL,
    data    BLOB
);

CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner);
`

// Store persists ledger accounts in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and ensures the schema
// exists. Parent directories are created automatically.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAccounts upserts a batch of accounts inside one SQL transaction, so a
// ledger commit's write-back lands all-or-nothing. Balances are stored as the
// signed 64-bit representation of the unsigned value to keep the column
// INTEGER.
func (s *Store) SaveAccounts(ctx context.Context, accounts map[keys.Address]*ledger.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO accounts (address, owner, balance, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET owner = excluded.owner,
		   balance = excluded.balance, data = excluded.data`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for addr, acct := range accounts {
		if _, err := stmt.ExecContext(ctx,
			addr.String(), acct.Owner.String(), int64(acct.Balance), acct.Data,
		); err != nil {
			return fmt.Errorf("failed to save account %s: %w", addr.Short(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accounts: %w", err)
	}
	return nil
}

// LoadAccounts returns every persisted account keyed by address.
func (s *Store) LoadAccounts(ctx context.Context) (map[keys.Address]*ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT address, owner, balance, data FROM accounts",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[keys.Address]*ledger.Account)
	for rows.Next() {
		var (
			addrText, ownerText string
			balance             int64
			data                []byte
		)
		if err := rows.Scan(&addrText, &ownerText, &balance, &data); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		addr, err := keys.ParseAddress(addrText)
		if err != nil {
			return nil, fmt.Errorf("corrupt account address %q: %w", addrText, err)
		}
		owner, err := keys.ParseAddress(ownerText)
		if err != nil {
			return nil, fmt.Errorf("corrupt account owner %q: %w", ownerText, err)
		}

		accounts[addr] = &ledger.Account{
			Owner:   owner,
			Balance: uint64(balance),
			Data:    data,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}
