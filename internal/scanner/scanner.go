// Package scanner implements the read path: enumerating ExpenseGroup records
// for a creator without any write or lock.
package scanner

import (
	"context"
	"log/slog"
	"sort"

	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/ledger"
	"github.com/spleety/spleety/internal/models"
)

// Listing is one decoded expense with its address.
type Listing struct {
	Address keys.Address
	Group   *models.ExpenseGroup
}

// Scanner lists protocol records from ledger snapshots.
type Scanner struct {
	ledger  *ledger.Ledger
	program keys.Address
}

// New returns a Scanner over the given program namespace.
func New(l *ledger.Ledger, program keys.Address) *Scanner {
	return &Scanner{ledger: l, program: program}
}

// ListExpensesFor returns every expense created by creator, most recent
// first. Candidate accounts are filtered by the record tag bytes before any
// decode; records that fail to decode are logged and skipped, never aborting
// the scan.
func (s *Scanner) ListExpensesFor(ctx context.Context, creator keys.Address) ([]Listing, error) {
	entries := s.ledger.ScanByOwner(s.program, models.ExpenseGroupTag[:])

	listings := make([]Listing, 0, len(entries))
	for _, e := range entries {
		group, err := models.DecodeExpenseGroup(e.Account.Data)
		if err != nil {
			slog.Warn("skipping undecodable expense record",
				"address", e.Address.String(),
				"error", err,
			)
			continue
		}
		if group.Authority != creator {
			continue
		}
		listings = append(listings, Listing{Address: e.Address, Group: group})
	}

	// The scan itself carries no order; sort here, newest first. Ties break
	// on address so the order is stable across calls.
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].Group.CreatedAt != listings[j].Group.CreatedAt {
			return listings[i].Group.CreatedAt > listings[j].Group.CreatedAt
		}
		return listings[i].Address.String() < listings[j].Address.String()
	})
	return listings, nil
}
