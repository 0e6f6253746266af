package keys

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

// Seed tags for derived addresses. Shared with every client that needs to
// locate a record without a lookup service.
const (
	SeedExpense     = "expense"
	SeedParticipant = "participant"
	SeedPriceFeed   = "price_feed"
)

// derivedMarker domain-separates derived addresses from plain hashes.
const derivedMarker = "ProgramDerivedAddress"

// ErrNoBump is returned when no off-curve candidate exists for a seed set.
// With 256 candidates the probability is negligible; hitting this indicates a
// broken input, not bad luck.
var ErrNoBump = errors.New("no off-curve address found for seeds")

// Derive computes a program-derived address from the given seeds within the
// program's namespace. For each bump from 255 down to 0 the candidate is
// SHA-256(seeds || bump || program || marker); the first candidate that is not
// a valid ed25519 curve point is the address. The result is deterministic and
// can never correspond to a signing identity.
func Derive(program Address, seeds ...[]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program[:])
		h.Write([]byte(derivedMarker))

		var candidate Address
		copy(candidate[:], h.Sum(nil))
		if !onCurve(candidate) {
			return candidate, uint8(bump), nil
		}
	}
	return ZeroAddress, 0, ErrNoBump
}

// onCurve reports whether the 32 bytes decode to a valid ed25519 point.
func onCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

// Deriver computes the protocol's derived addresses. The program and oracle
// program namespaces are explicit configuration rather than process-wide
// constants so tests and deployments can run against their own namespaces.
type Deriver struct {
	program       Address
	oracleProgram Address
}

// NewDeriver returns a Deriver scoped to the given program namespaces.
func NewDeriver(program, oracleProgram Address) *Deriver {
	return &Deriver{program: program, oracleProgram: oracleProgram}
}

// Program returns the expense program namespace.
func (d *Deriver) Program() Address {
	return d.program
}

// OracleProgram returns the oracle program namespace.
func (d *Deriver) OracleProgram() Address {
	return d.oracleProgram
}

// ExpenseAddress derives the address of the ExpenseGroup record for a creator
// and expense identifier. The identifier has no length bound here; it is
// bounded by the transport's payload limits.
func (d *Deriver) ExpenseAddress(creator Address, expenseID string) (Address, uint8, error) {
	return Derive(d.program, []byte(SeedExpense), creator[:], []byte(expenseID))
}

// ParticipantAddress derives the address of the Participant record for a
// wallet within an expense.
func (d *Deriver) ParticipantAddress(expense, wallet Address) (Address, uint8, error) {
	return Derive(d.program, []byte(SeedParticipant), expense[:], wallet[:])
}

// OracleAddress derives the address of the oracle's price feed record.
func (d *Deriver) OracleAddress() (Address, uint8, error) {
	return Derive(d.oracleProgram, []byte(SeedPriceFeed))
}
