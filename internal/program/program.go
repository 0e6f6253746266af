// Package program implements the expense settlement state machine: the
// create, join-and-pay, and settle transitions and the read operations, all
// executed as atomic ledger transactions.
package program

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/ledger"
	"github.com/spleety/spleety/internal/models"
	"github.com/spleety/spleety/internal/oracle"
)

// Config wires a Program's collaborators. Every dependency is explicit; the
// program holds no process-wide state.
type Config struct {
	Ledger    *ledger.Ledger
	Deriver   *keys.Deriver
	Converter *oracle.Converter

	// Clock supplies timestamps for created_at/paid_at. Defaults to
	// time.Now.
	Clock func() time.Time
}

// Program executes protocol transitions against the ledger.
type Program struct {
	ledger    *ledger.Ledger
	deriver   *keys.Deriver
	converter *oracle.Converter
	clock     func() time.Time
}

// New returns a Program for the given configuration.
func New(cfg Config) *Program {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Program{
		ledger:    cfg.Ledger,
		deriver:   cfg.Deriver,
		converter: cfg.Converter,
		clock:     clock,
	}
}

// Deriver exposes the program's address deriver, usable for building
// shareable links without a ledger round-trip.
func (p *Program) Deriver() *keys.Deriver {
	return p.deriver
}

// CreateExpense registers a new expense for the creator. The record is
// allocated at its derived address and funded to the rent-exempt minimum by
// the creator. The creator's own share counts as paid from the start.
func (p *Program) CreateExpense(
	ctx context.Context,
	creator keys.Signer,
	expenseID, title string,
	totalUSDMicro uint64,
	participantCount uint8,
) (keys.Address, *models.ExpenseGroup, error) {
	if utf8.RuneCountInString(title) > models.MaxTitleLen {
		return keys.ZeroAddress, nil, ErrInvalidTitle
	}
	if participantCount < models.MinParticipants || participantCount > models.MaxParticipants {
		return keys.ZeroAddress, nil, ErrInvalidParticipantCount
	}
	if totalUSDMicro == 0 {
		return keys.ZeroAddress, nil, ErrInvalidAmount
	}

	addr, bump, err := p.deriver.ExpenseAddress(creator.Address(), expenseID)
	if err != nil {
		return keys.ZeroAddress, nil, fmt.Errorf("derive expense address: %w", err)
	}
	if _, exists := p.ledger.GetAccount(addr); exists {
		return keys.ZeroAddress, nil, fmt.Errorf("expense %q: %w", expenseID, ErrAlreadyExists)
	}

	group := &models.ExpenseGroup{
		Authority:          creator.Address(),
		Title:              title,
		TotalAmountUSD:     totalUSDMicro,
		ParticipantCount:   participantCount,
		AmountPerPersonUSD: totalUSDMicro / uint64(participantCount),
		PaidCount:          1,
		Settled:            false,
		CreatedAt:          p.clock().Unix(),
		Bump:               bump,
	}
	data, err := models.EncodeExpenseGroup(group)
	if err != nil {
		return keys.ZeroAddress, nil, fmt.Errorf("encode expense: %w", err)
	}

	rent := p.ledger.RentExemptMinimum(len(data))
	tx := ledger.NewTransaction(p.deriver.Program()).
		CreateAccount(creator.Address(), addr, p.deriver.Program(), data, rent).
		Sign(creator)

	if err := p.ledger.Commit(ctx, tx); err != nil {
		return keys.ZeroAddress, nil, mapCommitError(err, nil)
	}
	return addr, group, nil
}

// JoinAndPay pays the caller's share into the expense: one atomic unit
// transferring the converted amount, creating the Participant record, and
// incrementing the paid counter against the committed value. The oracle is
// read fresh for every call.
func (p *Program) JoinAndPay(
	ctx context.Context,
	payer keys.Signer,
	expenseAddr keys.Address,
) (keys.Address, *models.Participant, error) {
	group, err := p.FetchExpenseGroup(ctx, expenseAddr)
	if err != nil {
		return keys.ZeroAddress, nil, err
	}
	if group.Settled {
		return keys.ZeroAddress, nil, ErrExpenseSettled
	}
	if group.PaidCount >= group.ParticipantCount {
		return keys.ZeroAddress, nil, ErrExpenseFull
	}

	partAddr, bump, err := p.deriver.ParticipantAddress(expenseAddr, payer.Address())
	if err != nil {
		return keys.ZeroAddress, nil, fmt.Errorf("derive participant address: %w", err)
	}
	// Existence alone is the uniqueness guard, independent of the record's
	// has_paid value.
	if _, exists := p.ledger.GetAccount(partAddr); exists {
		return keys.ZeroAddress, nil, ErrAlreadyPaid
	}

	feedAddr, _, err := p.deriver.OracleAddress()
	if err != nil {
		return keys.ZeroAddress, nil, fmt.Errorf("derive feed address: %w", err)
	}
	feed, err := oracle.Read(p.ledger, feedAddr)
	if err != nil {
		return keys.ZeroAddress, nil, err
	}

	now := p.clock()
	native, err := p.converter.UsdMicroToNative(group.AmountPerPersonUSD, feed, now)
	if err != nil {
		return keys.ZeroAddress, nil, err
	}

	participant := &models.Participant{
		ExpenseGroup:     expenseAddr,
		Wallet:           payer.Address(),
		HasPaid:          true,
		PaidAmountUSD:    group.AmountPerPersonUSD,
		PaidAmountNative: native,
		PaidAt:           now.Unix(),
		Bump:             bump,
	}
	partData, err := models.EncodeParticipant(participant)
	if err != nil {
		return keys.ZeroAddress, nil, fmt.Errorf("encode participant: %w", err)
	}

	rent := p.ledger.RentExemptMinimum(len(partData))
	if p.ledger.Balance(payer.Address()) < native+rent {
		return keys.ZeroAddress, nil, fmt.Errorf("%w: need %d minor units plus %d rent",
			ErrInsufficientFunds, native, rent)
	}

	tx := ledger.NewTransaction(p.deriver.Program()).
		Transfer(payer.Address(), expenseAddr, native).
		CreateAccount(payer.Address(), partAddr, p.deriver.Program(), partData, rent).
		ModifyData(expenseAddr, incrementPaidCount).
		Sign(payer)

	if err := p.ledger.Commit(ctx, tx); err != nil {
		return keys.ZeroAddress, nil, mapCommitError(err, ErrAlreadyPaid)
	}
	return partAddr, participant, nil
}

// incrementPaidCount is the read-modify-write applied to the authoritative
// ExpenseGroup bytes under the commit lock, so concurrent payments cannot
// lose updates.
func incrementPaidCount(data []byte) ([]byte, error) {
	group, err := models.DecodeExpenseGroup(data)
	if err != nil {
		return nil, err
	}
	if group.Settled {
		return nil, ErrExpenseSettled
	}
	if group.PaidCount >= group.ParticipantCount {
		return nil, ErrExpenseFull
	}
	group.PaidCount++
	return models.EncodeExpenseGroup(group)
}

// Settle withdraws the expense's entire transferable balance (everything
// above the rent-exempt minimum) to the authority. Callable repeatedly while
// funds remain, even before all shares are paid; it does not flip the
// settled flag. Returns the amount withdrawn.
func (p *Program) Settle(
	ctx context.Context,
	authority keys.Signer,
	expenseAddr keys.Address,
) (uint64, error) {
	group, err := p.FetchExpenseGroup(ctx, expenseAddr)
	if err != nil {
		return 0, err
	}
	if group.Authority != authority.Address() {
		return 0, ErrNotExpenseAuthority
	}

	acct, _ := p.ledger.GetAccount(expenseAddr)
	if acct.Balance <= p.ledger.RentExemptMinimum(len(acct.Data)) {
		return 0, ErrNoFundsToWithdraw
	}

	var swept uint64
	tx := ledger.NewTransaction(p.deriver.Program()).
		SweepAboveRent(expenseAddr, authority.Address(), &swept).
		Sign(authority)

	if err := p.ledger.Commit(ctx, tx); err != nil {
		if errors.Is(err, ledger.ErrNothingToSweep) {
			return 0, ErrNoFundsToWithdraw
		}
		return 0, fmt.Errorf("settle: %w", err)
	}
	return swept, nil
}

// FetchExpenseGroup reads and decodes the ExpenseGroup record at addr.
func (p *Program) FetchExpenseGroup(ctx context.Context, addr keys.Address) (*models.ExpenseGroup, error) {
	acct, ok := p.ledger.GetAccount(addr)
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", addr.Short(), ledger.ErrAccountNotFound)
	}
	group, err := models.DecodeExpenseGroup(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("expense %s: %w", addr.Short(), err)
	}
	return group, nil
}

// FetchParticipant reads the Participant record for wallet within the
// expense. Returns (nil, nil) when the wallet has not paid; the record's
// absence is meaningful, not an error.
func (p *Program) FetchParticipant(ctx context.Context, expenseAddr, wallet keys.Address) (*models.Participant, error) {
	partAddr, _, err := p.deriver.ParticipantAddress(expenseAddr, wallet)
	if err != nil {
		return nil, fmt.Errorf("derive participant address: %w", err)
	}
	acct, ok := p.ledger.GetAccount(partAddr)
	if !ok {
		return nil, nil
	}
	participant, err := models.DecodeParticipant(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", partAddr.Short(), err)
	}
	return participant, nil
}

// mapCommitError translates ledger-level failures into protocol errors.
// onExists substitutes for ErrAccountExists when the colliding account has a
// protocol meaning (an existing Participant record means AlreadyPaid).
func mapCommitError(err error, onExists error) error {
	switch {
	case onExists != nil && errors.Is(err, ledger.ErrAccountExists):
		return onExists
	case errors.Is(err, ledger.ErrAccountExists):
		return ErrAlreadyExists
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	default:
		return err
	}
}
