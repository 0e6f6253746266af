package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/spleety/spleety/internal/keys"
)

// Transaction is the atomic unit of ledger mutation: an ordered list of
// instructions executed within one program namespace. Either every
// instruction applies, or none do.
//
// Debits from wallet accounts require a valid signature from the holder over
// the transaction message. Record accounts are writable and debitable only
// when their owner matches the transaction's program namespace.
type Transaction struct {
	program keys.Address
	instrs  []instruction
	sigs    map[keys.Address][]byte
}

type instrKind uint8

const (
	instrCreateAccount instrKind = iota + 1
	instrTransfer
	instrSweep
	instrModifyData
)

type instruction struct {
	kind   instrKind
	funder keys.Address // createAccount
	from   keys.Address // transfer, sweep
	to     keys.Address // transfer, sweep
	addr   keys.Address // createAccount, modifyData
	owner  keys.Address // createAccount
	amount uint64       // createAccount (funding), transfer
	data   []byte       // createAccount

	// modify rewrites record data against the authoritative committed bytes
	// at commit time, so read-modify-write updates never act on a stale
	// snapshot.
	modify func(data []byte) ([]byte, error)

	// swept receives the amount moved by a sweep.
	swept *uint64
}

// NewTransaction starts an empty transaction executing as program.
func NewTransaction(program keys.Address) *Transaction {
	return &Transaction{
		program: program,
		sigs:    make(map[keys.Address][]byte),
	}
}

// CreateAccount allocates a record account at addr, owned by owner, holding
// data, funded with amount from funder. The funder must sign.
func (t *Transaction) CreateAccount(funder, addr, owner keys.Address, data []byte, amount uint64) *Transaction {
	t.instrs = append(t.instrs, instruction{
		kind:   instrCreateAccount,
		funder: funder,
		addr:   addr,
		owner:  owner,
		amount: amount,
		data:   append([]byte(nil), data...),
	})
	return t
}

// Transfer moves amount from one account to another. A wallet source must
// sign; a record source must be owned by the transaction's program.
func (t *Transaction) Transfer(from, to keys.Address, amount uint64) *Transaction {
	t.instrs = append(t.instrs, instruction{
		kind:   instrTransfer,
		from:   from,
		to:     to,
		amount: amount,
	})
	return t
}

// SweepAboveRent moves everything above the source's rent-exempt minimum to
// the destination, computed against the balance current at commit time. The
// amount moved is written to swept. Fails with ErrNothingToSweep when the
// transferable balance is zero.
func (t *Transaction) SweepAboveRent(from, to keys.Address, swept *uint64) *Transaction {
	t.instrs = append(t.instrs, instruction{
		kind:  instrSweep,
		from:  from,
		to:    to,
		swept: swept,
	})
	return t
}

// ModifyData rewrites the record data at addr by applying fn to the committed
// bytes. fn runs under the commit lock; returning an error aborts the whole
// transaction.
func (t *Transaction) ModifyData(addr keys.Address, fn func(data []byte) ([]byte, error)) *Transaction {
	t.instrs = append(t.instrs, instruction{
		kind:   instrModifyData,
		addr:   addr,
		modify: fn,
	})
	return t
}

// Message returns the bytes signers authorize: a hash over the transaction's
// program and instruction list. Sign after all instructions are added.
func (t *Transaction) Message() []byte {
	h := sha256.New()
	h.Write(t.program[:])
	var scratch [8]byte
	for _, in := range t.instrs {
		h.Write([]byte{byte(in.kind)})
		h.Write(in.funder[:])
		h.Write(in.from[:])
		h.Write(in.to[:])
		h.Write(in.addr[:])
		h.Write(in.owner[:])
		binary.LittleEndian.PutUint64(scratch[:], in.amount)
		h.Write(scratch[:])
		h.Write(in.data)
	}
	return h.Sum(nil)
}

// Sign attaches signer's signature over the transaction message.
func (t *Transaction) Sign(signer keys.Signer) *Transaction {
	t.sigs[signer.Address()] = signer.Sign(t.Message())
	return t
}

// Commit validates and applies the transaction atomically. On any error no
// state changes; on success every touched account is persisted to the
// backing store before the in-memory state advances.
func (l *Ledger) Commit(ctx context.Context, t *Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := t.Message()
	staged := make(map[keys.Address]*Account)

	get := func(addr keys.Address) (*Account, bool) {
		if acct, ok := staged[addr]; ok {
			return acct, true
		}
		acct, ok := l.accounts[addr]
		if !ok {
			return nil, false
		}
		c := acct.clone()
		staged[addr] = c
		return c, true
	}

	requireSignature := func(addr keys.Address) error {
		sig, ok := t.sigs[addr]
		if !ok || !keys.Verify(addr, msg, sig) {
			return fmt.Errorf("%w: %s", ErrMissingSigner, addr.Short())
		}
		return nil
	}

	// debit authorizes and applies a withdrawal from addr.
	debit := func(acct *Account, addr keys.Address, amount uint64) error {
		if acct.Owner == keys.ZeroAddress {
			if err := requireSignature(addr); err != nil {
				return err
			}
		} else if acct.Owner != t.program {
			return fmt.Errorf("%w: %s", ErrNotOwner, addr.Short())
		}
		if acct.Balance < amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, acct.Balance, amount)
		}
		remaining := acct.Balance - amount
		if len(acct.Data) > 0 && remaining < l.RentExemptMinimum(len(acct.Data)) {
			return fmt.Errorf("%w: %d remaining, need %d", ErrBelowRentExempt,
				remaining, l.RentExemptMinimum(len(acct.Data)))
		}
		acct.Balance = remaining
		return nil
	}

	credit := func(addr keys.Address, amount uint64) {
		acct, ok := get(addr)
		if !ok {
			acct = &Account{Owner: keys.ZeroAddress}
			staged[addr] = acct
		}
		acct.Balance += amount
	}

	for i, in := range t.instrs {
		var err error
		switch in.kind {
		case instrCreateAccount:
			err = l.applyCreate(in, get, debit, staged)
		case instrTransfer:
			if acct, ok := get(in.from); !ok {
				err = fmt.Errorf("%w: %s", ErrAccountNotFound, in.from.Short())
			} else if err = debit(acct, in.from, in.amount); err == nil {
				credit(in.to, in.amount)
			}
		case instrSweep:
			acct, ok := get(in.from)
			if !ok {
				err = fmt.Errorf("%w: %s", ErrAccountNotFound, in.from.Short())
				break
			}
			floor := l.RentExemptMinimum(len(acct.Data))
			if acct.Balance <= floor {
				err = ErrNothingToSweep
				break
			}
			amount := acct.Balance - floor
			if err = debit(acct, in.from, amount); err == nil {
				credit(in.to, amount)
				if in.swept != nil {
					*in.swept = amount
				}
			}
		case instrModifyData:
			acct, ok := get(in.addr)
			if !ok {
				err = fmt.Errorf("%w: %s", ErrAccountNotFound, in.addr.Short())
				break
			}
			if acct.Owner != t.program {
				err = fmt.Errorf("%w: %s", ErrNotOwner, in.addr.Short())
				break
			}
			var newData []byte
			if newData, err = in.modify(acct.Data); err == nil {
				if acct.Balance < l.RentExemptMinimum(len(newData)) {
					err = fmt.Errorf("%w: data grew past funded size", ErrBelowRentExempt)
				} else {
					acct.Data = newData
				}
			}
		default:
			err = fmt.Errorf("unknown instruction kind %d", in.kind)
		}
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	if l.store != nil {
		if err := l.store.SaveAccounts(ctx, staged); err != nil {
			return fmt.Errorf("persist transaction: %w", err)
		}
	}
	for addr, acct := range staged {
		l.accounts[addr] = acct
	}
	return nil
}

func (l *Ledger) applyCreate(
	in instruction,
	get func(keys.Address) (*Account, bool),
	debit func(*Account, keys.Address, uint64) error,
	staged map[keys.Address]*Account,
) error {
	if _, exists := get(in.addr); exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, in.addr.Short())
	}
	if in.amount < l.RentExemptMinimum(len(in.data)) {
		return fmt.Errorf("%w: funded %d, need %d", ErrBelowRentExempt,
			in.amount, l.RentExemptMinimum(len(in.data)))
	}
	funder, ok := get(in.funder)
	if !ok {
		return fmt.Errorf("%w: funder %s", ErrAccountNotFound, in.funder.Short())
	}
	if err := debit(funder, in.funder, in.amount); err != nil {
		return err
	}
	staged[in.addr] = &Account{
		Owner:   in.owner,
		Balance: in.amount,
		Data:    append([]byte(nil), in.data...),
	}
	return nil
}
