package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/ledger"
	"github.com/spleety/spleety/internal/models"
	"github.com/spleety/spleety/internal/oracle"
	"github.com/spleety/spleety/internal/program"
)

type env struct {
	ledger  *ledger.Ledger
	program *program.Program
	scanner *Scanner
	now     time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()

	programKey, err := keys.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	oracleKey, err := keys.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}

	l := ledger.New(10)
	d := keys.NewDeriver(programKey.Address(), oracleKey.Address())

	e := &env{
		ledger:  l,
		scanner: New(l, programKey.Address()),
		now:     time.Unix(1_700_000_000, 0),
	}
	e.program = program.New(program.Config{
		Ledger:    l,
		Deriver:   d,
		Converter: oracle.NewConverter(0),
		Clock:     func() time.Time { return e.now },
	})
	return e
}

func (e *env) fundedWallet(t *testing.T) *keys.Keypair {
	t.Helper()
	kp, err := keys.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	if err := e.ledger.Airdrop(context.Background(), kp.Address(), 2_000_000_000); err != nil {
		t.Fatalf("Airdrop failed: %v", err)
	}
	return kp
}

func (e *env) createExpense(t *testing.T, creator keys.Signer, id, title string) keys.Address {
	t.Helper()
	addr, _, err := e.program.CreateExpense(context.Background(), creator, id, title, 10_000_000, 2)
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return addr
}

func TestListExpensesFiltersByCreator(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.fundedWallet(t)
	bob := e.fundedWallet(t)

	a1 := e.createExpense(t, alice, "one", "Groceries")
	a2 := e.createExpense(t, alice, "two", "Rent")
	e.createExpense(t, bob, "one", "Concert")

	listings, err := e.scanner.ListExpensesFor(ctx, alice.Address())
	if err != nil {
		t.Fatalf("ListExpensesFor failed: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}
	found := map[keys.Address]bool{}
	for _, l := range listings {
		found[l.Address] = true
		if l.Group.Authority != alice.Address() {
			t.Errorf("listing %s has foreign authority", l.Address.Short())
		}
	}
	if !found[a1] || !found[a2] {
		t.Error("scan missed one of the creator's expenses")
	}
}

func TestListExpensesNewestFirst(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.fundedWallet(t)

	e.createExpense(t, alice, "old", "Old")
	e.now = e.now.Add(time.Hour)
	e.createExpense(t, alice, "mid", "Mid")
	e.now = e.now.Add(time.Hour)
	e.createExpense(t, alice, "new", "New")

	listings, err := e.scanner.ListExpensesFor(ctx, alice.Address())
	if err != nil {
		t.Fatalf("ListExpensesFor failed: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("got %d listings, want 3", len(listings))
	}
	titles := []string{listings[0].Group.Title, listings[1].Group.Title, listings[2].Group.Title}
	if titles[0] != "New" || titles[1] != "Mid" || titles[2] != "Old" {
		t.Errorf("order = %v, want newest first", titles)
	}
}

func TestListExpensesStableTieOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.fundedWallet(t)

	// Same clock reading for every record.
	for _, id := range []string{"a", "b", "c", "d"} {
		e.createExpense(t, alice, id, "Same moment")
	}

	first, err := e.scanner.ListExpensesFor(ctx, alice.Address())
	if err != nil {
		t.Fatalf("ListExpensesFor failed: %v", err)
	}
	for n := 0; n < 5; n++ {
		again, err := e.scanner.ListExpensesFor(ctx, alice.Address())
		if err != nil {
			t.Fatalf("ListExpensesFor failed: %v", err)
		}
		for i := range first {
			if again[i].Address != first[i].Address {
				t.Fatal("tied-timestamp order changed between calls")
			}
		}
	}
}

func TestListExpensesSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.fundedWallet(t)
	good := e.createExpense(t, alice, "good", "Fine")

	// Plant a record that carries the right tag but truncated contents.
	bad := append([]byte(nil), models.ExpenseGroupTag[:]...)
	bad = append(bad, 0x01)
	junkAddr, err := keys.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	funder := e.fundedWallet(t)
	tx := ledger.NewTransaction(e.program.Deriver().Program()).
		CreateAccount(funder.Address(), junkAddr.Address(), e.program.Deriver().Program(),
			bad, e.ledger.RentExemptMinimum(len(bad))).
		Sign(funder)
	if err := e.ledger.Commit(ctx, tx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	listings, err := e.scanner.ListExpensesFor(ctx, alice.Address())
	if err != nil {
		t.Fatalf("ListExpensesFor failed: %v", err)
	}
	if len(listings) != 1 || listings[0].Address != good {
		t.Errorf("got %d listings, want only the decodable record", len(listings))
	}
}

func TestListExpensesIgnoresParticipantRecords(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.fundedWallet(t)
	payer := e.fundedWallet(t)

	addr := e.createExpense(t, alice, "dinner", "Dinner")
	seedPriceFeed(t, e)
	if _, _, err := e.program.JoinAndPay(ctx, payer, addr); err != nil {
		t.Fatalf("JoinAndPay failed: %v", err)
	}

	listings, err := e.scanner.ListExpensesFor(ctx, alice.Address())
	if err != nil {
		t.Fatalf("ListExpensesFor failed: %v", err)
	}
	if len(listings) != 1 {
		t.Errorf("got %d listings, want 1; participant records must not surface", len(listings))
	}
}

func TestListExpensesEmpty(t *testing.T) {
	e := newEnv(t)
	stranger := e.fundedWallet(t)

	listings, err := e.scanner.ListExpensesFor(context.Background(), stranger.Address())
	if err != nil {
		t.Fatalf("ListExpensesFor failed: %v", err)
	}
	if len(listings) != 0 {
		t.Errorf("got %d listings, want none", len(listings))
	}
}

func seedPriceFeed(t *testing.T, e *env) {
	t.Helper()
	authority := e.fundedWallet(t)
	publisher := oracle.NewPublisher(e.ledger, e.program.Deriver(), authority)
	if _, err := publisher.Publish(context.Background(), 4, -3, e.now); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}
