package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/ledger"
)

func TestPublishCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(10)

	programKey, err := keys.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	oracleKey, err := keys.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	authority, err := keys.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	if err := l.Airdrop(ctx, authority.Address(), 10_000_000); err != nil {
		t.Fatalf("Airdrop failed: %v", err)
	}

	d := keys.NewDeriver(programKey.Address(), oracleKey.Address())
	p := NewPublisher(l, d, authority)

	now := time.Unix(1_700_000_000, 0)
	addr, err := p.Publish(ctx, 66_667, -7, now)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	feed, err := Read(l, addr)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if feed.PriceMantissa != 66_667 || feed.Exponent != -7 || feed.UpdatedAt != now.Unix() {
		t.Errorf("got %+v, want published snapshot", feed)
	}

	later := now.Add(5 * time.Minute)
	addr2, err := p.Publish(ctx, 70_000, -7, later)
	if err != nil {
		t.Fatalf("Publish (update) failed: %v", err)
	}
	if addr2 != addr {
		t.Errorf("feed address changed across updates: %s vs %s", addr2, addr)
	}

	feed, err = Read(l, addr)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if feed.PriceMantissa != 70_000 || feed.UpdatedAt != later.Unix() {
		t.Errorf("got %+v, want updated snapshot", feed)
	}
}

func TestReadMissingFeed(t *testing.T) {
	l := ledger.New(10)
	kp, err := keys.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	if _, err := Read(l, kp.Address()); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("got %v, want ErrAccountNotFound", err)
	}
}
