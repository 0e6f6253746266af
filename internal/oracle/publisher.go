package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/ledger"
	"github.com/spleety/spleety/internal/models"
)

// Read fetches and decodes the price feed record at addr.
func Read(l *ledger.Ledger, addr keys.Address) (*models.PriceFeed, error) {
	acct, ok := l.GetAccount(addr)
	if !ok {
		return nil, fmt.Errorf("price feed %s: %w", addr.Short(), ledger.ErrAccountNotFound)
	}
	feed, err := models.DecodePriceFeed(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("price feed %s: %w", addr.Short(), err)
	}
	return feed, nil
}

// Publisher maintains the price feed record within the oracle program's
// namespace. It stands in for the external oracle so payments are executable
// in development and tests; the protocol core never writes through it.
type Publisher struct {
	ledger    *ledger.Ledger
	deriver   *keys.Deriver
	authority keys.Signer
}

// NewPublisher returns a Publisher funded by authority.
func NewPublisher(l *ledger.Ledger, d *keys.Deriver, authority keys.Signer) *Publisher {
	return &Publisher{ledger: l, deriver: d, authority: authority}
}

// Publish writes a fresh snapshot with the given fixed-point rate, creating
// the feed account on first use. Returns the feed address.
func (p *Publisher) Publish(ctx context.Context, mantissa uint64, exponent int64, now time.Time) (keys.Address, error) {
	addr, _, err := p.deriver.OracleAddress()
	if err != nil {
		return keys.ZeroAddress, fmt.Errorf("derive feed address: %w", err)
	}

	data, err := models.EncodePriceFeed(&models.PriceFeed{
		PriceMantissa: mantissa,
		Exponent:      exponent,
		UpdatedAt:     now.Unix(),
	})
	if err != nil {
		return keys.ZeroAddress, fmt.Errorf("encode feed: %w", err)
	}

	var tx *ledger.Transaction
	if _, exists := p.ledger.GetAccount(addr); exists {
		tx = ledger.NewTransaction(p.deriver.OracleProgram()).
			ModifyData(addr, func([]byte) ([]byte, error) { return data, nil })
	} else {
		rent := p.ledger.RentExemptMinimum(len(data))
		tx = ledger.NewTransaction(p.deriver.OracleProgram()).
			CreateAccount(p.authority.Address(), addr, p.deriver.OracleProgram(), data, rent).
			Sign(p.authority)
	}

	if err := p.ledger.Commit(ctx, tx); err != nil {
		return keys.ZeroAddress, fmt.Errorf("publish feed: %w", err)
	}
	return addr, nil
}
