package models

import (
	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/layout"
)

// ParticipantTag is the Participant record discriminator.
var ParticipantTag = layout.Tag("Participant")

var participantLayout = layout.Layout{
	Tag: ParticipantTag,
	Fields: []layout.Field{
		{Name: "expense_group", Kind: layout.Addr},
		{Name: "wallet", Kind: layout.Addr},
		{Name: "has_paid", Kind: layout.Bool},
		{Name: "paid_amount_usd", Kind: layout.U64},
		{Name: "paid_amount_native", Kind: layout.U64},
		{Name: "paid_at", Kind: layout.I64},
		{Name: "bump", Kind: layout.U8},
	},
}

// Participant records one wallet's payment into one expense. The record is
// created by the payment itself, so its existence implies HasPaid.
type Participant struct {
	// ExpenseGroup is the address of the owning ExpenseGroup record.
	ExpenseGroup keys.Address

	// Wallet is the paying identity.
	Wallet keys.Address

	// HasPaid is permanently true once the record exists.
	HasPaid bool

	// PaidAmountUSD is the share owed at payment time, in USD micro-units.
	PaidAmountUSD uint64

	// PaidAmountNative is the amount actually transferred, in native minor
	// units, at the oracle rate current when the payment committed.
	PaidAmountNative uint64

	// PaidAt is the payment Unix timestamp.
	PaidAt int64

	// Bump is the derivation bump of the record's address.
	Bump uint8
}

// EncodeParticipant serializes the record to its wire form.
func EncodeParticipant(p *Participant) ([]byte, error) {
	return layout.Encode(participantLayout, layout.Values{
		"expense_group":      [32]byte(p.ExpenseGroup),
		"wallet":             [32]byte(p.Wallet),
		"has_paid":           p.HasPaid,
		"paid_amount_usd":    p.PaidAmountUSD,
		"paid_amount_native": p.PaidAmountNative,
		"paid_at":            p.PaidAt,
		"bump":               p.Bump,
	})
}

// DecodeParticipant parses a Participant from its wire form.
func DecodeParticipant(data []byte) (*Participant, error) {
	v, err := layout.Decode(participantLayout, data)
	if err != nil {
		return nil, err
	}
	return &Participant{
		ExpenseGroup:     keys.Address(v["expense_group"].([32]byte)),
		Wallet:           keys.Address(v["wallet"].([32]byte)),
		HasPaid:          v["has_paid"].(bool),
		PaidAmountUSD:    v["paid_amount_usd"].(uint64),
		PaidAmountNative: v["paid_amount_native"].(uint64),
		PaidAt:           v["paid_at"].(int64),
		Bump:             v["bump"].(uint8),
	}, nil
}
