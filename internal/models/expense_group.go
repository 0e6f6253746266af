package models

import (
	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/layout"
)

// Unit and bound constants shared across the protocol.
const (
	// UsdMicroPerDollar is the number of USD micro-units in one dollar.
	UsdMicroPerDollar = 1_000_000

	// MinorPerNative is the number of minor units in one native coin.
	MinorPerNative = 1_000_000_000

	// MaxTitleLen is the maximum expense title length, in characters.
	MaxTitleLen = 50

	// MinParticipants and MaxParticipants bound the participant count.
	// The count includes the creator.
	MinParticipants = 2
	MaxParticipants = 10
)

// ExpenseGroupTag is the ExpenseGroup record discriminator.
var ExpenseGroupTag = layout.Tag("ExpenseGroup")

var expenseGroupLayout = layout.Layout{
	Tag: ExpenseGroupTag,
	Fields: []layout.Field{
		{Name: "authority", Kind: layout.Addr},
		{Name: "title", Kind: layout.Str},
		{Name: "total_amount_usd", Kind: layout.U64},
		{Name: "participant_count", Kind: layout.U8},
		{Name: "amount_per_person_usd", Kind: layout.U64},
		{Name: "paid_count", Kind: layout.U8},
		{Name: "settled", Kind: layout.Bool},
		{Name: "created_at", Kind: layout.I64},
		{Name: "bump", Kind: layout.U8},
	},
}

// ExpenseGroup is the record behind one shared expense.
type ExpenseGroup struct {
	// Authority is the creator's address. Only this identity may settle.
	Authority keys.Address

	// Title is the display title, at most MaxTitleLen characters.
	Title string

	// TotalAmountUSD is the full expense value in USD micro-units.
	TotalAmountUSD uint64

	// ParticipantCount is the number of people splitting the expense,
	// creator included. Always within [MinParticipants, MaxParticipants].
	ParticipantCount uint8

	// AmountPerPersonUSD is TotalAmountUSD / ParticipantCount, truncated.
	// Fixed at creation.
	AmountPerPersonUSD uint64

	// PaidCount counts settled shares. Starts at 1: the creator's share is
	// considered covered at creation, with no transfer.
	PaidCount uint8

	// Settled is an informational status flag. Withdrawal eligibility is
	// governed by the account balance, not this flag.
	Settled bool

	// CreatedAt is the creation Unix timestamp.
	CreatedAt int64

	// Bump is the derivation bump of the record's address.
	Bump uint8
}

// EncodeExpenseGroup serializes the record to its wire form.
func EncodeExpenseGroup(g *ExpenseGroup) ([]byte, error) {
	return layout.Encode(expenseGroupLayout, layout.Values{
		"authority":             [32]byte(g.Authority),
		"title":                 g.Title,
		"total_amount_usd":      g.TotalAmountUSD,
		"participant_count":     g.ParticipantCount,
		"amount_per_person_usd": g.AmountPerPersonUSD,
		"paid_count":            g.PaidCount,
		"settled":               g.Settled,
		"created_at":            g.CreatedAt,
		"bump":                  g.Bump,
	})
}

// DecodeExpenseGroup parses an ExpenseGroup from its wire form.
func DecodeExpenseGroup(data []byte) (*ExpenseGroup, error) {
	v, err := layout.Decode(expenseGroupLayout, data)
	if err != nil {
		return nil, err
	}
	return &ExpenseGroup{
		Authority:          keys.Address(v["authority"].([32]byte)),
		Title:              v["title"].(string),
		TotalAmountUSD:     v["total_amount_usd"].(uint64),
		ParticipantCount:   v["participant_count"].(uint8),
		AmountPerPersonUSD: v["amount_per_person_usd"].(uint64),
		PaidCount:          v["paid_count"].(uint8),
		Settled:            v["settled"].(bool),
		CreatedAt:          v["created_at"].(int64),
		Bump:               v["bump"].(uint8),
	}, nil
}
