package models

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/layout"
)

func addr(fill byte) keys.Address {
	var a keys.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestExpenseGroupRoundTrip(t *testing.T) {
	g := &ExpenseGroup{
		Authority:          addr(0xAA),
		Title:              "Ski trip 🎿",
		TotalAmountUSD:     100 * UsdMicroPerDollar,
		ParticipantCount:   4,
		AmountPerPersonUSD: 25 * UsdMicroPerDollar,
		PaidCount:          1,
		Settled:            false,
		CreatedAt:          1_700_000_000,
		Bump:               254,
	}

	data, err := EncodeExpenseGroup(g)
	if err != nil {
		t.Fatalf("EncodeExpenseGroup failed: %v", err)
	}
	if !bytes.HasPrefix(data, ExpenseGroupTag[:]) {
		t.Error("encoded record must start with the ExpenseGroup tag")
	}

	got, err := DecodeExpenseGroup(data)
	if err != nil {
		t.Fatalf("DecodeExpenseGroup failed: %v", err)
	}
	if !reflect.DeepEqual(got, g) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, g)
	}
}

func TestParticipantRoundTrip(t *testing.T) {
	p := &Participant{
		ExpenseGroup:     addr(0x01),
		Wallet:           addr(0x02),
		HasPaid:          true,
		PaidAmountUSD:    25 * UsdMicroPerDollar,
		PaidAmountNative: 166_666_675,
		PaidAt:           1_700_000_100,
		Bump:             255,
	}

	data, err := EncodeParticipant(p)
	if err != nil {
		t.Fatalf("EncodeParticipant failed: %v", err)
	}
	got, err := DecodeParticipant(data)
	if err != nil {
		t.Fatalf("DecodeParticipant failed: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, p)
	}
}

func TestPriceFeedRoundTrip(t *testing.T) {
	f := &PriceFeed{
		PriceMantissa: 6_666_667,
		Exponent:      -9,
		UpdatedAt:     1_700_000_000,
	}

	data, err := EncodePriceFeed(f)
	if err != nil {
		t.Fatalf("EncodePriceFeed failed: %v", err)
	}
	got, err := DecodePriceFeed(data)
	if err != nil {
		t.Fatalf("DecodePriceFeed failed: %v", err)
	}
	if !reflect.DeepEqual(got, f) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, f)
	}
}

func TestTagsDistinguishRecordTypes(t *testing.T) {
	p := &Participant{ExpenseGroup: addr(1), Wallet: addr(2), HasPaid: true}
	data, err := EncodeParticipant(p)
	if err != nil {
		t.Fatalf("EncodeParticipant failed: %v", err)
	}
	if _, err := DecodeExpenseGroup(data); !errors.Is(err, layout.ErrBadTag) {
		t.Errorf("decoding a Participant as an ExpenseGroup: got %v, want ErrBadTag", err)
	}
}
