package models

import (
	"github.com/spleety/spleety/internal/layout"
)

// PriceFeedTag is the PriceFeed record discriminator.
var PriceFeedTag = layout.Tag("PriceFeed")

var priceFeedLayout = layout.Layout{
	Tag: PriceFeedTag,
	Fields: []layout.Field{
		{Name: "price_mantissa", Kind: layout.U64},
		{Name: "exponent", Kind: layout.I64},
		{Name: "updated_at", Kind: layout.I64},
	},
}

// PriceFeed is the oracle's exchange-rate snapshot: the native-per-USD rate
// as fixed-point Mantissa * 10^Exponent. The protocol only ever reads it.
type PriceFeed struct {
	// PriceMantissa is the fixed-point mantissa of the native-per-USD rate.
	PriceMantissa uint64

	// Exponent is the decimal exponent applied to the mantissa. Negative in
	// practice; e.g. mantissa 6_666_667 with exponent -9 is ~0.0066667
	// native per USD ($150 per native coin).
	Exponent int64

	// UpdatedAt is the Unix timestamp of the oracle's last update, used for
	// the freshness check.
	UpdatedAt int64
}

// EncodePriceFeed serializes the snapshot to its wire form.
func EncodePriceFeed(f *PriceFeed) ([]byte, error) {
	return layout.Encode(priceFeedLayout, layout.Values{
		"price_mantissa": f.PriceMantissa,
		"exponent":       f.Exponent,
		"updated_at":     f.UpdatedAt,
	})
}

// DecodePriceFeed parses a snapshot from its wire form.
func DecodePriceFeed(data []byte) (*PriceFeed, error) {
	v, err := layout.Decode(priceFeedLayout, data)
	if err != nil {
		return nil, err
	}
	return &PriceFeed{
		PriceMantissa: v["price_mantissa"].(uint64),
		Exponent:      v["exponent"].(int64),
		UpdatedAt:     v["updated_at"].(int64),
	}, nil
}
