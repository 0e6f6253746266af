package oracle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/spleety/spleety/internal/models"
)

// ParsePrice converts a decimal native-per-USD string into the feed's
// fixed-point mantissa and exponent.
func ParsePrice(raw string) (mantissa uint64, exponent int64, err error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("parse price %q: %w", raw, err)
	}
	if !d.IsPositive() {
		return 0, 0, errors.New("price must be positive")
	}
	coeff := d.Coefficient()
	if !coeff.IsUint64() {
		return 0, 0, errors.New("price out of range")
	}
	return coeff.Uint64(), int64(d.Exponent()), nil
}

// FormatPrice renders a feed's rate as a decimal string.
func FormatPrice(feed *models.PriceFeed) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(feed.PriceMantissa), int32(feed.Exponent)).String()
}
