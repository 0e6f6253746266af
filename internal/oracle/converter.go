// Package oracle reads the external price feed and converts USD micro-units
// to native minor units at the quoted rate.
package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/spleety/spleety/internal/models"
)

var (
	// ErrStalePrice is returned when the feed's timestamp is older than the
	// configured freshness bound. Retryable once the oracle updates.
	ErrStalePrice = errors.New("oracle price is stale")

	// ErrAmountTooLarge is returned when a converted amount does not fit in
	// 64 bits.
	ErrAmountTooLarge = errors.New("converted amount exceeds 64 bits")
)

// Converter turns USD micro-unit amounts into native minor units using a
// price feed snapshot. The freshness bound is explicit configuration; the
// oracle's own price computation is outside this package.
type Converter struct {
	maxAge time.Duration
}

// NewConverter returns a Converter that rejects feeds older than maxAge.
// A zero maxAge disables the freshness check.
func NewConverter(maxAge time.Duration) *Converter {
	return &Converter{maxAge: maxAge}
}

// UsdMicroToNative converts usdMicro at the feed's rate, truncating toward
// zero. Truncation slightly under-transfers rather than over-transfers,
// which protects payers from oracle rounding; the direction is part of the
// protocol contract.
func (c *Converter) UsdMicroToNative(usdMicro uint64, feed *models.PriceFeed, now time.Time) (uint64, error) {
	if c.maxAge > 0 {
		age := now.Unix() - feed.UpdatedAt
		if age > int64(c.maxAge/time.Second) {
			return 0, fmt.Errorf("%w: updated %ds ago, bound %s", ErrStalePrice, age, c.maxAge)
		}
	}
	return usdMicroToNative(usdMicro, feed.PriceMantissa, feed.Exponent)
}

// usdMicroToNative computes
//
//	floor(usdMicro * mantissa * 10^(exponent+3))
//
// in exact integer arithmetic: usdMicro/10^6 dollars times mantissa*10^expo
// native per dollar times 10^9 minor units per native. No floating point
// anywhere; transfers must be bit-reproducible.
func usdMicroToNative(usdMicro, mantissa uint64, exponent int64) (uint64, error) {
	z := new(big.Int).SetUint64(usdMicro)
	z.Mul(z, new(big.Int).SetUint64(mantissa))

	e := exponent + 3
	if e >= 0 {
		z.Mul(z, pow10(e))
	} else {
		// Quo truncates toward zero.
		z.Quo(z, pow10(-e))
	}

	if !z.IsUint64() {
		return 0, fmt.Errorf("%w: %s minor units", ErrAmountTooLarge, z.String())
	}
	return z.Uint64(), nil
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
