package oracle

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/spleety/spleety/internal/models"
)

func TestUsdMicroToNative(t *testing.T) {
	tests := []struct {
		name     string
		usdMicro uint64
		mantissa uint64
		exponent int64
		want     uint64
	}{
		{
			// $25 at 0.0066667 native per USD: 25e6 * 66667e-7 * 1e3.
			name:     "quarter of a hundred dollar dinner",
			usdMicro: 25_000_000,
			mantissa: 66_667,
			exponent: -7,
			want:     166_667_500,
		},
		{
			name:     "one dollar at one native per USD",
			usdMicro: models.UsdMicroPerDollar,
			mantissa: 1,
			exponent: 0,
			want:     models.MinorPerNative,
		},
		{
			// 1 * 6666667 * 10^(-9+3) = 6.666667 truncated.
			name:     "truncates toward zero",
			usdMicro: 1,
			mantissa: 6_666_667,
			exponent: -9,
			want:     6,
		},
		{
			name:     "dust rounds to zero",
			usdMicro: 1,
			mantissa: 1,
			exponent: -9,
			want:     0,
		},
		{
			name:     "positive exponent path",
			usdMicro: 2_000_000,
			mantissa: 3,
			exponent: 1,
			want:     60_000_000_000,
		},
		{
			name:     "zero amount",
			usdMicro: 0,
			mantissa: 6_666_667,
			exponent: -9,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := usdMicroToNative(tt.usdMicro, tt.mantissa, tt.exponent)
			if err != nil {
				t.Fatalf("usdMicroToNative failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUsdMicroToNativeOverflow(t *testing.T) {
	_, err := usdMicroToNative(math.MaxUint64, math.MaxUint64, 9)
	if !errors.Is(err, ErrAmountTooLarge) {
		t.Errorf("got %v, want ErrAmountTooLarge", err)
	}

	// The intermediate product exceeds 64 bits but the quotient fits; exact
	// big-integer arithmetic must not reject it.
	got, err := usdMicroToNative(math.MaxUint64, 1_000, -9)
	if err != nil {
		t.Fatalf("usdMicroToNative failed: %v", err)
	}
	if want := math.MaxUint64 / uint64(1000); got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestConverterFreshness(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feed := func(age time.Duration) *models.PriceFeed {
		return &models.PriceFeed{
			PriceMantissa: 66_667,
			Exponent:      -7,
			UpdatedAt:     now.Add(-age).Unix(),
		}
	}

	c := NewConverter(time.Minute)

	t.Run("fresh", func(t *testing.T) {
		if _, err := c.UsdMicroToNative(1_000_000, feed(30*time.Second), now); err != nil {
			t.Errorf("fresh feed rejected: %v", err)
		}
	})

	t.Run("at the bound", func(t *testing.T) {
		if _, err := c.UsdMicroToNative(1_000_000, feed(time.Minute), now); err != nil {
			t.Errorf("feed exactly at the bound rejected: %v", err)
		}
	})

	t.Run("stale", func(t *testing.T) {
		_, err := c.UsdMicroToNative(1_000_000, feed(61*time.Second), now)
		if !errors.Is(err, ErrStalePrice) {
			t.Errorf("got %v, want ErrStalePrice", err)
		}
	})

	t.Run("check disabled", func(t *testing.T) {
		unbounded := NewConverter(0)
		if _, err := unbounded.UsdMicroToNative(1_000_000, feed(24*time.Hour), now); err != nil {
			t.Errorf("disabled freshness check still rejected: %v", err)
		}
	})
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantMantissa uint64
		wantExponent int64
		wantErr      bool
	}{
		{"typical rate", "0.0066667", 66_667, -7, false},
		{"integer", "150", 150, 0, false},
		{"unit", "1", 1, 0, false},
		{"zero", "0", 0, 0, true},
		{"negative", "-0.5", 0, 0, true},
		{"garbage", "cheap", 0, 0, true},
		{"empty", "", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mantissa, exponent, err := ParsePrice(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParsePrice(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrice(%q) failed: %v", tt.raw, err)
			}
			if mantissa != tt.wantMantissa || exponent != tt.wantExponent {
				t.Errorf("got %d * 10^%d, want %d * 10^%d",
					mantissa, exponent, tt.wantMantissa, tt.wantExponent)
			}
		})
	}
}

func TestFormatPrice(t *testing.T) {
	got := FormatPrice(&models.PriceFeed{PriceMantissa: 66_667, Exponent: -7})
	if got != "0.0066667" {
		t.Errorf("FormatPrice = %q, want %q", got, "0.0066667")
	}
}
