package escrow

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PlatformFee returns round(amount * feePercent / 100) in minor units,
// rounding half away from zero.
func PlatformFee(amount, feePercent int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(feePercent)).
		Div(hundred).
		Round(0).
		IntPart()
}

// NetAmount is what the seller receives after the platform fee.
func NetAmount(amount, feePercent int64) int64 {
	return amount - PlatformFee(amount, feePercent)
}

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
}

// FormatAmount renders minor units for display, e.g. 10000 usd -> "$100.00".
func FormatAmount(amount int64, currency string) string {
	major := decimal.New(amount, -2).StringFixed(2)
	code := strings.ToLower(currency)
	if symbol, ok := currencySymbols[code]; ok {
		if strings.HasPrefix(major, "-") {
			return "-" + symbol + strings.TrimPrefix(major, "-")
		}
		return symbol + major
	}
	return fmt.Sprintf("%s %s", major, strings.ToUpper(code))
}
