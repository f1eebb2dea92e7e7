package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 4

var hundred = decimal.NewFromInt(100)

// RoundMoney applies the single rounding rule used for every amount:
// four decimal places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// ClampWithholding bounds a withholding percentage to [0, 100]
func ClampWithholding(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// ParseWithholding reads a user-supplied percentage ("15", "15.5", "15,5",
// "15%"). Non-numeric input fails; numeric input is clamped.
func ParseWithholding(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if raw == "" {
		return decimal.Zero, nil
	}
	pct, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidWithholding, s)
	}
	return ClampWithholding(pct), nil
}

// Net applies a clamped withholding percentage to a gross amount
func Net(gross, pct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(ClampWithholding(pct).Div(hundred))
	return RoundMoney(gross.Mul(factor))
}
