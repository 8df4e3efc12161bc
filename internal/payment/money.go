package payment

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const MaxDescriptionLength = 500

var (
	MaxAmount     = decimal.NewFromInt(1_000_000)
	minorPerMajor = decimal.NewFromInt(100)
)

func init() {
	// Amounts go over the wire as JSON numbers, matching the stored rows.
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidateAmount rejects a missing or over-limit amount, and one that rounds
// to less than a single minor unit.
func ValidateAmount(amount *decimal.Decimal) error {
	if amount == nil || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if ToMinorUnits(*amount) < 1 {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// ToMinorUnits converts a major-unit amount to the gateway's minor units
// (rupees to paise), rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorPerMajor).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// NormalizeCurrency upper-cases a 3-letter code, defaulting to INR.
func NormalizeCurrency(currency *string) (string, error) {
	if currency == nil || strings.TrimSpace(*currency) == "" {
		return DefaultCurrency, nil
	}
	c := strings.ToUpper(strings.TrimSpace(*currency))
	if len(c) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return c, nil
}

// NormalizeDescription trims the description; blank becomes nil.
func NormalizeDescription(description *string) (*string, error) {
	if description == nil {
		return nil, nil
	}
	d := strings.TrimSpace(*description)
	if d == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(d) > MaxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	return &d, nil
}
