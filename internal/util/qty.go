package util

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var decimalComma = regexp.MustCompile(`^[+-]?\d*,\d+$`)

// maxExponent bounds the decimal exponent of parsed numbers; sums rescale
// operands to a common exponent.
const maxExponent = 64

// ParseQuantity coerces user-entered quantity text. ok is false when the
// text is empty, not a number or negative; the returned value is then zero.
func ParseQuantity(input string) (decimal.Decimal, bool) {
	value, ok := parseNumber(input)
	if !ok || value.IsNegative() {
		return decimal.Zero, false
	}
	return value, true
}

// ParseCoefficient reads an impact coefficient cell. An empty cell is zero
// and valid; anything else must be a number.
func ParseCoefficient(input string) (decimal.Decimal, bool) {
	if strings.TrimSpace(input) == "" {
		return decimal.Zero, true
	}
	return parseNumber(input)
}

// ParseFloat is ParseCoefficient for callers that want float64 and no
// empty-cell default.
func ParseFloat(input string) (float64, bool) {
	if strings.TrimSpace(input) == "" {
		return 0, false
	}
	value, ok := parseNumber(input)
	if !ok {
		return 0, false
	}
	return value.InexactFloat64(), true
}

func parseNumber(input string) (decimal.Decimal, bool) {
	token := normalizeNumericToken(input)
	if token == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, false
	}
	if exp := value.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Zero, false
	}
	return value, true
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, "\u00A0", " ")
	compact = strings.TrimSpace(compact)
	if decimalComma.MatchString(compact) {
		return strings.Replace(compact, ",", ".", 1)
	}
	return compact
}

func StringPtr(v string) *string { return &v }
