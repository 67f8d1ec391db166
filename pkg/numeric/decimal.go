package numeric

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Precision is the number of significant digits the venue accepts for prices and amounts.
const Precision = 8

// Epsilon bounds price equality between venue-reported and locally computed values.
var Epsilon = decimal.New(1, -7)

var two = decimal.NewFromInt(2)

// ParsePositiveDecimal converts value to a decimal and rejects negatives.
// Accepted inputs are decimal.Decimal, string, int, int64 and float64.
func ParsePositiveDecimal(value any, label string) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := value.(type) {
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, &ValidationError{Field: label, Value: value, Reason: "missing value"}
		}
		d = *v
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, &ValidationError{Field: label, Value: value, Reason: "not a finite number"}
		}
		d = decimal.NewFromFloat(v)
	default:
		return decimal.Zero, &ValidationError{Field: label, Value: value, Reason: fmt.Sprintf("unsupported type %T", value)}
	}
	if err != nil {
		return decimal.Zero, &ValidationError{Field: label, Value: value, Reason: "not a decimal"}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: label, Value: value, Reason: "must be positive"}
	}
	return d, nil
}

// ParseEnum trims and upper-cases value and checks it against allowed.
func ParseEnum[T ~string](value string, label string, allowed ...T) (T, error) {
	opt := T(strings.ToUpper(strings.TrimSpace(value)))
	if !slices.Contains(allowed, opt) {
		return opt, &ValidationError{Field: label, Value: value, Reason: fmt.Sprintf("must be one of %v", allowed)}
	}
	return opt, nil
}

// QuantizeFloor rounds value down to a multiple of tick.
// A zero or negative tick leaves value unchanged.
func QuantizeFloor(value, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return value
	}
	steps := value.Div(tick).Floor()
	return steps.Mul(tick)
}

// Reduce floors d to Precision significant digits, the default arithmetic context.
func Reduce(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	intDigits := int32(d.NumDigits()) + d.Exponent()
	return d.RoundFloor(Precision - intDigits)
}

// Div divides and reduces the result to the default context.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return Reduce(a.DivRound(b, 2*Precision+int32(max(0, -b.Exponent()))))
}

// Mean averages values in the default context. It returns false for an empty input.
func Mean(values []decimal.Decimal) (decimal.Decimal, bool) {
	if len(values) == 0 {
		return decimal.Zero, false
	}
	return Div(decimal.Sum(decimal.Zero, values...), decimal.NewFromInt(int64(len(values)))), true
}

// Median returns the middle value; for an even count the mean of the two middle values.
func Median(values []decimal.Decimal) (decimal.Decimal, bool) {
	n := len(values)
	if n == 0 {
		return decimal.Zero, false
	}
	sorted := slices.Clone(values)
	slices.SortFunc(sorted, func(a, b decimal.Decimal) int { return a.Cmp(b) })
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return Div(sorted[n/2-1].Add(sorted[n/2]), two), true
}

// IsEqual reports whether lhs and rhs differ by less than Epsilon.
func IsEqual(lhs, rhs decimal.Decimal) bool {
	return lhs.Sub(rhs).Abs().LessThan(Epsilon)
}
