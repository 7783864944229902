package model

import "fmt"

// RoundingMode selects how a fractional minor-unit amount is rounded.
type RoundingMode string

const (
	// RoundHalfUp rounds .5 towards positive infinity.
	RoundHalfUp RoundingMode = "half_up"
	// RoundHalfEven rounds .5 to the nearest even minor unit.
	RoundHalfEven RoundingMode = "half_even"
)

// ParseRoundingMode accepts the configuration spelling of a rounding mode.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(s) {
	case RoundHalfUp, RoundHalfEven:
		return RoundingMode(s), nil
	case "":
		return RoundHalfUp, nil
	}
	return "", fmt.Errorf("unknown rounding mode %q", s)
}

// Divide returns num/den rounded to an integer with the mode. All arguments are
// minor-unit quantities so no floating point is involved. den must be positive.
func (m RoundingMode) Divide(num, den int64) int64 {
	if den <= 0 {
		panic("money: non-positive divisor")
	}
	q := floorDiv(num, den)
	r := num - q*den // 0 <= r < den
	switch {
	case 2*r > den:
		return q + 1
	case 2*r < den:
		return q
	}
	// Exactly half.
	if m == RoundHalfEven && q%2 == 0 {
		return q
	}
	return q + 1
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FormatMinor renders a minor-unit amount with two decimals, e.g. 1500 -> "15.00".
func FormatMinor(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, currency)
}
