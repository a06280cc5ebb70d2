package conversation

import (
	"math"
	"strconv"
	"strings"
)

// inr renders a rupee amount with comma grouping, e.g. 500000 -> "₹500,000".
func inr(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	if len(s) <= 3 {
		return "₹" + sign + s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return "₹" + sign + b.String()
}

// pct renders an annual interest rate, keeping one decimal for whole numbers
// so 12.0 reads as a rate rather than a count.
func pct(rate float64) string {
	if rate == math.Trunc(rate) {
		return strconv.FormatFloat(rate, 'f', 1, 64) + "%"
	}
	return strconv.FormatFloat(rate, 'f', -1, 64) + "%"
}
