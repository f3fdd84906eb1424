package league

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Dash stands in for a missing value.
const Dash = "—"

var printer = message.NewPrinter(language.English)

// FormatDelta renders n with thousands separators and a forced sign; zero has
// no sign.
func FormatDelta(n int) string {
	if n > 0 {
		return "+" + printer.Sprintf("%d", n)
	}
	return printer.Sprintf("%d", n)
}

// FormatPoints rounds to two decimals and groups thousands: 1,234.50.
func FormatPoints(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	neg := d.IsNegative()
	d = d.Abs()

	whole := d.Truncate(0)
	frac := d.Sub(whole).StringFixed(2) // "0.xx"

	s := printer.Sprintf("%d", whole.IntPart()) + frac[1:]
	if neg {
		return "-" + s
	}
	return s
}

// Ordinal renders 1st, 2nd, 3rd, 4th, 11th, 12th, 13th, 21st... Ranks start
// at 1, so anything below renders as Dash.
func Ordinal(n int) string {
	if n < 1 {
		return Dash
	}
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// OrDash maps empty and "n/a" values to Dash.
func OrDash(s string) string {
	if s == "" || strings.EqualFold(s, "n/a") {
		return Dash
	}
	return s
}
