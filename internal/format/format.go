// Package format renders amounts the way the dashboard and CLI display them:
// en-US grouping, whole-dollar currency, no fraction digits unless asked for.
package format

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Currency formats amount as whole US dollars: 1750000 → "$1,750,000".
// Halves round away from zero.
func Currency(amount float64) string {
	n := whole(amount)
	if n < 0 {
		return "-$" + printer.Sprintf("%d", -n)
	}
	return "$" + printer.Sprintf("%d", n)
}

// Number formats v with thousands separators and no fraction digits.
func Number(v float64) string {
	return printer.Sprintf("%d", whole(v))
}

// Percent formats an already-scaled percentage: 70.4 → "70%". Values above
// 100 are rendered as-is.
func Percent(v float64) string {
	return printer.Sprintf("%d%%", whole(v))
}

// Decimal formats v with exactly places fraction digits.
func Decimal(v float64, places int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	if places < 0 {
		places = 0
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", places), v)
}

// Units converts a raw integer amount with the given decimals to display
// units, e.g. Units(1_500_000_000, 9) → "1.5".
func Units(raw uint64, decimals uint8) string {
	if decimals == 0 {
		return printer.Sprintf("%d", raw)
	}
	s := Decimal(float64(raw)/math.Pow10(int(decimals)), int(decimals))
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func whole(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}

// SOL renders a lamport amount in SOL: 1_500_000_000 → "1.5".
func SOL(lamports uint64) string {
	return Units(lamports, 9)
}

// Token renders a balance already in display units with up to decimals
// fraction digits, trailing zeros trimmed.
func Token(v float64, decimals uint8) string {
	s := Decimal(v, int(decimals))
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
