package utils

import "strings"

// FormatAddress shortens an address to "0x1234...abcd".
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// FormatBalance renders a decimal string with exactly places fractional digits.
// Extra digits are truncated, never rounded up, so the display never exceeds the real balance.
func FormatBalance(balance string, places int) string {
	balance = strings.TrimSpace(balance)
	if balance == "" {
		balance = "0"
	}
	whole, frac, _ := strings.Cut(balance, ".")
	if whole == "" || whole == "-" {
		whole += "0"
	}
	if places <= 0 {
		return whole
	}
	if len(frac) > places {
		frac = frac[:places]
	} else {
		frac += strings.Repeat("0", places-len(frac))
	}
	return whole + "." + frac
}

// EqualFoldStrings reports whether a and b hold the same strings in the same order, ignoring case.
func EqualFoldStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
