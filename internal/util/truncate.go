package util

import "unicode/utf8"

// Truncate cuts s down to at most max runes, replacing the tail with an
// ellipsis when anything was removed. A non-positive max disables the cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
