package tools

import (
	"strconv"
	"unicode/utf8"
)

// suffixReserve is runes reserved for the truncation marker (approximate; the digit count varies).
const suffixReserve = 80

// TruncateToolOutput caps s at maxRunes runes. If maxRunes <= 0, returns s unchanged.
// The head of s is kept and a marker with the total rune count is appended.
// Truncated JSON may be invalid; the model can retry with a narrower request.
func TruncateToolOutput(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	total := utf8.RuneCountInString(s)
	if total <= maxRunes {
		return s
	}
	keep := maxRunes - suffixReserve
	if keep <= 0 {
		keep = 1
	}
	r := []rune(s)
	return string(r[:keep]) + "\n...[output truncated, total " + strconv.Itoa(total) + " runes]"
}
