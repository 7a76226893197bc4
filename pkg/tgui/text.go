package tgui

import (
	"html"
	"strings"
	"unicode/utf8"
)

// EscTrunc escapes s and keeps the escaped text within n runes. Entities are
// never split; a cut result ends in "…".
func EscTrunc(s string, n int) H {
	if n <= 0 {
		return ""
	}
	full := html.EscapeString(s)
	if utf8.RuneCountInString(full) <= n {
		return H(full)
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		e := html.EscapeString(string(r))
		w := utf8.RuneCountInString(e)
		if used+w > n-1 {
			break
		}
		b.WriteString(e)
		used += w
	}
	b.WriteString("…")
	return H(b.String())
}
