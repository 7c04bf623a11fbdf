package util

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

// NormalizeName folds a product name for exact comparison: lower case,
// inner whitespace collapsed, outer whitespace trimmed.
func NormalizeName(input string) string {
	s := strings.ToLower(input)
	s = strings.ReplaceAll(s, " ", " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CompactName additionally removes all whitespace, so "탐 뷰티" and
// "탐뷰티" compare equal when looking for brand mentions.
func CompactName(input string) string {
	return strings.Join(strings.Fields(strings.ToLower(input)), "")
}

// TruncateRunes cuts a string to at most n runes.
func TruncateRunes(input string, n int) string {
	r := []rune(input)
	if len(r) <= n {
		return input
	}
	return string(r[:n])
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}
