package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps, in bytes, for values copied from requests into logs and
// error bodies.
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128
	MaxGeneralStringLength = 2000
)

func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeString drops invalid UTF-8 and control characters other than
// whitespace, then truncates to maxLength bytes on a rune boundary and
// marks the cut with "...". A non-positive maxLength means
// MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = strings.Map(keepPrintable, strings.ToValidUTF8(s, ""))
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func keepPrintable(r rune) rune {
	switch {
	case unicode.IsPrint(r), r == ' ', r == '\t', r == '\n', r == '\r':
		return r
	default:
		return -1
	}
}
