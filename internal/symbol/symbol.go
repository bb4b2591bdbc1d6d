// Package symbol classifies and sanitises instrument identifiers before
// they are used to build upstream requests.
package symbol

import (
	"regexp"
	"strings"
)

var (
	isinPattern   = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{10}$`)
	tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-^]+$`)
)

// unsafeSequences are rejected anywhere in a ticker. Input is upper-cased
// first, so percent-encodings are listed in upper case only.
var unsafeSequences = []string{
	"..", "/", "\\", "\x00",
	"%2E%2E", "%2E.", ".%2E", "%2F", "%5C", "%00",
}

// Normalize trims surrounding whitespace and upper-cases s.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsISIN reports whether code has the shape of an ISIN: two letters
// followed by ten alphanumerics. The check digit is not verified.
func IsISIN(code string) bool {
	code = Normalize(code)
	if code == "" {
		return false
	}
	return isinPattern.MatchString(code)
}

// IsSafeTicker reports whether code can be placed in an upstream URL path
// or query. Only letters, digits, '.', '-' and '^' are allowed and
// traversal or control sequences are rejected, including percent-encoded ones.
func IsSafeTicker(code string) bool {
	code = Normalize(code)
	if code == "" {
		return false
	}
	for _, seq := range unsafeSequences {
		if strings.Contains(code, seq) {
			return false
		}
	}
	return tickerPattern.MatchString(code)
}
