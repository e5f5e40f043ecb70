package extractor

import (
	"strings"
	"unicode/utf8"
)

func isPDFHeader(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

// cleanText makes decoded page text safe to store: invalid UTF-8 becomes a
// space and NUL bytes, which Postgres text columns reject, are dropped.
func cleanText(s string) string {
	if s == "" {
		return s
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, " ")
	}
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return s
}
