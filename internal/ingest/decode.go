package ingest

import (
	"golang.org/x/text/encoding/unicode"
)

// Decode converts raw bytes to text as UTF-8. A leading byte order mark is
// dropped and each maximal ill-formed subsequence becomes one U+FFFD.
func Decode(raw []byte) string {
	// The BOM-aware UTF-8 decoder replaces invalid input and never errors.
	out, _ := unicode.UTF8BOM.NewDecoder().Bytes(raw)
	return string(out)
}
