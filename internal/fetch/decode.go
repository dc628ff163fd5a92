package fetch

import (
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// decodeBody converts a response body to UTF-8 using the declared
// Content-Type charset, sniffing when the declaration is missing. Sources
// routinely mis-declare their encoding, so invalid input falls back to a
// permissive single-byte decode that cannot fail.
func decodeBody(body []byte, contentType string) []byte {
	if len(body) == 0 {
		return body
	}
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	// JSON feeds rarely declare a charset; valid UTF-8 wins over the
	// windows-1252 sniffing default.
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		if utf8.Valid(body) {
			return body
		}
		// Declared UTF-8 but the bytes disagree. Decoding would litter the
		// text with replacement runes; a Latin-1 read recovers the accents.
		return latin1Fallback(body)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil || !utf8.Valid(decoded) {
		return latin1Fallback(body)
	}
	return decoded
}

// latin1Fallback maps every byte to a rune; a garbled accent beats a
// dropped notice.
func latin1Fallback(body []byte) []byte {
	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), body)
	if err != nil {
		return body
	}
	return decoded
}
