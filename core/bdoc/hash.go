package bdoc

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashBytes computes the BLAKE3-256 hash of data as a hex string.
func HashBytes(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashString computes the BLAKE3-256 hash of s as a hex string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// TextHash identifies the document text. Two documents with the same hash
// share offset tables, so spans from one are valid against the other.
// A document without text hashes to "".
func TextHash(doc *Document) string {
	if !doc.HasText() {
		return ""
	}
	return HashString(doc.Text())
}
