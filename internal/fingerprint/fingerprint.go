// Package fingerprint computes the idempotency signature stored at
// smtpAgent.idempotency.messageHash.
//
// The engine writes the hash only when a send succeeds, so a producer
// that rewrites a document's payload before its first successful send
// gets the rewritten version delivered; the hash then reflects what was
// actually sent.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const hashLength = 16

// Of returns the first 16 hex characters of the SHA-256 digest of
// subject, html, and the sorted, pipe-joined recipients, concatenated
// in that order with no separator between them. Recipient order never
// affects the result.
func Of(subject, html string, recipients []string) string {
	sorted := make([]string, len(recipients))
	copy(sorted, recipients)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(subject))
	h.Write([]byte(html))
	h.Write([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(h.Sum(nil))[:hashLength]
}
