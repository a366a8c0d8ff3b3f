// Package fingerprint derives stable content identities from source links.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// QueuePrefix namespaces deterministic queue document ids.
const QueuePrefix = "queue."

// Fingerprint is a 128-bit digest of a link, hex encoded.
type Fingerprint string

// Of returns the fingerprint of link. The link is hashed byte for byte, so
// links differing only in tracking parameters produce different fingerprints.
func Of(link string) Fingerprint {
	sum := sha256.Sum256([]byte(link))
	return Fingerprint(hex.EncodeToString(sum[:16]))
}

func (f Fingerprint) String() string { return string(f) }

// QueueID returns the queue document id for link.
func QueueID(link string) string {
	return QueuePrefix + Of(link).String()
}
