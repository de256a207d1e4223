// Package checksum computes content digests used to detect edits and stale index rows.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Changed reports whether two contents differ by digest.
func Changed(before, after []byte) bool {
	return Sum(before) != Sum(after)
}
