// Package checksum computes the content hashes used for drift detection
// between the file store and the metadata index. Only the record body is
// hashed; metadata changes are caught by the index upsert itself.
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
