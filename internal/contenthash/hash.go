// Package contenthash computes the change-detection key for ingested files.
//
// The key is the SHA-256 digest of the exact raw bytes read from the source,
// rendered as 64 lowercase hex characters. It is stored alongside every
// document so the syncer can skip files whose bytes have not changed.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a digest returned by Sum.
const Size = sha256.Size * 2

// Empty is the digest of the empty byte string.
const Empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Sum returns the lowercase hex SHA-256 digest of content.
func Sum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
