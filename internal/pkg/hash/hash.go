// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// ChunkID generates a deterministic chunk ID from the document ID and the
// chunk's character span. Identical inputs always produce the same ID.
func ChunkID(documentID string, start, end int) string {
	return SHA256Short([]byte(fmt.Sprintf("%s:%d-%d", documentID, start, end)), 16)
}

// RunID generates a deterministic run ID from a dataset path, variant name,
// and start timestamp (unix nanoseconds).
func RunID(dataset, variant string, startedAt int64) string {
	return SHA256Short([]byte(fmt.Sprintf("%s:%s:%d", dataset, variant, startedAt)), 16)
}
