// Package sha256 computes snapshot digests.
//
// A digest names its algorithm ("sha256:<hex>"), the same form used in cluster-ready
// messages and in GCS object metadata, so a worker can compare it with the bytes it
// downloaded without knowing which backend stored the snapshot.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix tags digests with their algorithm, e.g. "sha256:b94d...".
const Prefix = "sha256:"

// Hasher implements queue.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the algorithm-prefixed hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:]), nil
}
