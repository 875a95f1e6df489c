// Package fingerprint computes content digests used as the unit of change
// comparison across the sync engine. Two byte sequences are considered the
// same content iff their digests match.
package fingerprint

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// Algo is the digest algorithm tag recorded alongside persisted hashes, so a
// future algorithm change invalidates old digests instead of mismatching them.
const Algo = "blake3"

// Sum returns the hex-encoded blake3 digest of data.
func Sum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SumReader returns the hex-encoded blake3 digest of everything read from r.
func SumReader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
