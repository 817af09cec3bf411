package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a Hash256.
const HashSize = 32

// Hash256 is an opaque 32-byte identifier used for txids, block hashes and
// Merkle nodes. The zero value is the null hash used by coinbase inputs.
type Hash256 [HashSize]byte

// NullHash is the all-zero hash referenced by a coinbase input's outpoint.
var NullHash = Hash256{}

// DoubleSHA256 computes SHA256(SHA256(data)), the node's canonical id hash.
func DoubleSHA256(data []byte) Hash256 {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second
}

// NewHashFromBytes copies b into a Hash256, requiring an exact 32-byte length.
func NewHashFromBytes(b []byte) (Hash256, error) {
	var h Hash256
	if len(b) != HashSize {
		return h, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// NewHashFromString parses a big-endian hex string (the display convention
// for hashes) into a Hash256.
func NewHashFromString(s string) (Hash256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash256{}, fmt.Errorf("decoding hash hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash256{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash256
	// hex strings display hashes big-endian by convention; bytes are stored
	// as produced by the hash function (little-endian display reversal).
	for i := 0; i < HashSize; i++ {
		h[i] = b[HashSize-1-i]
	}
	return h, nil
}

// String renders the hash in the conventional reversed-byte-order hex form.
func (h Hash256) String() string {
	rev := make([]byte, HashSize)
	for i := 0; i < HashSize; i++ {
		rev[i] = h[HashSize-1-i]
	}
	return hex.EncodeToString(rev)
}

// Bytes returns the underlying 32 bytes as produced by the hash function.
func (h Hash256) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// IsNull reports whether h is the all-zero hash.
func (h Hash256) IsNull() bool {
	return h == NullHash
}

// Compare implements a lexicographic ordering over the raw bytes, used by
// deterministic iteration such as address rich-list tie-breaking.
func (h Hash256) Compare(other Hash256) int {
	return bytes.Compare(h[:], other[:])
}

// Equal reports whether h and other identify the same hash.
func (h Hash256) Equal(other Hash256) bool {
	return h == other
}
