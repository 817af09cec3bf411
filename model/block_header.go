package model

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed length of a serialized BlockHeader:
// version(4) + prev_hash(32) + merkle_root(32) + time(8) + bits(4) + nonce(8).
const HeaderSize = 4 + 32 + 32 + 8 + 4 + 8

// BlockHeader is the 88-byte fixed-layout structure identifying a block.
type BlockHeader struct {
	Version        uint32
	HashPrevBlock  Hash256
	HashMerkleRoot Hash256
	Time           uint64
	Bits           uint32
	Nonce          uint64
}

// NewBlockHeaderFromBytes decodes a BlockHeader from its 88-byte encoding.
func NewBlockHeaderFromBytes(b []byte) (*BlockHeader, error) {
	if len(b) != HeaderSize {
		return nil, fmt.Errorf("block header must be %d bytes, got %d", HeaderSize, len(b))
	}

	prevHash, err := NewHashFromBytes(b[4:36])
	if err != nil {
		return nil, fmt.Errorf("prev hash: %w", err)
	}
	merkleRoot, err := NewHashFromBytes(b[36:68])
	if err != nil {
		return nil, fmt.Errorf("merkle root: %w", err)
	}

	return &BlockHeader{
		Version:        binary.LittleEndian.Uint32(b[0:4]),
		HashPrevBlock:  prevHash,
		HashMerkleRoot: merkleRoot,
		Time:           binary.LittleEndian.Uint64(b[68:76]),
		Bits:           binary.LittleEndian.Uint32(b[76:80]),
		Nonce:          binary.LittleEndian.Uint64(b[80:88]),
	}, nil
}

// Bytes returns the canonical 88-byte encoding.
func (bh *BlockHeader) Bytes() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], bh.Version)
	copy(b[4:36], bh.HashPrevBlock[:])
	copy(b[36:68], bh.HashMerkleRoot[:])
	binary.LittleEndian.PutUint64(b[68:76], bh.Time)
	binary.LittleEndian.PutUint32(b[76:80], bh.Bits)
	binary.LittleEndian.PutUint64(b[80:88], bh.Nonce)
	return b
}

// Hash computes the block hash: double-SHA256 of the canonical encoding.
func (bh *BlockHeader) Hash() Hash256 {
	return DoubleSHA256(bh.Bytes())
}

// Valid reports whether the header's proof-of-work hash, computed by hashFn,
// is less than or equal to the target its Bits field expands to.
func (bh *BlockHeader) Valid(hashFn func(header []byte) Hash256) bool {
	target := ExpandTarget(bh.Bits)
	if target == nil {
		return false
	}

	digest := hashFn(bh.Bytes())
	digestInt := hashToBigInt(digest)

	return digestInt.Cmp(target) <= 0
}
