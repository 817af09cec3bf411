package model

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// NBit is the compact 32-bit encoding of a 256-bit proof-of-work target,
// mirroring the classic floating-point-like "bits" representation: the top
// byte is a base-256 exponent, the low three bytes are the mantissa.
type NBit uint32

var (
	bigOne = big.NewInt(1)
	// maxTargetBits is the genesis difficulty floor (difficulty 1).
	maxTargetBits = NBit(0x1d00ffff)
)

// NewNBitFromString parses an 8-hex-digit compact target.
func NewNBitFromString(s string) (NBit, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("decoding bits hex: %w", err)
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("bits must be 4 bytes, got %d", len(b))
	}
	return NBit(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), nil
}

// String renders the compact target as 8 hex digits, big-endian.
func (n NBit) String() string {
	return fmt.Sprintf("%08x", uint32(n))
}

// CompactToBig expands a compact-encoded target into a big.Int, following
// the classic mantissa*256^(exponent-3) construction.
func CompactToBig(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	exponent := uint(bits >> 24)
	negative := bits&0x00800000 != 0

	target := new(big.Int)
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		target.SetInt64(int64(mantissa))
	} else {
		target.SetInt64(int64(mantissa))
		target.Lsh(target, 8*(exponent-3))
	}

	if negative {
		target.Neg(target)
	}

	return target
}

// BigToCompact packs a big.Int into the compact "bits" encoding, the inverse
// of CompactToBig (modulo the precision lost by a 3-byte mantissa).
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	negative := n.Sign() < 0
	work := new(big.Int).Abs(n)

	exponent := uint((work.BitLen() + 7) / 8)

	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(work.Int64())
		mantissa <<= 8 * (3 - exponent)
	} else {
		shifted := new(big.Int).Rsh(work, 8*(exponent-3))
		mantissa = uint32(shifted.Int64())
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent)<<24 | mantissa
	if negative && mantissa != 0 {
		compact |= 0x00800000
	}

	return compact
}

// ExpandTarget expands bits to its full 256-bit integer target.
func ExpandTarget(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() < 0 {
		return nil
	}
	return target
}

// CalculateTarget expands n into its 256-bit integer target.
func (n NBit) CalculateTarget() *big.Int {
	return CompactToBig(uint32(n))
}

// CalculateDifficulty returns the ratio of the genesis-floor target to this
// target's, i.e. how many times harder than difficulty 1 this bits value is.
func (n NBit) CalculateDifficulty() *big.Float {
	maxTarget := new(big.Float).SetInt(CompactToBig(uint32(maxTargetBits)))
	target := new(big.Float).SetInt(n.CalculateTarget())

	if target.Sign() == 0 {
		return big.NewFloat(0)
	}

	return new(big.Float).Quo(maxTarget, target)
}

// hashToBigInt interprets a Hash256 as a 256-bit little-endian integer, the
// convention used to compare a proof-of-work digest against a target.
func hashToBigInt(h Hash256) *big.Int {
	rev := make([]byte, HashSize)
	for i := 0; i < HashSize; i++ {
		rev[i] = h[HashSize-1-i]
	}
	return new(big.Int).SetBytes(rev)
}

// WorkForBits returns the cumulative-work contribution of a block mined at
// the given compact difficulty: 2^256 / (target+1).
func WorkForBits(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}

	denom := new(big.Int).Add(target, bigOne)
	numerator := new(big.Int).Lsh(bigOne, 256)

	return new(big.Int).Div(numerator, denom)
}
