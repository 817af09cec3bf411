package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNBit(t *testing.T) {
	bits, err := NewNBitFromString("1e0cbb05")
	require.NoError(t, err)
	require.Equal(t, "1e0cbb05", bits.String())

	difficulty := bits.CalculateDifficulty()
	require.Equal(t, "0.0003068360688", difficulty.String())

	target := bits.CalculateTarget()
	require.Equal(t, "87862992749702277876753291758735394717545048148536728461472937357082624", target.String())
}

func TestCalculateTarget(t *testing.T) {
	bits, err := NewNBitFromString("180f7f7d")
	require.NoError(t, err)

	difficulty, _ := bits.CalculateDifficulty().Float32()
	expectedDifficulty, _ := big.NewFloat(70944300723.85233).Float32()
	require.Equal(t, expectedDifficulty, difficulty)

	target := bits.CalculateTarget()
	require.Equal(t, "380009881215830907712605183958726704270100120947772096512", target.String())
}

func TestCompactRoundTrip(t *testing.T) {
	for _, bits := range []uint32{0x1d00ffff, 0x1c0ffff0, 0x1b0404cb} {
		target := CompactToBig(bits)
		back := BigToCompact(target)
		require.Equal(t, bits, back)
	}
}

func TestWorkForBits(t *testing.T) {
	easy := WorkForBits(0x1d00ffff)
	hard := WorkForBits(0x1c0ffff0)

	// A numerically smaller target represents more work to find.
	require.Equal(t, -1, easy.Cmp(hard))
}
