package difficulty

import (
	"math/big"
	"testing"
	"time"

	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/model"
	"github.com/stretchr/testify/require"
)

func TestNextDifficultyUnchangedAtTargetPace(t *testing.T) {
	params := &chaincfg.MainParams
	prevBits := uint32(0x1c0ffff0)

	intervals := make([]time.Duration, params.DifficultyWindow)
	for i := range intervals {
		intervals[i] = params.TargetBlockTime
	}

	got := NextDifficulty(params, prevBits, intervals)
	require.Equal(t, prevBits, got)
}

func TestNextDifficultyDoublesWhenWindowIsHalf(t *testing.T) {
	params := &chaincfg.MainParams
	prevBits := uint32(0x1c0ffff0)

	half := params.TargetWindow() / 2
	intervals := make([]time.Duration, params.DifficultyWindow)
	per := half / time.Duration(params.DifficultyWindow)
	for i := range intervals {
		intervals[i] = per
	}

	prevTarget := model.CompactToBig(prevBits)
	expectedTarget := new(big.Int).Div(prevTarget, big.NewInt(2))
	expectedBits := model.BigToCompact(expectedTarget)

	got := NextDifficulty(params, prevBits, intervals)
	require.Equal(t, expectedBits, got)
}

func TestNextDifficultyClampedAtFourX(t *testing.T) {
	params := &chaincfg.MainParams
	prevBits := uint32(0x1c0ffff0)

	intervals := make([]time.Duration, params.DifficultyWindow)
	per := (params.TargetWindow() * 100) / time.Duration(params.DifficultyWindow)
	for i := range intervals {
		intervals[i] = per
	}

	prevTarget := model.CompactToBig(prevBits)
	maxAllowed := new(big.Int).Mul(prevTarget, big.NewInt(4))

	got := NextDifficulty(params, prevBits, intervals)
	gotTarget := model.CompactToBig(got)

	require.LessOrEqual(t, gotTarget.Cmp(maxAllowed), 0)
}

func TestNextDifficultyNeverEasierThanGenesisFloor(t *testing.T) {
	params := &chaincfg.MainParams
	prevBits := params.PowLimitBits

	intervals := make([]time.Duration, params.DifficultyWindow)
	per := (params.TargetWindow() * 100) / time.Duration(params.DifficultyWindow)
	for i := range intervals {
		intervals[i] = per
	}

	got := NextDifficulty(params, prevBits, intervals)
	require.Equal(t, params.PowLimitBits, got)
}

func TestMedianTimePast(t *testing.T) {
	times := []uint64{100, 200, 150, 300, 50}
	require.Equal(t, uint64(150), MedianTimePast(times))
}

func TestMedianTimePastEmpty(t *testing.T) {
	require.Equal(t, uint64(0), MedianTimePast(nil))
}
