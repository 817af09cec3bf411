// Package difficulty implements the proof-of-work retarget policy: bounding
// the swing in mining difficulty to a ±4x clamp over a short window so a
// low-hashrate network recovers quickly from timestamp manipulation without
// suffering catastrophic difficulty spikes.
package difficulty

import (
	"math/big"
	"time"

	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/model"
)

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NextDifficulty computes the retargeted "bits" value from the previous
// window's bits and the observed inter-block intervals (len == DifficultyWindow).
// actual is the clamped sum of intervals; the new target scales linearly
// with actual/target_window and is bounded by the genesis floor on one side
// and by the DifficultyClamp on both.
func NextDifficulty(params *chaincfg.Params, prevBits uint32, intervals []time.Duration) uint32 {
	targetWindow := params.TargetWindow()

	var sum time.Duration
	for _, iv := range intervals {
		sum += iv
	}

	lo := int64(targetWindow) / params.DifficultyClamp
	hi := int64(targetWindow) * params.DifficultyClamp
	actual := clamp(int64(sum), lo, hi)

	prevTarget := model.CompactToBig(prevBits)

	newTarget := new(big.Int).Mul(prevTarget, big.NewInt(actual))
	newTarget.Div(newTarget, big.NewInt(int64(targetWindow)))

	maxTarget := model.CompactToBig(params.PowLimitBits)
	if newTarget.Cmp(maxTarget) > 0 {
		return params.PowLimitBits
	}

	if newTarget.Sign() < 1 {
		newTarget = big.NewInt(1)
	}

	return model.BigToCompact(newTarget)
}

// NextBits computes the bits a block at nextHeight must carry, given its
// parent's bits and the up-to-DifficultyWindow inter-block intervals ending
// at the parent. Retargeting happens only on the block that starts a new
// DifficultyWindow-sized epoch; every other height holds the parent's bits
// constant, matching the 10-block retarget cadence rather than recomputing
// on every block.
func NextBits(params *chaincfg.Params, nextHeight uint32, prevBits uint32, intervals []time.Duration) uint32 {
	if uint32(len(intervals)) < params.DifficultyWindow {
		// Not enough history yet to fill the retarget window: chain bootstrap
		// mines at the genesis floor.
		return params.PowLimitBits
	}
	if params.DifficultyWindow > 0 && nextHeight%params.DifficultyWindow == 0 {
		return NextDifficulty(params, prevBits, intervals)
	}
	return prevBits
}
