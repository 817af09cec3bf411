// Package emission implements the pure functions governing coin issuance:
// the per-block subsidy schedule and the total supply cap.
package emission

import "github.com/coreledger/nodecore/chaincfg"

// BlockReward returns the coinbase subsidy for a block mined at height,
// before fees: InitialReward halved every HalvingInterval blocks, floored to
// zero once the halving shift exceeds 63 (the reward is definitionally zero
// long before that point given the real parameters).
func BlockReward(params *chaincfg.Params, height uint32) uint64 {
	halvings := height / params.HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return params.InitialReward >> halvings
}

// TotalSupplyAt returns the cumulative supply emitted by committing every
// block from height 0 through height inclusive, capped at MaxSupply. It sums
// each halving era in closed form rather than iterating block by block.
func TotalSupplyAt(params *chaincfg.Params, height uint32) uint64 {
	var total uint64

	blocksRemaining := uint64(height) + 1
	era := uint32(0)

	for blocksRemaining > 0 {
		reward := BlockReward(params, era*params.HalvingInterval)
		if reward == 0 {
			break
		}

		blocksInEra := uint64(params.HalvingInterval)
		if blocksInEra > blocksRemaining {
			blocksInEra = blocksRemaining
		}

		emitted := blocksInEra * reward

		remaining := params.MaxSupply - total
		if emitted > remaining {
			return params.MaxSupply
		}
		total += emitted

		blocksRemaining -= blocksInEra
		era++
	}

	return total
}

// AllowedCoinbaseValue returns the maximum a coinbase transaction at height
// may pay out: the block subsidy plus collected fees, clamped so cumulative
// emission never exceeds MaxSupply.
func AllowedCoinbaseValue(params *chaincfg.Params, height uint32, priorSupply uint64, fees uint64) uint64 {
	reward := BlockReward(params, height)

	remaining := uint64(0)
	if params.MaxSupply > priorSupply {
		remaining = params.MaxSupply - priorSupply
	}

	if reward > remaining {
		reward = remaining
	}

	return reward + fees
}
