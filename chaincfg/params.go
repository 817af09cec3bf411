// Package chaincfg carries the consensus parameters every subsystem must
// agree on: block cadence, emission schedule, size limits and the genesis
// difficulty floor.
package chaincfg

import "time"

// Params defines the consensus constants for one network.
type Params struct {
	// Name is a human-readable identifier for the network.
	Name string

	// TargetBlockTime is the cadence the difficulty controller targets.
	TargetBlockTime time.Duration

	// DifficultyWindow is the number of blocks between retargets.
	DifficultyWindow uint32

	// DifficultyClamp bounds how far a single retarget may move the target,
	// expressed as a multiplicative factor (4 means [/4, *4]).
	DifficultyClamp int64

	// HalvingInterval is the number of blocks between reward halvings.
	HalvingInterval uint32

	// InitialReward is the block subsidy at height 0, in base units.
	InitialReward uint64

	// MaxSupply is the hard cap on total emitted base units.
	MaxSupply uint64

	// CoinbaseMaturity is the number of confirmations before a coinbase
	// output may be spent.
	CoinbaseMaturity uint32

	// MaxBlockSize is the maximum serialized block size, in bytes.
	MaxBlockSize int

	// MaxTxSize is the maximum serialized transaction size, in bytes.
	MaxTxSize int

	// MedianTimeSpan is the number of trailing block timestamps used to
	// compute median time past.
	MedianTimeSpan int

	// FutureTimeLimit bounds how far into the future a header's time may be.
	FutureTimeLimit time.Duration

	// MinRelayFeeRate is the minimum fee, in base units per byte, required
	// for mempool admission.
	MinRelayFeeRate uint64

	// PowLimitBits is the genesis difficulty floor: the easiest target the
	// network will ever accept, encoded in compact form.
	PowLimitBits uint32

	// CoinbaseReserve is bytes of header/coinbase overhead reserved when
	// selecting mempool transactions for a candidate block.
	CoinbaseReserve int
}

// MainParams are the production consensus parameters, matching the values
// every implementation of this ledger must agree on bit-for-bit.
var MainParams = Params{
	Name:             "main",
	TargetBlockTime:  450 * time.Second,
	DifficultyWindow: 10,
	DifficultyClamp:  4,
	HalvingInterval:  262800,
	InitialReward:    2710000000,
	MaxSupply:        1999999900000000,
	CoinbaseMaturity: 100,
	MaxBlockSize:     1048576,
	MaxTxSize:        100000,
	MedianTimeSpan:   11,
	FutureTimeLimit:  7200 * time.Second,
	MinRelayFeeRate:  1,
	PowLimitBits:     0x1d00ffff,
	CoinbaseReserve:  1024,
}

// RegtestParams relaxes the genesis difficulty floor for local development
// and test fixtures, where mining a real block at MainParams' difficulty
// would be impractical. All other consensus values are unchanged.
var RegtestParams = Params{
	Name:             "regtest",
	TargetBlockTime:  450 * time.Second,
	DifficultyWindow: 10,
	DifficultyClamp:  4,
	HalvingInterval:  262800,
	InitialReward:    2710000000,
	MaxSupply:        1999999900000000,
	CoinbaseMaturity: 100,
	MaxBlockSize:     1048576,
	MaxTxSize:        100000,
	MedianTimeSpan:   11,
	FutureTimeLimit:  7200 * time.Second,
	MinRelayFeeRate:  1,
	PowLimitBits:     0x207fffff,
	CoinbaseReserve:  1024,
}

// TargetWindow returns the total time the difficulty window should span:
// DifficultyWindow * TargetBlockTime.
func (p *Params) TargetWindow() time.Duration {
	return time.Duration(p.DifficultyWindow) * p.TargetBlockTime
}

// ByName resolves a network name to its Params, as configured via settings.
func ByName(name string) (*Params, bool) {
	switch name {
	case "main", "":
		return &MainParams, true
	case "regtest":
		return &RegtestParams, true
	default:
		return nil, false
	}
}
