// Package mining assembles candidate blocks and searches for a nonce
// satisfying the current proof-of-work target, in the spirit of the block
// assembler's own mining loop: build a candidate from mempool contents and
// the current tip, then iterate nonces with periodic, cooperative
// cancellation checks rather than a single uninterruptible loop.
package mining

import (
	"context"
	"fmt"
	"time"

	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/difficulty"
	"github.com/coreledger/nodecore/emission"
	"github.com/coreledger/nodecore/errors"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/pow"
	chainstore "github.com/coreledger/nodecore/stores/chain"
	"github.com/coreledger/nodecore/stores/utxo"
	"github.com/coreledger/nodecore/ulogger"
)

// nonceCheckInterval is how often the search loop checks for cancellation,
// matching the "at least every 2^16 nonces" cooperative-cancellation bound.
const nonceCheckInterval = 1 << 16

// timeRefreshInterval is how long Mine searches before refreshing the
// candidate's header timestamp, keeping a long-running search from mining
// against a stale time and drifting outside FutureTimeLimit tolerance.
const timeRefreshInterval = 30 * time.Second

// TxSource supplies the mempool transactions a candidate block should carry,
// plus their summed fee, kept narrow so this package does not depend on a
// concrete mempool implementation.
type TxSource interface {
	TakeForBlockWithFees(sizeBudget int) ([]*model.Transaction, uint64)
}

// Assembler builds candidate blocks on top of the active tip and searches
// for a valid proof of work.
type Assembler struct {
	logger     ulogger.Logger
	params     *chaincfg.Params
	powOracle  pow.Oracle
	chainIndex chainstore.Store
	utxo       utxo.Store
	pool       TxSource
}

// NewAssembler builds a block assembler over the given stores and mempool.
func NewAssembler(logger ulogger.Logger, params *chaincfg.Params, powOracle pow.Oracle, chainIndex chainstore.Store, utxoStore utxo.Store, pool TxSource) *Assembler {
	return &Assembler{logger: logger, params: params, powOracle: powOracle, chainIndex: chainIndex, utxo: utxoStore, pool: pool}
}

// Build assembles a mining candidate paying payoutAddress, without searching
// for a valid nonce: header fields other than Nonce are filled in, ready for
// Mine to search.
func (a *Assembler) Build(ctx context.Context, payoutAddress string) (*model.MiningCandidate, error) {
	tip, err := a.chainIndex.ActiveTip(ctx)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, errors.NewNotFoundError("no active tip to build on")
	}

	times, intervals, err := a.ancestorHistory(ctx, tip)
	if err != nil {
		return nil, err
	}

	nextHeight := tip.Height + 1
	nextBits := difficulty.NextBits(a.params, nextHeight, tip.Header.Bits, intervals)

	medianTimePast := difficulty.MedianTimePast(times)
	now := uint64(time.Now().Unix())
	blockTime := now
	if medianTimePast+1 > blockTime {
		blockTime = medianTimePast + 1
	}

	sizeBudget := a.params.MaxBlockSize - a.params.CoinbaseReserve
	if sizeBudget < 0 {
		sizeBudget = 0
	}
	txs, fees := a.pool.TakeForBlockWithFees(sizeBudget)

	utxoTip, err := a.utxo.Tip(ctx)
	if err != nil {
		return nil, err
	}
	reward := emission.AllowedCoinbaseValue(a.params, nextHeight, utxoTip.TotalSupply, fees)

	tag := []byte(fmt.Sprintf("height %d", nextHeight))
	if len(tag) > 100 {
		tag = tag[:100]
	}
	coinbase := &model.Transaction{
		Version: 1,
		Inputs: []*model.TxInput{
			{PreviousOutput: model.NullOutPoint, ScriptSig: tag, Sequence: 0xffffffff},
		},
		Outputs: []*model.TxOutput{
			{Value: reward, ScriptPubKey: []byte(payoutAddress), Address: payoutAddress},
		},
	}

	transactions := append([]*model.Transaction{coinbase}, txs...)
	header := &model.BlockHeader{
		Version:       1,
		HashPrevBlock: tip.Hash(),
		Time:          blockTime,
		Bits:          nextBits,
	}
	header.HashMerkleRoot = (&model.Block{Header: header, Transactions: transactions}).ComputeMerkleRoot()

	candidate := &model.MiningCandidate{
		Header:        header,
		Height:        nextHeight,
		Transactions:  transactions,
		CoinbaseValue: reward,
	}
	return candidate, nil
}

// Mine searches nonces starting at 0 until candidate's header satisfies its
// own target, checking abort at least every 2^16 nonces so a tip change or
// shutdown interrupts the search promptly, and refreshing the header's
// timestamp every timeRefreshInterval so a long search doesn't mine against
// a stale time. It mutates candidate.Header in place and returns the
// assembled block once a solution is found, or an error if the search is
// cancelled or the nonce space is exhausted.
func (a *Assembler) Mine(ctx context.Context, candidate *model.MiningCandidate, handle pow.Handle, abort <-chan struct{}) (*model.Block, error) {
	hashFn := func(headerBytes []byte) model.Hash256 {
		return a.powOracle.Hash(handle, headerBytes)
	}

	lastRefresh := time.Now()
	for nonce := uint64(0); ; nonce++ {
		if nonce%nonceCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-abort:
				return nil, errors.NewProcessingError("mining aborted")
			default:
			}

			if now := time.Now(); now.Sub(lastRefresh) >= timeRefreshInterval {
				candidate.RefreshTime(uint64(now.Unix()))
				lastRefresh = now
			}
		}

		candidate.Header.Nonce = nonce
		if candidate.Header.Valid(hashFn) {
			return candidate.Block(), nil
		}

		if nonce == ^uint64(0) {
			return nil, errors.NewProcessingError("nonce space exhausted without finding a solution")
		}
	}
}

// ancestorHistory mirrors the chain state manager's own difficulty-window
// walk: it has no access to that unexported helper, and duplicating the
// (small) traversal here keeps this package independent of the chain
// manager's internals.
func (a *Assembler) ancestorHistory(ctx context.Context, tip *chainstore.IndexEntry) ([]uint64, []time.Duration, error) {
	window := int(a.params.DifficultyWindow)
	if int(a.params.MedianTimeSpan) > window {
		window = int(a.params.MedianTimeSpan)
	}

	headers := make([]*model.BlockHeader, 0, window+1)
	cur := tip
	for i := 0; i < window+1 && cur != nil; i++ {
		headers = append(headers, cur.Header)
		if cur.Header.HashPrevBlock.IsNull() {
			break
		}
		next, err := a.chainIndex.GetHeader(ctx, cur.Header.HashPrevBlock)
		if err != nil {
			return nil, nil, err
		}
		cur = next
	}

	for i, j := 0, len(headers)-1; i < j; i, j = i+1, j-1 {
		headers[i], headers[j] = headers[j], headers[i]
	}

	times := make([]uint64, len(headers))
	for i, h := range headers {
		times[i] = h.Time
	}

	var intervals []time.Duration
	for i := 1; i < len(headers); i++ {
		intervals = append(intervals, time.Duration(headers[i].Time-headers[i-1].Time)*time.Second)
	}
	if int(a.params.DifficultyWindow) < len(intervals) {
		intervals = intervals[len(intervals)-int(a.params.DifficultyWindow):]
	}

	return times, intervals, nil
}
