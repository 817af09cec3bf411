package validator

import (
	"time"

	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/difficulty"
	"github.com/coreledger/nodecore/emission"
	"github.com/coreledger/nodecore/errors"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/pow"
)

// UtxoLookup resolves an outpoint against the base UTXO set (the state as of
// the block being extended, before any of its own transactions apply).
type UtxoLookup func(model.OutPoint) (*model.Utxo, error)

// BlockContext carries everything about chain state a BlockValidator needs
// but does not itself own: the parent's height and difficulty history, the
// wall-clock bounds a header's timestamp must fall within, and a lookup for
// outputs the block's transactions spend.
type BlockContext struct {
	TipHeight      uint32
	PrevBits       uint32
	Intervals      []time.Duration
	MedianTimePast uint64
	Now            uint64
	PriorSupply    uint64
	Lookup         UtxoLookup
	PowHandle      pow.Handle
}

// BlockValidator enforces the block-level consensus rules and produces the
// UTXO diff a valid block implies.
type BlockValidator struct {
	params    *chaincfg.Params
	powOracle pow.Oracle
	txv       *TxValidator
}

// NewBlockValidator builds a BlockValidator sharing tv's transaction rules.
func NewBlockValidator(params *chaincfg.Params, powOracle pow.Oracle, tv *TxValidator) *BlockValidator {
	return &BlockValidator{params: params, powOracle: powOracle, txv: tv}
}

// ValidateHeader runs only the checks that do not require a UTXO view:
// proof-of-work, timestamp, difficulty, merkle root and block size. It is used to admit
// a block on a fork branch that is not (yet) the active chain, where full
// transaction replay would require UTXO state the store does not hold.
func (bv *BlockValidator) ValidateHeader(block *model.Block, bc BlockContext) error {
	if err := bv.checkProofOfWork(block, bc); err != nil {
		return err
	}
	if err := bv.checkTimestamp(block, bc); err != nil {
		return err
	}
	if err := bv.checkDifficulty(block, bc); err != nil {
		return err
	}
	if err := bv.checkMerkleRoot(block); err != nil {
		return err
	}
	return bv.checkSize(block)
}

// ValidateBlock runs the block-level checks and, on success, every
// non-coinbase transaction's per-transaction checks against a shadow UTXO
// view that folds in outputs created earlier in the same block. It returns
// the diff the block would apply to the UTXO store.
func (bv *BlockValidator) ValidateBlock(block *model.Block, bc BlockContext) (*model.BlockDiff, error) {
	if err := bv.checkProofOfWork(block, bc); err != nil {
		return nil, err
	}
	if err := bv.checkTimestamp(block, bc); err != nil {
		return nil, err
	}
	if err := bv.checkDifficulty(block, bc); err != nil {
		return nil, err
	}
	if err := bv.checkMerkleRoot(block); err != nil {
		return nil, err
	}
	if err := bv.checkSize(block); err != nil {
		return nil, err
	}

	diff, err := bv.checkTransactionsAndBuildDiff(block, bc)
	if err != nil {
		return nil, err
	}

	if err := bv.checkCoinbase(block, bc, diff.Fees); err != nil {
		return nil, err
	}

	return diff, nil
}

func (bv *BlockValidator) checkProofOfWork(block *model.Block, bc BlockContext) error {
	hashFn := func(headerBytes []byte) model.Hash256 {
		return bv.powOracle.Hash(bc.PowHandle, headerBytes)
	}
	if !block.Header.Valid(hashFn) {
		return errors.NewBadPoWError("block hash does not satisfy the target implied by bits 0x%08x", block.Header.Bits)
	}
	return nil
}

func (bv *BlockValidator) checkTimestamp(block *model.Block, bc BlockContext) error {
	if block.Header.Time <= bc.MedianTimePast {
		return errors.NewBadTimestampError("block time %d is not greater than median time past %d", block.Header.Time, bc.MedianTimePast)
	}
	limit := bc.Now + uint64(bv.params.FutureTimeLimit/time.Second)
	if block.Header.Time > limit {
		return errors.NewBadTimestampError("block time %d is too far in the future (limit %d)", block.Header.Time, limit)
	}
	return nil
}

// checkDifficulty enforces the 10-block retarget cadence: bits are held
// constant for a whole DifficultyWindow-sized epoch and only recomputed on
// the block that starts the next one.
func (bv *BlockValidator) checkDifficulty(block *model.Block, bc BlockContext) error {
	expected := difficulty.NextBits(bv.params, bc.TipHeight+1, bc.PrevBits, bc.Intervals)
	if block.Header.Bits != expected {
		return errors.NewBadDifficultyError("block bits 0x%08x does not match expected 0x%08x", block.Header.Bits, expected)
	}
	return nil
}

func (bv *BlockValidator) checkMerkleRoot(block *model.Block) error {
	computed := block.ComputeMerkleRoot()
	if !computed.Equal(block.Header.HashMerkleRoot) {
		return errors.NewBadMerkleRootError("computed merkle root %s does not match header %s", computed, block.Header.HashMerkleRoot)
	}
	return nil
}

func (bv *BlockValidator) checkSize(block *model.Block) error {
	if bv.params.MaxBlockSize > 0 && block.SerializeSize() > bv.params.MaxBlockSize {
		return errors.NewBlockTooLargeError("block size %d exceeds max block size %d", block.SerializeSize(), bv.params.MaxBlockSize)
	}
	return nil
}

// checkTransactionsAndBuildDiff validates every transaction after the
// coinbase against a shadow view: the base UTXO set overlaid with outputs
// created earlier in this same block, so intra-block chains of spends are
// accepted while double-spends within the block are rejected.
func (bv *BlockValidator) checkTransactionsAndBuildDiff(block *model.Block, bc BlockContext) (*model.BlockDiff, error) {
	cb := block.Coinbase()
	if cb == nil {
		return nil, errors.NewBadCoinbaseError("block has no transactions")
	}

	diff := &model.BlockDiff{}
	nextHeight := bc.TipHeight + 1

	shadowCreated := make(map[model.OutPoint]*model.Utxo)
	spentInBlock := make(map[model.OutPoint]struct{})

	resolve := func(op model.OutPoint) (*model.Utxo, error) {
		if u, ok := shadowCreated[op]; ok {
			return u, nil
		}
		return bc.Lookup(op)
	}

	for vout, out := range cb.Outputs {
		u := &model.Utxo{
			OutPoint:   model.OutPoint{TxID: cb.TxID(), Vout: uint32(vout)},
			Output:     out,
			Height:     nextHeight,
			IsCoinbase: true,
		}
		shadowCreated[u.OutPoint] = u
		diff.Creates = append(diff.Creates, u)
	}

	for i, tx := range block.Transactions[1:] {
		spent := make(map[model.OutPoint]*model.Utxo, len(tx.Inputs))
		for _, in := range tx.Inputs {
			if _, dup := spentInBlock[in.PreviousOutput]; dup {
				return nil, errors.NewDoubleSpendInBlockError("outpoint %s spent twice within block (tx %d)", in.PreviousOutput, i+1)
			}
			u, err := resolve(in.PreviousOutput)
			if err != nil {
				return nil, err
			}
			spent[in.PreviousOutput] = u
		}

		fee, err := bv.txv.ValidateTransaction(tx, spent, bc.TipHeight)
		if err != nil {
			return nil, err
		}
		diff.Fees += fee

		for _, in := range tx.Inputs {
			spentInBlock[in.PreviousOutput] = struct{}{}
			if _, local := shadowCreated[in.PreviousOutput]; local {
				// Created and consumed within this block: the output never
				// reaches the store, so it is neither a create nor a spend.
				delete(shadowCreated, in.PreviousOutput)
				for j, c := range diff.Creates {
					if c.OutPoint == in.PreviousOutput {
						diff.Creates = append(diff.Creates[:j], diff.Creates[j+1:]...)
						break
					}
				}
				continue
			}
			diff.Spends = append(diff.Spends, in.PreviousOutput)
		}

		for vout, out := range tx.Outputs {
			u := &model.Utxo{
				OutPoint: model.OutPoint{TxID: tx.TxID(), Vout: uint32(vout)},
				Output:   out,
				Height:   nextHeight,
			}
			shadowCreated[u.OutPoint] = u
			diff.Creates = append(diff.Creates, u)
		}
	}

	return diff, nil
}

func (bv *BlockValidator) checkCoinbase(block *model.Block, bc BlockContext, fees uint64) error {
	cb := block.Coinbase()
	if !cb.IsCoinbase() {
		return errors.NewBadCoinbaseError("first transaction is not a coinbase transaction")
	}
	for i, tx := range block.Transactions[1:] {
		if tx.IsCoinbase() {
			return errors.NewBadCoinbaseError("transaction %d is a coinbase transaction outside position 0", i+1)
		}
	}

	nextHeight := bc.TipHeight + 1
	var coinbaseTotal uint64
	for _, out := range cb.Outputs {
		coinbaseTotal += out.Value
	}

	allowed := emission.AllowedCoinbaseValue(bv.params, nextHeight, bc.PriorSupply, fees)
	if coinbaseTotal > allowed {
		return errors.NewBadCoinbaseError("coinbase value %d exceeds allowed %d (height %d, fees %d)", coinbaseTotal, allowed, nextHeight, fees)
	}

	return nil
}
