// Package chain implements the chain state manager: it takes candidate
// blocks from the network or the miner, runs them through the validator,
// drives each one's lifecycle through a finite state machine, and keeps the
// UTXO store and block index in step with whichever chain currently carries
// the most cumulative work — reorganizing across forks when a heavier one
// appears.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/difficulty"
	"github.com/coreledger/nodecore/errors"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/pow"
	chainstore "github.com/coreledger/nodecore/stores/chain"
	"github.com/coreledger/nodecore/stores/utxo"
	"github.com/coreledger/nodecore/ulogger"
	"github.com/coreledger/nodecore/validator"
)

// MempoolPort is the narrow slice of mempool behavior the chain manager
// needs: dropping transactions a newly-committed block confirmed, and
// re-offering transactions a reverted block un-confirmed.
type MempoolPort interface {
	RemoveConfirmed(txs []*model.Transaction)
	Readmit(txs []*model.Transaction)
}

// Manager is the chain state manager. Its only state of its own is in
// memory: a cache of not-yet-committed block bodies, the proof-of-work
// handles per seed height, and the per-block lifecycle FSMs; the UTXO store
// and block index are the durable source of truth.
type Manager struct {
	logger  ulogger.Logger
	params  *chaincfg.Params
	utxo    utxo.Store
	index   chainstore.Store
	bv      *validator.BlockValidator
	powOracle pow.Oracle
	mempool MempoolPort

	mu            sync.Mutex
	pendingBlocks map[model.Hash256]*model.Block
	powHandles    map[uint32]pow.Handle
	fsms          map[model.Hash256]*fsm.FSM
}

// NewManager builds a chain state manager over the given stores and validator.
func NewManager(logger ulogger.Logger, params *chaincfg.Params, utxoStore utxo.Store, index chainstore.Store, bv *validator.BlockValidator, powOracle pow.Oracle, mempool MempoolPort) *Manager {
	return &Manager{
		logger:        logger,
		params:        params,
		utxo:          utxoStore,
		index:         index,
		bv:            bv,
		powOracle:     powOracle,
		mempool:       mempool,
		pendingBlocks: make(map[model.Hash256]*model.Block),
		powHandles:    make(map[uint32]pow.Handle),
		fsms:          make(map[model.Hash256]*fsm.FSM),
	}
}

// blockFSM returns the lifecycle FSM tracking hash, creating a fresh one in
// StateUnknown the first time hash is seen.
func (m *Manager) blockFSM(hash model.Hash256) *fsm.FSM {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fsms[hash]
	if !ok {
		f = newBlockFSM(StateUnknown)
		m.fsms[hash] = f
	}
	return f
}

// driveEvent fires event against hash's lifecycle FSM, logging (but not
// failing the caller on) an illegal transition: the index Status column, not
// the FSM, is the durable record, so a stale in-memory FSM must never block
// progress.
func (m *Manager) driveEvent(ctx context.Context, hash model.Hash256, event string) {
	if err := m.blockFSM(hash).Event(ctx, event); err != nil {
		m.logger.Debugf("block %s: %s did not apply cleanly: %v", hash, event, err)
	}
}

func (m *Manager) handleForHeight(ctx context.Context, height uint32) (pow.Handle, error) {
	seedHeight := pow.SeedHeightFor(height)

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.powHandles[seedHeight]; ok {
		return h, nil
	}

	var seed model.Hash256
	if entry, err := m.index.GetByHeight(ctx, seedHeight); err == nil && entry != nil {
		seed = entry.Hash()
	}

	handle, err := m.powOracle.Init(seed)
	if err != nil {
		return nil, errors.NewProcessingError("initialising pow handle for seed height %d", seedHeight, err)
	}
	m.powHandles[seedHeight] = handle
	return handle, nil
}

// SubmitBlock admits a candidate block: validates it, records it in the
// index, and either applies it directly (if it extends the active tip) or
// files it as a pending fork block, triggering a reorganization if that fork
// now carries more cumulative work than the active chain.
func (m *Manager) SubmitBlock(ctx context.Context, block *model.Block) error {
	hash := block.Hash()

	if existing, err := m.index.GetHeader(ctx, hash); err != nil {
		return err
	} else if existing != nil && existing.Status != chainstore.StatusOrphan {
		return nil // already known and not waiting on a missing parent; submission is idempotent
	}

	parent, err := m.index.GetHeader(ctx, block.Header.HashPrevBlock)
	if err != nil {
		return err
	}
	if parent == nil {
		return m.fileOrphan(ctx, block)
	}

	nextHeight := parent.Height + 1
	intervals, times, err := m.ancestorHistory(ctx, parent)
	if err != nil {
		return err
	}

	handle, err := m.handleForHeight(ctx, nextHeight)
	if err != nil {
		return err
	}

	tip, err := m.index.ActiveTip(ctx)
	if err != nil {
		return err
	}

	extendsTip := tip != nil && parent.Hash().Equal(tip.Hash())

	// rejectNew indexes a block that failed validation before it had an
	// index entry, so reject has a row to mark Rejected.
	rejectNew := func() {
		if err := m.index.PutHeader(ctx, &chainstore.IndexEntry{Header: block.Header, Height: nextHeight, CumulativeWork: []byte{}, Status: chainstore.StatusRejected}); err != nil {
			m.logger.Warnf("failed to index rejected block %s: %v", hash, err)
		}
		m.reject(ctx, hash)
	}

	bc := validator.BlockContext{
		TipHeight:      parent.Height,
		PrevBits:       parent.Header.Bits,
		Intervals:      intervals,
		MedianTimePast: difficulty.MedianTimePast(times),
		Now:            uint64(time.Now().Unix()),
		PowHandle:      handle,
	}

	if extendsTip {
		utxoTip, err := m.utxo.Tip(ctx)
		if err != nil {
			return err
		}
		bc.PriorSupply = utxoTip.TotalSupply
		bc.Lookup = func(op model.OutPoint) (*model.Utxo, error) { return m.utxo.Get(ctx, op) }

		diff, err := m.bv.ValidateBlock(block, bc)
		if err != nil {
			rejectNew()
			return err
		}

		if err := m.utxo.ApplyBlockBatch(ctx, block, diff); err != nil {
			return err
		}

		newWork := addWork(parent.CumulativeWork, block.Header.Bits)
		if err := m.index.PutHeader(ctx, &chainstore.IndexEntry{Header: block.Header, Height: nextHeight, CumulativeWork: newWork, Status: chainstore.StatusActive}); err != nil {
			return err
		}
		if err := m.index.SetActiveTip(ctx, hash); err != nil {
			return err
		}
		m.driveEvent(ctx, hash, EventValidate)
		m.driveEvent(ctx, hash, EventCommit)

		if m.mempool != nil {
			m.mempool.RemoveConfirmed(block.Transactions)
		}
		m.reconsiderChildren(ctx, hash)
		return nil
	}

	// Fork branch: accept on header validity alone; full transaction replay
	// happens if and when this branch becomes the active chain.
	if err := m.bv.ValidateHeader(block, bc); err != nil {
		rejectNew()
		return err
	}

	newWork := addWork(parent.CumulativeWork, block.Header.Bits)
	if err := m.index.PutHeader(ctx, &chainstore.IndexEntry{Header: block.Header, Height: nextHeight, CumulativeWork: newWork, Status: chainstore.StatusValid}); err != nil {
		return err
	}
	m.driveEvent(ctx, hash, EventValidate)

	m.mu.Lock()
	m.pendingBlocks[hash] = block
	m.mu.Unlock()

	m.reconsiderChildren(ctx, hash)

	if tip == nil || new(big.Int).SetBytes(newWork).Cmp(new(big.Int).SetBytes(tip.CumulativeWork)) > 0 {
		return m.reorganize(ctx, hash)
	}

	return nil
}

func (m *Manager) reject(ctx context.Context, hash model.Hash256) {
	m.driveEvent(ctx, hash, EventReject)
	if err := m.index.SetStatus(ctx, hash, chainstore.StatusRejected); err != nil {
		m.logger.Warnf("failed to mark block %s rejected: %v", hash, err)
	}
}

func (m *Manager) fileOrphan(ctx context.Context, block *model.Block) error {
	hash := block.Hash()
	m.driveEvent(ctx, hash, EventOrphan)
	if err := m.index.PutHeader(ctx, &chainstore.IndexEntry{
		Header:         block.Header,
		Height:         0,
		CumulativeWork: []byte{},
		Status:         chainstore.StatusOrphan,
	}); err != nil {
		return err
	}
	m.mu.Lock()
	m.pendingBlocks[hash] = block
	m.mu.Unlock()
	return errors.NewOrphanError("block %s has an unknown parent %s", hash, block.Header.HashPrevBlock)
}

// reconsiderChildren looks for pending blocks whose unknown parent was hash
// and resubmits them now that hash is indexed, letting an orphan chain
// unwind as each missing ancestor arrives.
func (m *Manager) reconsiderChildren(ctx context.Context, hash model.Hash256) {
	m.mu.Lock()
	var children []*model.Block
	for childHash, block := range m.pendingBlocks {
		if block.Header.HashPrevBlock.Equal(hash) {
			if entry, err := m.index.GetHeader(ctx, childHash); err == nil && entry != nil && entry.Status == chainstore.StatusOrphan {
				children = append(children, block)
			}
		}
	}
	m.mu.Unlock()

	for _, child := range children {
		m.driveEvent(ctx, child.Hash(), EventReconsider)
		if err := m.SubmitBlock(ctx, child); err != nil {
			m.logger.Debugf("reconsidering orphan %s: %v", child.Hash(), err)
		}
	}
}

// ancestorHistory walks back from parent collecting up to
// max(DifficultyWindow, MedianTimeSpan) headers, returning the inter-block
// intervals (oldest first) and the raw timestamps for median-time-past.
func (m *Manager) ancestorHistory(ctx context.Context, parent *chainstore.IndexEntry) ([]time.Duration, []uint64, error) {
	window := int(m.params.DifficultyWindow)
	if int(m.params.MedianTimeSpan) > window {
		window = int(m.params.MedianTimeSpan)
	}

	headers := make([]*model.BlockHeader, 0, window+1)
	cur := parent
	for i := 0; i < window+1 && cur != nil; i++ {
		headers = append(headers, cur.Header)
		if cur.Header.HashPrevBlock.IsNull() {
			break
		}
		next, err := m.index.GetHeader(ctx, cur.Header.HashPrevBlock)
		if err != nil {
			return nil, nil, err
		}
		cur = next
	}

	// headers is newest-first; reverse to oldest-first.
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
	if int(m.params.DifficultyWindow) < len(intervals) {
		intervals = intervals[len(intervals)-int(m.params.DifficultyWindow):]
	}

	return intervals, times, nil
}

func addWork(prevBytes []byte, bits uint32) []byte {
	prev := new(big.Int).SetBytes(prevBytes)
	prev.Add(prev, model.WorkForBits(bits))
	return prev.Bytes()
}

// reorganize switches the active chain to newTipHash: it finds the common
// ancestor with the current active tip, reverts blocks back to it, then
// replays the new branch's blocks forward, fully re-validating each one
// (including its transactions) against the UTXO state as it existed after
// the previous block in the branch was applied. If any apply-path block
// fails, the whole attempt is aborted and the original active chain is
// restored before the error is returned, so a failed reorg is invisible to
// readers of the index and UTXO store.
func (m *Manager) reorganize(ctx context.Context, newTipHash model.Hash256) error {
	oldTip, err := m.index.ActiveTip(ctx)
	if err != nil {
		return err
	}

	ancestor, revertPath, applyPath, err := m.findFork(ctx, oldTip, newTipHash)
	if err != nil {
		return err
	}

	revertedBlocks := make(map[model.Hash256]*model.Block, len(revertPath))
	for _, hash := range revertPath {
		block, err := m.utxo.RevertBlock(ctx, hash)
		if err != nil {
			return err
		}
		revertedBlocks[hash] = block
		if err := m.demoteToValidated(ctx, hash, block); err != nil {
			return err
		}
	}

	prevEntry := ancestor
	var applied []model.Hash256
	for _, hash := range applyPath {
		block, ok := m.takePending(hash)
		if !ok {
			err := errors.NewOrphanError("reorg: no cached body for fork block %s", hash)
			if restoreErr := m.abortReorg(ctx, ancestor, revertPath, revertedBlocks, applied); restoreErr != nil {
				m.logger.Errorf("reorg: failed to restore prior tip %s: %v", oldTip.Hash(), restoreErr)
				return errors.NewProcessingError("reorg aborted (%v) and restore to prior tip failed", err, restoreErr)
			}
			return err
		}

		entry, err := m.applyForkBlock(ctx, prevEntry, hash, block)
		if err != nil {
			m.reject(ctx, hash)
			// The block was taken off the pending cache but never applied;
			// hand it back so a later reorg attempt can still find it.
			m.mu.Lock()
			m.pendingBlocks[hash] = block
			m.mu.Unlock()
			if restoreErr := m.abortReorg(ctx, ancestor, revertPath, revertedBlocks, applied); restoreErr != nil {
				m.logger.Errorf("reorg: failed to restore prior tip %s: %v", oldTip.Hash(), restoreErr)
				return errors.NewProcessingError("reorg aborted on %s (%v) and restore to prior tip failed", hash, err, restoreErr)
			}
			return err
		}
		applied = append(applied, hash)
		prevEntry = entry
	}

	return m.index.SetActiveTip(ctx, newTipHash)
}

// applyForkBlock validates and applies a single fork block on top of the
// state left behind by prevEntry, returning the resulting index entry. It is
// used both for the forward replay of a winning fork and, in reverse, to
// restore the original branch after an aborted reorganization.
func (m *Manager) applyForkBlock(ctx context.Context, prevEntry *chainstore.IndexEntry, hash model.Hash256, block *model.Block) (*chainstore.IndexEntry, error) {
	intervals, times, err := m.ancestorHistory(ctx, prevEntry)
	if err != nil {
		return nil, err
	}
	handle, err := m.handleForHeight(ctx, prevEntry.Height+1)
	if err != nil {
		return nil, err
	}
	utxoTip, err := m.utxo.Tip(ctx)
	if err != nil {
		return nil, err
	}

	bc := validator.BlockContext{
		TipHeight:      prevEntry.Height,
		PrevBits:       prevEntry.Header.Bits,
		Intervals:      intervals,
		MedianTimePast: difficulty.MedianTimePast(times),
		Now:            uint64(time.Now().Unix()),
		PriorSupply:    utxoTip.TotalSupply,
		Lookup:         func(op model.OutPoint) (*model.Utxo, error) { return m.utxo.Get(ctx, op) },
		PowHandle:      handle,
	}

	diff, err := m.bv.ValidateBlock(block, bc)
	if err != nil {
		return nil, err
	}
	if err := m.utxo.ApplyBlockBatch(ctx, block, diff); err != nil {
		return nil, err
	}
	if err := m.index.SetStatus(ctx, hash, chainstore.StatusActive); err != nil {
		return nil, err
	}
	m.driveEvent(ctx, hash, EventCommit)
	if m.mempool != nil {
		m.mempool.RemoveConfirmed(block.Transactions)
	}

	return m.index.GetHeader(ctx, hash)
}

// demoteToValidated marks a block that just left the active chain: it drops
// to StatusValid, its lifecycle resets to Validated directly rather than
// through an event (Committed->Validated is not a transition any
// forward-moving block ever takes), and its non-coinbase transactions are
// offered back to the mempool.
func (m *Manager) demoteToValidated(ctx context.Context, hash model.Hash256, block *model.Block) error {
	if err := m.index.SetStatus(ctx, hash, chainstore.StatusValid); err != nil {
		return err
	}
	m.mu.Lock()
	m.fsms[hash] = newBlockFSM(StateValidated)
	m.mu.Unlock()
	if m.mempool != nil && len(block.Transactions) > 1 {
		m.mempool.Readmit(block.Transactions[1:])
	}
	return nil
}

// abortReorg undoes a partially-completed reorganization: it unwinds
// whichever prefix of applyPath was already committed, last-applied first
// (the UTXO store can only revert its current tip), then replays the
// original branch's blocks (revertPath, tip-first) back onto the common
// ancestor in their original ancestor-first order. On return the UTXO store,
// index statuses and pending-block cache all match the state they had before
// reorganize was called, except that the block whose failure caused the
// abort stays marked Rejected; the active-tip pointer was never moved in the first
// place, since reorganize only calls SetActiveTip once the whole apply path
// has succeeded.
func (m *Manager) abortReorg(ctx context.Context, ancestor *chainstore.IndexEntry, revertPath []model.Hash256, revertedBlocks map[model.Hash256]*model.Block, applied []model.Hash256) error {
	for i := len(applied) - 1; i >= 0; i-- {
		hash := applied[i]
		block, err := m.utxo.RevertBlock(ctx, hash)
		if err != nil {
			return err
		}
		if err := m.demoteToValidated(ctx, hash, block); err != nil {
			return err
		}
		m.mu.Lock()
		m.pendingBlocks[hash] = block
		m.mu.Unlock()
	}

	prevEntry := ancestor
	for i := len(revertPath) - 1; i >= 0; i-- {
		hash := revertPath[i]
		entry, err := m.applyForkBlock(ctx, prevEntry, hash, revertedBlocks[hash])
		if err != nil {
			return err
		}
		prevEntry = entry
	}

	return nil
}

func (m *Manager) takePending(hash model.Hash256) (*model.Block, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, ok := m.pendingBlocks[hash]
	if ok {
		delete(m.pendingBlocks, hash)
	}
	return block, ok
}

// findFork walks both the current active tip and the candidate new tip back
// to their common ancestor, returning it plus the revert path (active-tip
// side, tip-first) and the apply path (new-tip side, ancestor-first).
func (m *Manager) findFork(ctx context.Context, oldTip *chainstore.IndexEntry, newTipHash model.Hash256) (*chainstore.IndexEntry, []model.Hash256, []model.Hash256, error) {
	newEntry, err := m.index.GetHeader(ctx, newTipHash)
	if err != nil {
		return nil, nil, nil, err
	}
	if newEntry == nil {
		return nil, nil, nil, errors.NewNotFoundError(fmt.Sprintf("no index entry for candidate tip %s", newTipHash))
	}

	seen := make(map[model.Hash256]uint32)

	var revertPath []model.Hash256
	cur := oldTip
	for cur != nil {
		h := cur.Hash()
		seen[h] = cur.Height
		revertPath = append(revertPath, h)
		if cur.Header.HashPrevBlock.IsNull() {
			break
		}
		next, err := m.index.GetHeader(ctx, cur.Header.HashPrevBlock)
		if err != nil {
			return nil, nil, nil, err
		}
		cur = next
	}

	var applyPath []model.Hash256
	cur = newEntry
	var ancestorHash model.Hash256
	found := false
	for cur != nil {
		h := cur.Hash()
		if _, ok := seen[h]; ok {
			ancestorHash = h
			found = true
			break
		}
		applyPath = append(applyPath, h)
		if cur.Header.HashPrevBlock.IsNull() {
			break
		}
		next, err := m.index.GetHeader(ctx, cur.Header.HashPrevBlock)
		if err != nil {
			return nil, nil, nil, err
		}
		cur = next
	}
	if !found {
		return nil, nil, nil, errors.NewProcessingError("reorg: no common ancestor found for %s and %s", oldTip.Hash(), newTipHash)
	}

	// trim revertPath down to (but excluding) the ancestor
	for i, h := range revertPath {
		if h.Equal(ancestorHash) {
			revertPath = revertPath[:i]
			break
		}
	}

	// applyPath was collected newest-first; reverse to ancestor-first.
	for i, j := 0, len(applyPath)-1; i < j; i, j = i+1, j-1 {
		applyPath[i], applyPath[j] = applyPath[j], applyPath[i]
	}

	ancestor, err := m.index.GetHeader(ctx, ancestorHash)
	if err != nil {
		return nil, nil, nil, err
	}

	return ancestor, revertPath, applyPath, nil
}
