// Package mempool holds pre-validated, not-yet-confirmed transactions in a
// fee-rate-ordered admission cache, mirroring the batching and locking style
// the block assembler's subtree processor uses to hold its own pending work.
package mempool

import (
	"sort"
	"sync"

	"github.com/coreledger/nodecore/errors"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/ulogger"
	"github.com/coreledger/nodecore/validator"
)

// entry is one admitted transaction plus the bookkeeping needed to order and
// evict it: its fee (computed at admission time, against the UTXO state as
// of admission) and its serialized size.
type entry struct {
	tx   *model.Transaction
	fee  uint64
	size int
}

func (e *entry) feeRate() float64 {
	if e.size == 0 {
		return 0
	}
	return float64(e.fee) / float64(e.size)
}

// Pool is a fee-rate-ordered cache of transactions admitted for inclusion in
// a future block. It tracks which outpoint each pooled transaction spends so
// that a conflicting spend confirmed on-chain can evict every transaction
// that depended on it.
type Pool struct {
	logger ulogger.Logger
	tv     *validator.TxValidator
	lookup validator.UtxoLookup

	mu           sync.Mutex
	txs          map[model.Hash256]*entry
	spentBy      map[model.OutPoint]model.Hash256
	tipHeight    uint32
}

// NewPool builds an empty pool. tv validates admission candidates; lookup
// resolves an outpoint against the confirmed UTXO set (a pooled transaction
// spending another pooled transaction's output is resolved through the pool
// itself, not lookup).
func NewPool(logger ulogger.Logger, tv *validator.TxValidator, lookup validator.UtxoLookup) *Pool {
	return &Pool{
		logger:  logger,
		tv:      tv,
		lookup:  lookup,
		txs:     make(map[model.Hash256]*entry),
		spentBy: make(map[model.OutPoint]model.Hash256),
	}
}

// SetTipHeight updates the height new admissions are checked against
// (coinbase maturity, in particular). The pool does not follow the chain
// itself: the height stays at the last value set here (zero initially).
func (p *Pool) SetTipHeight(height uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tipHeight = height
}

// resolve looks up an outpoint against pooled outputs first, then the
// confirmed UTXO set, so chains of unconfirmed spends validate correctly.
// Caller must hold p.mu.
func (p *Pool) resolve(op model.OutPoint) (*model.Utxo, error) {
	if parent, ok := p.txs[op.TxID]; ok {
		for vout, out := range parent.tx.Outputs {
			if uint32(vout) == op.Vout {
				return &model.Utxo{OutPoint: op, Output: out, Height: p.tipHeight + 1}, nil
			}
		}
	}
	return p.lookup(op)
}

// Add validates tx and, if it passes admission (including the minimum relay
// fee rate) and does not conflict with an already-pooled transaction,
// inserts it. Re-adding an already-pooled transaction is a no-op.
func (p *Pool) Add(tx *model.Transaction) error {
	txid := tx.TxID()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.txs[txid]; ok {
		return nil
	}

	spent := make(map[model.OutPoint]*model.Utxo, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if conflict, ok := p.spentBy[in.PreviousOutput]; ok && conflict != txid {
			return errors.NewDoubleSpendInTxError("outpoint %s already spent by pooled transaction %s", in.PreviousOutput, conflict)
		}
		u, err := p.resolve(in.PreviousOutput)
		if err != nil {
			return err
		}
		spent[in.PreviousOutput] = u
	}

	fee, err := p.tv.ValidateForMempool(tx, spent, p.tipHeight)
	if err != nil {
		return err
	}

	e := &entry{tx: tx, fee: fee, size: tx.SerializeSize()}
	p.txs[txid] = e
	for _, in := range tx.Inputs {
		p.spentBy[in.PreviousOutput] = txid
	}
	return nil
}

// Remove drops a transaction from the pool without treating it as confirmed
// (its spends are released, not carried forward as conflicts).
func (p *Pool) Remove(txid model.Hash256) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txid)
}

func (p *Pool) removeLocked(txid model.Hash256) {
	e, ok := p.txs[txid]
	if !ok {
		return
	}
	delete(p.txs, txid)
	for _, in := range e.tx.Inputs {
		if p.spentBy[in.PreviousOutput] == txid {
			delete(p.spentBy, in.PreviousOutput)
		}
	}
}

// TakeForBlock selects transactions greedily by descending fee rate within
// sizeBudget, skipping any transaction that no longer fits in what remains
// of the budget. It does not remove the selected transactions
// from the pool; the chain manager calls RemoveConfirmed once the block they
// were assembled into actually commits.
func (p *Pool) TakeForBlock(sizeBudget int) []*model.Transaction {
	selected, _ := p.TakeForBlockWithFees(sizeBudget)
	return selected
}

// TakeForBlockWithFees is TakeForBlock plus the summed fee of the selected
// transactions, sparing the block assembler from re-resolving each input
// just to compute the coinbase payout.
func (p *Pool) TakeForBlockWithFees(sizeBudget int) ([]*model.Transaction, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].feeRate() > candidates[j].feeRate()
	})

	var selected []*model.Transaction
	var fees uint64
	remaining := sizeBudget
	for _, e := range candidates {
		if e.size > remaining {
			continue
		}
		selected = append(selected, e.tx)
		fees += e.fee
		remaining -= e.size
	}
	return selected, fees
}

// RemoveConfirmed satisfies chain.MempoolPort: it drops every transaction a
// newly-committed block included, plus any pooled transaction that spent an
// outpoint the block also spent (a double-spend the block resolved in its
// own favor).
func (p *Pool) RemoveConfirmed(txs []*model.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirmedSpends := make(map[model.OutPoint]struct{})
	for _, tx := range txs {
		p.removeLocked(tx.TxID())
		for _, in := range tx.Inputs {
			confirmedSpends[in.PreviousOutput] = struct{}{}
		}
	}

	for op := range confirmedSpends {
		if conflictHash, ok := p.spentBy[op]; ok {
			p.logger.Debugf("mempool: dropping %s, conflicts with a spend confirmed on-chain", conflictHash)
			p.removeLocked(conflictHash)
		}
	}
}

// Readmit satisfies chain.MempoolPort: it re-offers transactions displaced
// by a reorganization, re-validating each against current pool/UTXO state
// and silently dropping any that no longer apply (e.g. a conflicting spend
// confirmed on the new active branch).
func (p *Pool) Readmit(txs []*model.Transaction) {
	for _, tx := range txs {
		if err := p.Add(tx); err != nil {
			p.logger.Debugf("mempool: displaced transaction %s not re-admitted: %v", tx.TxID(), err)
		}
	}
}

// Len returns the number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}
