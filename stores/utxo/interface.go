// Package utxo defines and implements the persistent UTXO store: the
// outpoint -> output mapping plus the address secondary indices, applied
// and reverted one block at a time under transactional, crash-safe
// semantics.
package utxo

import (
	"context"

	"github.com/coreledger/nodecore/model"
)

// AddressBalance pairs an address with its current confirmed balance, the
// element type of a rich-list page.
type AddressBalance struct {
	Address string
	Balance uint64
}

// Store is the UTXO store's public contract. Every method that mutates
// state must be atomic: either it fully applies or it has no effect.
type Store interface {
	// Get returns the unspent output at outpoint, or nil if it does not
	// exist or has been spent.
	Get(ctx context.Context, outpoint model.OutPoint) (*model.Utxo, error)

	// ApplyBlockBatch atomically commits a validated block: writes the
	// block, applies diff's creates and spends plus their address
	// secondary entries, appends an undo record, and advances meta::tip.
	ApplyBlockBatch(ctx context.Context, block *model.Block, diff *model.BlockDiff) error

	// RevertBlock atomically undoes the block identified by blockHash:
	// deletes the UTXOs it created, restores the UTXOs it spent, repairs
	// the address indices, rewinds meta::tip, and returns the removed
	// block so its transactions can be re-offered to the mempool.
	RevertBlock(ctx context.Context, blockHash model.Hash256) (*model.Block, error)

	// Balance returns the sum of unspent output values owned by address.
	Balance(ctx context.Context, address string) (uint64, error)

	// UtxosOf returns every unspent output currently owned by address.
	UtxosOf(ctx context.Context, address string) ([]*model.Utxo, error)

	// RichList returns up to limit (address, balance) pairs starting at
	// offset, sorted descending by balance.
	RichList(ctx context.Context, limit, offset int) ([]AddressBalance, error)

	// Tip returns the chain tip as last recorded by the store.
	Tip(ctx context.Context) (*model.ChainTip, error)

	// Close releases the store's underlying resources.
	Close() error
}
