// Package chain persists the block index: every header the node has ever
// seen, its height, cumulative work and validity status, independent of
// whether it currently sits on the active chain.
package chain

import (
	"context"

	"github.com/coreledger/nodecore/model"
)

// Status classifies a block's place in the index.
type Status int

const (
	// StatusUnknown is never persisted; it is returned when a hash has no entry.
	StatusUnknown Status = iota
	// StatusOrphan marks a header whose parent has not yet been seen.
	StatusOrphan
	// StatusValid marks a header that passed validation but is not on the active chain.
	StatusValid
	// StatusActive marks a header on the current best chain.
	StatusActive
	// StatusRejected marks a header that failed validation and will never be reconsidered.
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusOrphan:
		return "orphan"
	case StatusValid:
		return "valid"
	case StatusActive:
		return "active"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IndexEntry is one block's record in the index.
type IndexEntry struct {
	Header         *model.BlockHeader
	Height         uint32
	CumulativeWork []byte // big-endian encoding of a math/big.Int
	Status         Status
}

// Hash returns the entry's block hash.
func (e *IndexEntry) Hash() model.Hash256 {
	return e.Header.Hash()
}

// Store is the block index's public contract.
type Store interface {
	// PutHeader inserts or updates entry, keyed by its header's hash.
	PutHeader(ctx context.Context, entry *IndexEntry) error

	// GetHeader returns the index entry for hash, or nil if unknown.
	GetHeader(ctx context.Context, hash model.Hash256) (*IndexEntry, error)

	// GetByHeight returns the active-chain entry at height, or nil if none.
	GetByHeight(ctx context.Context, height uint32) (*IndexEntry, error)

	// SetStatus updates the status of the entry identified by hash.
	SetStatus(ctx context.Context, hash model.Hash256, status Status) error

	// Children returns every indexed header whose parent is hash.
	Children(ctx context.Context, hash model.Hash256) ([]*IndexEntry, error)

	// ActiveTip returns the entry currently marked as the active chain's head.
	ActiveTip(ctx context.Context) (*IndexEntry, error)

	// SetActiveTip records hash as the active chain's head. The caller is
	// responsible for having already marked the relevant entries' statuses.
	SetActiveTip(ctx context.Context, hash model.Hash256) error

	// Close releases the store's underlying resources.
	Close() error
}
