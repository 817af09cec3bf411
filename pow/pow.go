// Package pow abstracts the proof-of-work hash primitive behind an oracle
// interface. The node treats the actual hash function as an external
// collaborator: it only requires a pure pow_hash(header_bytes) -> 256-bit
// digest, keyed by a seed that rotates every 2048 blocks so a future
// memory-hard function can rekey its dataset without stalling mining at the
// boundary.
package pow

import (
	"crypto/sha256"

	"github.com/coreledger/nodecore/model"
)

// SeedInterval is the block-height interval at which the pow seed rotates.
const SeedInterval = 2048

// SeedHeightFor returns the height of the block whose hash seeds the pow
// dataset in effect at tipHeight.
func SeedHeightFor(tipHeight uint32) uint32 {
	return (tipHeight / SeedInterval) * SeedInterval
}

// Handle is an opaque, seed-keyed proof-of-work context. The zero value is
// not usable; obtain one via Oracle.Init.
type Handle interface {
	Seed() model.Hash256
}

// Oracle is the external collaborator the node consumes: a keyed hash
// function over block headers. Rekeying (Init with a new seed) may be slow,
// so callers keep both a "current" and a "next" handle to avoid a mining
// stall at the seed-rotation boundary.
type Oracle interface {
	Init(seed model.Hash256) (Handle, error)
	Hash(handle Handle, headerBytes []byte) model.Hash256
}

// doubleSHA256Handle is the default Oracle's Handle: the pow_hash function
// it produces ignores the seed entirely (double-SHA256 has no dataset to
// rekey), but the seed is retained so callers can identify which epoch a
// handle belongs to.
type doubleSHA256Handle struct {
	seed model.Hash256
}

func (h *doubleSHA256Handle) Seed() model.Hash256 { return h.seed }

// DoubleSHA256Oracle is the default Oracle implementation, standing in for
// the ASIC-resistant memory-hard function a production deployment would
// plug in. It satisfies the same interface so the rest of the node never
// depends on which hash primitive is active.
type DoubleSHA256Oracle struct{}

func NewDoubleSHA256Oracle() *DoubleSHA256Oracle {
	return &DoubleSHA256Oracle{}
}

func (o *DoubleSHA256Oracle) Init(seed model.Hash256) (Handle, error) {
	return &doubleSHA256Handle{seed: seed}, nil
}

func (o *DoubleSHA256Oracle) Hash(_ Handle, headerBytes []byte) model.Hash256 {
	return model.DoubleSHA256(headerBytes)
}

// H256 computes SHA256(SHA256(x)), the id/Merkle-node hash used throughout
// the wire format.
func H256(x []byte) model.Hash256 {
	return model.DoubleSHA256(x)
}

// sha256Sum is a small helper kept separate from H256 so H160 does not pay
// for a second SHA256 pass it doesn't need.
func sha256Sum(x []byte) []byte {
	sum := sha256.Sum256(x)
	return sum[:]
}
