// Package sql implements the block index on top of database/sql, backed by
// either an embedded sqlite file or a postgres server chosen by URL scheme.
package sql

import (
	"context"
	gosql "database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coreledger/nodecore/errors"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/stores/chain"
	"github.com/coreledger/nodecore/ulogger"
)

var prometheusBlockIndexPut = promauto.NewCounter(prometheus.CounterOpts{
	Name: "blockindex_put_header",
	Help: "Number of PutHeader calls made to the block index",
})

const activeTipKey = "active_tip"

// Store implements chain.Store over a database/sql connection.
type Store struct {
	logger ulogger.Logger
	db     *gosql.DB
	engine string
}

// New opens (creating if necessary) a block index at storeURL.
func New(logger ulogger.Logger, storeURL *url.URL) (*Store, error) {
	var (
		db  *gosql.DB
		err error
	)

	switch storeURL.Scheme {
	case "sqlitememory":
		if db, err = gosql.Open("sqlite", ":memory:"); err != nil {
			return nil, errors.NewStorageError("opening in-memory sqlite block index", err)
		}
		db.SetMaxOpenConns(1)
		if err := createSqliteSchema(db); err != nil {
			return nil, errors.NewStorageError("creating sqlite block index schema", err)
		}
		return &Store{logger: logger, db: db, engine: "sqlite"}, nil

	case "sqlite", "":
		path := storeURL.Path
		if path == "" {
			path = storeURL.Opaque
		}
		if db, err = gosql.Open("sqlite", path); err != nil {
			return nil, errors.NewStorageError("opening sqlite block index", err)
		}
		db.SetMaxOpenConns(1)
		if err := createSqliteSchema(db); err != nil {
			return nil, errors.NewStorageError("creating sqlite block index schema", err)
		}
		return &Store{logger: logger, db: db, engine: "sqlite"}, nil

	case "postgres":
		if db, err = gosql.Open("postgres", storeURL.String()); err != nil {
			return nil, errors.NewStorageError("opening postgres block index", err)
		}
		if err := createPostgresSchema(db); err != nil {
			return nil, errors.NewStorageError("creating postgres block index schema", err)
		}
		return &Store{logger: logger, db: db, engine: "postgres"}, nil

	default:
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("unsupported block index scheme %q", storeURL.Scheme))
	}
}

func placeholderQuery(engine, query string) string {
	if engine != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, []byte(fmt.Sprintf("$%d", n))...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

func (s *Store) q(query string) string { return placeholderQuery(s.engine, query) }

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// PutHeader inserts or updates entry, keyed by its header's hash.
func (s *Store) PutHeader(ctx context.Context, entry *chain.IndexEntry) error {
	prometheusBlockIndexPut.Inc()

	h := entry.Header
	hash := h.Hash().String()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO block_index (hash, prev_hash, version, merkle_root, time, bits, nonce, height, cumulative_work, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hash) DO UPDATE SET
			height = excluded.height,
			cumulative_work = excluded.cumulative_work,
			status = excluded.status`),
		hash, h.HashPrevBlock.String(), h.Version, h.HashMerkleRoot.String(), h.Time, h.Bits, h.Nonce,
		entry.Height, entry.CumulativeWork, int(entry.Status))
	if err != nil {
		return errors.NewStorageError("writing block index entry", err)
	}
	return nil
}

func (s *Store) scanEntry(row *gosql.Row) (*chain.IndexEntry, error) {
	var (
		prevHashStr, merkleRootStr string
		version, bits              uint32
		t, nonce                   uint64
		height                     uint32
		work                       []byte
		status                     int
	)
	if err := row.Scan(&prevHashStr, &version, &merkleRootStr, &t, &bits, &nonce, &height, &work, &status); err != nil {
		if err == gosql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.NewStorageError("reading block index entry", err)
	}

	prevHash, err := model.NewHashFromString(prevHashStr)
	if err != nil {
		return nil, errors.NewCorruptionError("decoding prev hash", err)
	}
	merkleRoot, err := model.NewHashFromString(merkleRootStr)
	if err != nil {
		return nil, errors.NewCorruptionError("decoding merkle root", err)
	}

	return &chain.IndexEntry{
		Header: &model.BlockHeader{
			Version:        version,
			HashPrevBlock:  prevHash,
			HashMerkleRoot: merkleRoot,
			Time:           t,
			Bits:           bits,
			Nonce:          nonce,
		},
		Height:         height,
		CumulativeWork: work,
		Status:         chain.Status(status),
	}, nil
}

// GetHeader returns the index entry for hash, or nil if unknown.
func (s *Store) GetHeader(ctx context.Context, hash model.Hash256) (*chain.IndexEntry, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT prev_hash, version, merkle_root, time, bits, nonce, height, cumulative_work, status
		FROM block_index WHERE hash = ?`), hash.String())
	return s.scanEntry(row)
}

// GetByHeight returns the active-chain entry at height, or nil if none.
func (s *Store) GetByHeight(ctx context.Context, height uint32) (*chain.IndexEntry, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT prev_hash, version, merkle_root, time, bits, nonce, height, cumulative_work, status
		FROM block_index WHERE height = ? AND status = ?`), height, int(chain.StatusActive))
	return s.scanEntry(row)
}

// SetStatus updates the status of the entry identified by hash.
func (s *Store) SetStatus(ctx context.Context, hash model.Hash256, status chain.Status) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE block_index SET status = ? WHERE hash = ?`),
		int(status), hash.String())
	if err != nil {
		return errors.NewStorageError("updating block index status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewStorageError("checking rows affected", err)
	}
	if n == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("no block index entry for hash %s", hash))
	}
	return nil
}

// Children returns every indexed header whose parent is hash.
func (s *Store) Children(ctx context.Context, hash model.Hash256) ([]*chain.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT prev_hash, version, merkle_root, time, bits, nonce, height, cumulative_work, status
		FROM block_index WHERE prev_hash = ?`), hash.String())
	if err != nil {
		return nil, errors.NewStorageError("querying block index children", err)
	}
	defer rows.Close()

	var out []*chain.IndexEntry
	for rows.Next() {
		var (
			prevHashStr, merkleRootStr string
			version, bits              uint32
			t, nonce                   uint64
			height                     uint32
			work                       []byte
			status                     int
		)
		if err := rows.Scan(&prevHashStr, &version, &merkleRootStr, &t, &bits, &nonce, &height, &work, &status); err != nil {
			return nil, errors.NewStorageError("scanning block index child row", err)
		}
		prevHash, err := model.NewHashFromString(prevHashStr)
		if err != nil {
			return nil, errors.NewCorruptionError("decoding prev hash", err)
		}
		merkleRoot, err := model.NewHashFromString(merkleRootStr)
		if err != nil {
			return nil, errors.NewCorruptionError("decoding merkle root", err)
		}
		out = append(out, &chain.IndexEntry{
			Header: &model.BlockHeader{
				Version: version, HashPrevBlock: prevHash, HashMerkleRoot: merkleRoot,
				Time: t, Bits: bits, Nonce: nonce,
			},
			Height:         height,
			CumulativeWork: work,
			Status:         chain.Status(status),
		})
	}
	return out, rows.Err()
}

// ActiveTip returns the entry currently marked as the active chain's head.
func (s *Store) ActiveTip(ctx context.Context) (*chain.IndexEntry, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM chain_state WHERE key = ?`), activeTipKey)

	var hashBytes []byte
	if err := row.Scan(&hashBytes); err != nil {
		if err == gosql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.NewStorageError("reading active tip pointer", err)
	}

	hash, err := model.NewHashFromBytes(hashBytes)
	if err != nil {
		return nil, errors.NewCorruptionError("decoding active tip hash", err)
	}
	return s.GetHeader(ctx, hash)
}

// SetActiveTip records hash as the active chain's head.
func (s *Store) SetActiveTip(ctx context.Context, hash model.Hash256) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO chain_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`), activeTipKey, hash.Bytes())
	if err != nil {
		return errors.NewStorageError("writing active tip pointer", err)
	}
	return nil
}

var _ chain.Store = (*Store)(nil)
