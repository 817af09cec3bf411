// Package sql implements the UTXO store on top of database/sql, backed by
// either an embedded sqlite file or a postgres server chosen by URL scheme,
// following the same driver-dispatch shape the rest of the node's stores use.
package sql

import (
	"context"
	gosql "database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"sync"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	_ "modernc.org/sqlite"

	"github.com/coreledger/nodecore/errors"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/stores/utxo"
	"github.com/coreledger/nodecore/ulogger"
)

var (
	prometheusUtxoGet = promauto.NewCounter(prometheus.CounterOpts{
		Name: "utxostore_get",
		Help: "Number of Get calls made to the utxo store",
	})
	prometheusUtxoApplyBlock = promauto.NewCounter(prometheus.CounterOpts{
		Name: "utxostore_apply_block",
		Help: "Number of ApplyBlockBatch calls made to the utxo store",
	})
	prometheusUtxoRevertBlock = promauto.NewCounter(prometheus.CounterOpts{
		Name: "utxostore_revert_block",
		Help: "Number of RevertBlock calls made to the utxo store",
	})
	prometheusUtxoBalance = promauto.NewCounter(prometheus.CounterOpts{
		Name: "utxostore_balance",
		Help: "Number of Balance calls made to the utxo store",
	})
)

const tipKey = "tip"

// undoRecord is the internal, storage-only representation of a block's
// reversible effect on the UTXO set. Its layout is a store implementation
// detail, not part of any consensus-visible wire format.
type undoRecord struct {
	Spent      []storedUtxo `json:"spent"`
	Created    []model.OutPoint `json:"created"`
	PrevTip    storedTip    `json:"prev_tip"`
}

type storedTip struct {
	BestHash       string `json:"best_hash"`
	Height         uint32 `json:"height"`
	CumulativeWork string `json:"cumulative_work"`
	TotalSupply    uint64 `json:"total_supply"`
}

type storedUtxo struct {
	TxID       string `json:"txid"`
	Vout       uint32 `json:"vout"`
	Value      uint64 `json:"value"`
	Script     []byte `json:"script"`
	Address    string `json:"address"`
	Height     uint32 `json:"height"`
	IsCoinbase bool   `json:"is_coinbase"`
}

func toStoredUtxo(u *model.Utxo) storedUtxo {
	return storedUtxo{
		TxID:       u.OutPoint.TxID.String(),
		Vout:       u.OutPoint.Vout,
		Value:      u.Output.Value,
		Script:     u.Output.ScriptPubKey,
		Address:    u.Output.Address,
		Height:     u.Height,
		IsCoinbase: u.IsCoinbase,
	}
}

func (s storedUtxo) toUtxo() (*model.Utxo, error) {
	txid, err := model.NewHashFromString(s.TxID)
	if err != nil {
		return nil, err
	}
	return &model.Utxo{
		OutPoint: model.OutPoint{TxID: txid, Vout: s.Vout},
		Output: &model.TxOutput{
			Value:        s.Value,
			ScriptPubKey: s.Script,
			Address:      s.Address,
		},
		Height:     s.Height,
		IsCoinbase: s.IsCoinbase,
	}, nil
}

// Store implements utxo.Store over a database/sql connection.
type Store struct {
	logger ulogger.Logger
	db     *gosql.DB
	engine string

	// writeMu serialises block application/reversion; reads run unlocked.
	writeMu sync.Mutex
}

// New opens (creating if necessary) a UTXO store at storeURL. The scheme
// selects the backend: "sqlite" for an embedded file (or ":memory:" for an
// in-process instance) and "postgres" for a server connection.
func New(logger ulogger.Logger, storeURL *url.URL) (*Store, error) {
	var (
		db  *gosql.DB
		err error
	)

	switch storeURL.Scheme {
	case "sqlitememory":
		db, err = gosql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, errors.NewStorageError("opening in-memory sqlite utxo store", err)
		}
		db.SetMaxOpenConns(1)
		if err := createSqliteSchema(db); err != nil {
			return nil, errors.NewStorageError("creating sqlite utxo schema", err)
		}
		return newStore(logger, db, "sqlite")

	case "sqlite", "":
		path := storeURL.Path
		if path == "" {
			path = storeURL.Opaque
		}
		db, err = gosql.Open("sqlite", path)
		if err != nil {
			return nil, errors.NewStorageError("opening sqlite utxo store", err)
		}
		db.SetMaxOpenConns(1)
		if err := createSqliteSchema(db); err != nil {
			return nil, errors.NewStorageError("creating sqlite utxo schema", err)
		}
		return newStore(logger, db, "sqlite")

	case "postgres":
		db, err = gosql.Open("postgres", storeURL.String())
		if err != nil {
			return nil, errors.NewStorageError("opening postgres utxo store", err)
		}
		if err := createPostgresSchema(db); err != nil {
			return nil, errors.NewStorageError("creating postgres utxo schema", err)
		}
		return newStore(logger, db, "postgres")

	default:
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("unsupported utxo store scheme %q", storeURL.Scheme))
	}
}

func newStore(logger ulogger.Logger, db *gosql.DB, engine string) (*Store, error) {
	s := &Store{
		logger: logger,
		db:     db,
		engine: engine,
	}

	if _, err := s.db.Exec(placeholderQuery(engine,
		`INSERT INTO meta (key, value) VALUES (?, ?)`), tipKey, mustMarshalTip(&model.ChainTip{
		BestHash:       model.NullHash,
		Height:         0,
		CumulativeWork: big.NewInt(0).Bytes(),
		TotalSupply:    0,
	})); err != nil {
		// tip row already exists; that is the expected steady-state case.
		s.logger.Debugf("utxo store tip already initialised: %v", err)
	}

	return s, nil
}

func mustMarshalTip(tip *model.ChainTip) []byte {
	b, err := json.Marshal(storedTip{
		BestHash:       tip.BestHash.String(),
		Height:         tip.Height,
		CumulativeWork: fmt.Sprintf("%x", tip.CumulativeWork),
		TotalSupply:    tip.TotalSupply,
	})
	if err != nil {
		panic(err)
	}
	return b
}

// placeholderQuery rewrites `?` placeholders to `$1, $2, ...` for postgres;
// sqlite accepts `?` natively.
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

func (s *Store) q(query string) string {
	return placeholderQuery(s.engine, query)
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the unspent output at outpoint, or nil if absent.
func (s *Store) Get(ctx context.Context, outpoint model.OutPoint) (*model.Utxo, error) {
	prometheusUtxoGet.Inc()

	row := s.db.QueryRowContext(ctx, s.q(
		`SELECT value, script_pubkey, address, height, is_coinbase FROM utxo WHERE txid = ? AND vout = ?`),
		outpoint.TxID.String(), outpoint.Vout)

	var (
		value      uint64
		script     []byte
		address    string
		height     uint32
		isCoinbase bool
	)
	if err := row.Scan(&value, &script, &address, &height, &isCoinbase); err != nil {
		if err == gosql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.NewStorageError("reading utxo", err)
	}

	return &model.Utxo{
		OutPoint:   outpoint,
		Output:     &model.TxOutput{Value: value, ScriptPubKey: script, Address: address},
		Height:     height,
		IsCoinbase: isCoinbase,
	}, nil
}

// Tip returns the currently recorded chain tip.
func (s *Store) Tip(ctx context.Context) (*model.ChainTip, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM meta WHERE key = ?`), tipKey)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == gosql.ErrNoRows {
			return &model.ChainTip{BestHash: model.NullHash}, nil
		}
		return nil, errors.NewStorageError("reading tip", err)
	}

	var st storedTip
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, errors.NewCorruptionError("decoding tip record", err)
	}

	hash, err := model.NewHashFromString(st.BestHash)
	if err != nil {
		return nil, errors.NewCorruptionError("decoding tip hash", err)
	}

	work := new(big.Int)
	if st.CumulativeWork != "" {
		if _, ok := work.SetString(st.CumulativeWork, 16); !ok {
			return nil, errors.NewCorruptionError("decoding tip cumulative work", nil)
		}
	}

	return &model.ChainTip{
		BestHash:       hash,
		Height:         st.Height,
		CumulativeWork: work.Bytes(),
		TotalSupply:    st.TotalSupply,
	}, nil
}

func (s *Store) putTip(ctx context.Context, tx *gosql.Tx, tip *model.ChainTip) error {
	_, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		tipKey, mustMarshalTip(tip))
	if err != nil {
		return errors.NewStorageError("writing tip", err)
	}
	return nil
}

// ApplyBlockBatch atomically commits diff against the store: writes the
// block, inserts diff's created outputs (with address index entries),
// deletes its spent outputs, records an undo entry and advances the tip.
func (s *Store) ApplyBlockBatch(ctx context.Context, block *model.Block, diff *model.BlockDiff) error {
	prometheusUtxoApplyBlock.Inc()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prevTip, err := s.Tip(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("beginning apply-block transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	undo := undoRecord{
		PrevTip: storedTip{
			BestHash:       prevTip.BestHash.String(),
			Height:         prevTip.Height,
			CumulativeWork: fmt.Sprintf("%x", prevTip.CumulativeWork),
			TotalSupply:    prevTip.TotalSupply,
		},
	}

	for _, op := range diff.Spends {
		spent, err := s.getForUpdate(ctx, tx, op)
		if err != nil {
			return err
		}
		if spent == nil {
			return errors.NewStorageError(fmt.Sprintf("apply block: spend of unknown outpoint %s", op), nil)
		}
		undo.Spent = append(undo.Spent, toStoredUtxo(spent))

		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM utxo WHERE txid = ? AND vout = ?`),
			op.TxID.String(), op.Vout); err != nil {
			return errors.NewStorageError("deleting spent utxo", err)
		}
		if spent.Output.Address != "" {
			if _, err := tx.ExecContext(ctx, s.q(`
				DELETE FROM utxo_by_address WHERE address = ? AND txid = ? AND vout = ?`),
				spent.Output.Address, op.TxID.String(), op.Vout); err != nil {
				return errors.NewStorageError("deleting address index entry", err)
			}
		}
	}

	for _, created := range diff.Creates {
		if err := s.insertUtxo(ctx, tx, created); err != nil {
			return err
		}
		undo.Created = append(undo.Created, created.OutPoint)
	}

	blockBytes := block.Bytes()
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO blocks (height, hash, data) VALUES (?, ?, ?)
		ON CONFLICT (height) DO UPDATE SET hash = excluded.hash, data = excluded.data`),
		prevTip.Height+1, block.Hash().String(), blockBytes); err != nil {
		return errors.NewStorageError("writing block", err)
	}

	undoBytes, err := json.Marshal(undo)
	if err != nil {
		return errors.NewStorageError("encoding undo record", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO undo (block_hash, data) VALUES (?, ?)`),
		block.Hash().String(), undoBytes); err != nil {
		return errors.NewStorageError("writing undo record", err)
	}

	newWork := addWork(prevTip.CumulativeWork, block.Header.Bits)
	newTip := &model.ChainTip{
		BestHash:       block.Hash(),
		Height:         prevTip.Height + 1,
		CumulativeWork: newWork,
		// coinbaseValue is block_reward + fees_claimed; fees are recycled
		// from existing outputs, not newly minted, so only the reward
		// portion increases total supply.
		TotalSupply: prevTip.TotalSupply + coinbaseValue(block) - diff.Fees,
	}
	if err := s.putTip(ctx, tx, newTip); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("committing apply-block transaction", err)
	}
	return nil
}

func coinbaseValue(block *model.Block) uint64 {
	cb := block.Coinbase()
	if cb == nil {
		return 0
	}
	var total uint64
	for _, out := range cb.Outputs {
		total += out.Value
	}
	return total
}

func addWork(prevBytes []byte, bits uint32) []byte {
	prev := new(big.Int).SetBytes(prevBytes)
	prev.Add(prev, model.WorkForBits(bits))
	return prev.Bytes()
}

func (s *Store) insertUtxo(ctx context.Context, tx *gosql.Tx, u *model.Utxo) error {
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO utxo (txid, vout, value, script_pubkey, address, height, is_coinbase)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.OutPoint.TxID.String(), u.OutPoint.Vout, u.Output.Value, u.Output.ScriptPubKey,
		u.Output.Address, u.Height, u.IsCoinbase); err != nil {
		return errors.NewStorageError("inserting utxo", err)
	}

	if u.Output.Address == "" {
		return nil
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO utxo_by_address (address, txid, vout) VALUES (?, ?, ?)`),
		u.Output.Address, u.OutPoint.TxID.String(), u.OutPoint.Vout); err != nil {
		return errors.NewStorageError("inserting address index entry", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO addresses_ever (address) VALUES (?)
		ON CONFLICT (address) DO NOTHING`), u.Output.Address); err != nil {
		return errors.NewStorageError("recording address", err)
	}

	return nil
}

func (s *Store) getForUpdate(ctx context.Context, tx *gosql.Tx, outpoint model.OutPoint) (*model.Utxo, error) {
	row := tx.QueryRowContext(ctx, s.q(
		`SELECT value, script_pubkey, address, height, is_coinbase FROM utxo WHERE txid = ? AND vout = ?`),
		outpoint.TxID.String(), outpoint.Vout)

	var (
		value      uint64
		script     []byte
		address    string
		height     uint32
		isCoinbase bool
	)
	if err := row.Scan(&value, &script, &address, &height, &isCoinbase); err != nil {
		if err == gosql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.NewStorageError("reading utxo for update", err)
	}

	return &model.Utxo{
		OutPoint:   outpoint,
		Output:     &model.TxOutput{Value: value, ScriptPubKey: script, Address: address},
		Height:     height,
		IsCoinbase: isCoinbase,
	}, nil
}

// RevertBlock atomically undoes the block identified by blockHash, using its
// undo record to restore spent outputs and remove created ones, and returns
// the removed block so its transactions can be re-offered to the mempool.
func (s *Store) RevertBlock(ctx context.Context, blockHash model.Hash256) (*model.Block, error) {
	prometheusUtxoRevertBlock.Inc()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageError("beginning revert-block transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		blockBytes []byte
		undoBytes  []byte
	)
	row := tx.QueryRowContext(ctx, s.q(`SELECT data FROM blocks WHERE hash = ?`), blockHash.String())
	if err := row.Scan(&blockBytes); err != nil {
		if err == gosql.ErrNoRows {
			return nil, errors.NewNotFoundError(fmt.Sprintf("no block with hash %s", blockHash))
		}
		return nil, errors.NewStorageError("reading block for revert", err)
	}

	row = tx.QueryRowContext(ctx, s.q(`SELECT data FROM undo WHERE block_hash = ?`), blockHash.String())
	if err := row.Scan(&undoBytes); err != nil {
		if err == gosql.ErrNoRows {
			return nil, errors.NewNotFoundError(fmt.Sprintf("no undo record for block %s", blockHash))
		}
		return nil, errors.NewStorageError("reading undo record", err)
	}

	var undo undoRecord
	if err := json.Unmarshal(undoBytes, &undo); err != nil {
		return nil, errors.NewCorruptionError("decoding undo record", err)
	}

	createdAddr := make(map[model.OutPoint]string, len(undo.Created))
	for _, op := range undo.Created {
		u, err := s.getForUpdate(ctx, tx, op)
		if err != nil {
			return nil, err
		}
		if u == nil {
			continue
		}
		createdAddr[op] = u.Output.Address
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM utxo WHERE txid = ? AND vout = ?`),
			op.TxID.String(), op.Vout); err != nil {
			return nil, errors.NewStorageError("deleting created utxo on revert", err)
		}
		if u.Output.Address != "" {
			if _, err := tx.ExecContext(ctx, s.q(`
				DELETE FROM utxo_by_address WHERE address = ? AND txid = ? AND vout = ?`),
				u.Output.Address, op.TxID.String(), op.Vout); err != nil {
				return nil, errors.NewStorageError("deleting address index entry on revert", err)
			}
		}
	}

	for _, sp := range undo.Spent {
		restored, err := sp.toUtxo()
		if err != nil {
			return nil, errors.NewCorruptionError("decoding spent utxo in undo record", err)
		}
		if err := s.insertUtxo(ctx, tx, restored); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM blocks WHERE hash = ?`), blockHash.String()); err != nil {
		return nil, errors.NewStorageError("deleting block on revert", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM undo WHERE block_hash = ?`), blockHash.String()); err != nil {
		return nil, errors.NewStorageError("deleting undo record", err)
	}

	prevHash, err := model.NewHashFromString(undo.PrevTip.BestHash)
	if err != nil {
		return nil, errors.NewCorruptionError("decoding previous tip hash", err)
	}
	work := new(big.Int)
	if undo.PrevTip.CumulativeWork != "" {
		if _, ok := work.SetString(undo.PrevTip.CumulativeWork, 16); !ok {
			return nil, errors.NewCorruptionError("decoding previous cumulative work", nil)
		}
	}
	if err := s.putTip(ctx, tx, &model.ChainTip{
		BestHash:       prevHash,
		Height:         undo.PrevTip.Height,
		CumulativeWork: work.Bytes(),
		TotalSupply:    undo.PrevTip.TotalSupply,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewStorageError("committing revert-block transaction", err)
	}

	block, err := model.BlockFromBytes(blockBytes)
	if err != nil {
		return nil, errors.NewCorruptionError("decoding reverted block", err)
	}
	// The block encoding omits TxOutput.Address; restore the addresses the
	// removed outputs carried so re-applying the block re-indexes them.
	for _, btx := range block.Transactions {
		txid := btx.TxID()
		for vout, out := range btx.Outputs {
			if addr, ok := createdAddr[model.OutPoint{TxID: txid, Vout: uint32(vout)}]; ok {
				out.Address = addr
			}
		}
	}
	return block, nil
}

// Balance sums the value of every unspent output owned by address.
func (s *Store) Balance(ctx context.Context, address string) (uint64, error) {
	prometheusUtxoBalance.Inc()

	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT COALESCE(SUM(u.value), 0)
		FROM utxo u JOIN utxo_by_address a ON a.txid = u.txid AND a.vout = u.vout
		WHERE a.address = ?`), address)

	var total uint64
	if err := row.Scan(&total); err != nil {
		return 0, errors.NewStorageError("summing balance", err)
	}
	return total, nil
}

// UtxosOf returns every unspent output currently owned by address.
func (s *Store) UtxosOf(ctx context.Context, address string) ([]*model.Utxo, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT u.txid, u.vout, u.value, u.script_pubkey, u.height, u.is_coinbase
		FROM utxo u JOIN utxo_by_address a ON a.txid = u.txid AND a.vout = u.vout
		WHERE a.address = ?`), address)
	if err != nil {
		return nil, errors.NewStorageError("querying utxos of address", err)
	}
	defer rows.Close()

	var out []*model.Utxo
	for rows.Next() {
		var (
			txidStr    string
			vout       uint32
			value      uint64
			script     []byte
			height     uint32
			isCoinbase bool
		)
		if err := rows.Scan(&txidStr, &vout, &value, &script, &height, &isCoinbase); err != nil {
			return nil, errors.NewStorageError("scanning utxo row", err)
		}
		txid, err := model.NewHashFromString(txidStr)
		if err != nil {
			return nil, errors.NewCorruptionError("decoding utxo txid", err)
		}
		out = append(out, &model.Utxo{
			OutPoint:   model.OutPoint{TxID: txid, Vout: vout},
			Output:     &model.TxOutput{Value: value, ScriptPubKey: script, Address: address},
			Height:     height,
			IsCoinbase: isCoinbase,
		})
	}
	return out, rows.Err()
}

// RichList returns up to limit (address, balance) pairs starting at offset,
// sorted descending by balance.
func (s *Store) RichList(ctx context.Context, limit, offset int) ([]utxo.AddressBalance, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT address, SUM(value) AS balance
		FROM utxo
		WHERE address != ''
		GROUP BY address
		ORDER BY balance DESC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, errors.NewStorageError("querying rich list", err)
	}
	defer rows.Close()

	var out []utxo.AddressBalance
	for rows.Next() {
		var ab utxo.AddressBalance
		if err := rows.Scan(&ab.Address, &ab.Balance); err != nil {
			return nil, errors.NewStorageError("scanning rich list row", err)
		}
		out = append(out, ab)
	}
	return out, rows.Err()
}

var _ utxo.Store = (*Store)(nil)
