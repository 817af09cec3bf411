package sql

import "database/sql"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS utxo (
	txid          BLOB    NOT NULL,
	vout          INTEGER NOT NULL,
	value         INTEGER NOT NULL,
	script_pubkey BLOB    NOT NULL,
	address       TEXT    NOT NULL,
	height        INTEGER NOT NULL,
	is_coinbase   INTEGER NOT NULL,
	PRIMARY KEY (txid, vout)
);

CREATE INDEX IF NOT EXISTS idx_utxo_address ON utxo(address);

CREATE TABLE IF NOT EXISTS utxo_by_address (
	address TEXT    NOT NULL,
	txid    BLOB    NOT NULL,
	vout    INTEGER NOT NULL,
	PRIMARY KEY (address, txid, vout)
);

CREATE TABLE IF NOT EXISTS addresses_ever (
	address TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS blocks (
	height INTEGER PRIMARY KEY,
	hash   BLOB    NOT NULL UNIQUE,
	data   BLOB    NOT NULL
);

CREATE TABLE IF NOT EXISTS undo (
	block_hash BLOB PRIMARY KEY,
	data       BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS utxo (
	txid          BYTEA   NOT NULL,
	vout          INTEGER NOT NULL,
	value         BIGINT  NOT NULL,
	script_pubkey BYTEA   NOT NULL,
	address       TEXT    NOT NULL,
	height        INTEGER NOT NULL,
	is_coinbase   BOOLEAN NOT NULL,
	PRIMARY KEY (txid, vout)
);

CREATE INDEX IF NOT EXISTS idx_utxo_address ON utxo(address);

CREATE TABLE IF NOT EXISTS utxo_by_address (
	address TEXT    NOT NULL,
	txid    BYTEA   NOT NULL,
	vout    INTEGER NOT NULL,
	PRIMARY KEY (address, txid, vout)
);

CREATE TABLE IF NOT EXISTS addresses_ever (
	address TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS blocks (
	height INTEGER PRIMARY KEY,
	hash   BYTEA   NOT NULL UNIQUE,
	data   BYTEA   NOT NULL
);

CREATE TABLE IF NOT EXISTS undo (
	block_hash BYTEA PRIMARY KEY,
	data       BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value BYTEA NOT NULL
);
`

func createSqliteSchema(db *sql.DB) error {
	_, err := db.Exec(sqliteSchema)
	return err
}

func createPostgresSchema(db *sql.DB) error {
	_, err := db.Exec(postgresSchema)
	return err
}
