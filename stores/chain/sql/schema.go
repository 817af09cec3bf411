package sql

import "database/sql"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS block_index (
	hash            BLOB    PRIMARY KEY,
	prev_hash       BLOB    NOT NULL,
	version         INTEGER NOT NULL,
	merkle_root     BLOB    NOT NULL,
	time            INTEGER NOT NULL,
	bits            INTEGER NOT NULL,
	nonce           INTEGER NOT NULL,
	height          INTEGER NOT NULL,
	cumulative_work BLOB    NOT NULL,
	status          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_block_index_prev ON block_index(prev_hash);
CREATE INDEX IF NOT EXISTS idx_block_index_height_status ON block_index(height, status);

CREATE TABLE IF NOT EXISTS chain_state (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS block_index (
	hash            BYTEA   PRIMARY KEY,
	prev_hash       BYTEA   NOT NULL,
	version         INTEGER NOT NULL,
	merkle_root     BYTEA   NOT NULL,
	time            BIGINT  NOT NULL,
	bits            BIGINT  NOT NULL,
	nonce           BIGINT  NOT NULL,
	height          INTEGER NOT NULL,
	cumulative_work BYTEA   NOT NULL,
	status          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_block_index_prev ON block_index(prev_hash);
CREATE INDEX IF NOT EXISTS idx_block_index_height_status ON block_index(height, status);

CREATE TABLE IF NOT EXISTS chain_state (
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
