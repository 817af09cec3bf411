package model

import "fmt"

// Block is a header plus its ordered transaction list. The first
// transaction is always the coinbase.
type Block struct {
	Header       *BlockHeader
	Transactions []*Transaction
}

// Hash returns the block's identifying hash: its header's hash.
func (b *Block) Hash() Hash256 {
	return b.Header.Hash()
}

// Coinbase returns the block's coinbase transaction, or nil if the block has
// none (a structurally invalid block, caught by the validator).
func (b *Block) Coinbase() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// TxIDs returns the txid of every transaction in order.
func (b *Block) TxIDs() []Hash256 {
	ids := make([]Hash256, len(b.Transactions))
	for i, tx := range b.Transactions {
		ids[i] = tx.TxID()
	}
	return ids
}

// ComputeMerkleRoot recomputes the Merkle root over the block's transactions
// in their current order.
func (b *Block) ComputeMerkleRoot() Hash256 {
	return MerkleRoot(b.TxIDs())
}

// SerializeSize returns the total canonical byte size of the header plus all
// transactions, used against the MAX_BLOCK_SIZE limit.
func (b *Block) SerializeSize() int {
	size := HeaderSize
	for _, tx := range b.Transactions {
		size += tx.SerializeSize()
	}
	return size
}

// Bytes returns the canonical encoding: header || varint(tx count) || txs.
func (b *Block) Bytes() []byte {
	buf := append([]byte(nil), b.Header.Bytes()...)
	buf = WriteVarint(buf, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		buf = append(buf, tx.Bytes()...)
	}
	return buf
}

// BlockFromBytes decodes a block from its canonical encoding.
func BlockFromBytes(buf []byte) (*Block, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("block: buffer too short for header: got %d bytes", len(buf))
	}

	header, err := NewBlockHeaderFromBytes(buf[:HeaderSize])
	if err != nil {
		return nil, fmt.Errorf("decoding block header: %w", err)
	}
	buf = buf[HeaderSize:]

	txCount, n, err := ReadVarint(buf)
	if err != nil {
		return nil, fmt.Errorf("decoding tx count: %w", err)
	}
	buf = buf[n:]

	block := &Block{Header: header, Transactions: make([]*Transaction, 0, txCount)}
	for i := uint64(0); i < txCount; i++ {
		tx, err := TransactionFromBytes(buf)
		if err != nil {
			return nil, fmt.Errorf("decoding transaction %d: %w", i, err)
		}
		block.Transactions = append(block.Transactions, tx)
		buf = buf[tx.SerializeSize():]
	}

	return block, nil
}
