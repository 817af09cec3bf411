package model

// Utxo is a stored unspent transaction output: the outpoint that created it,
// the output payload itself, and the metadata needed to enforce coinbase
// maturity.
type Utxo struct {
	OutPoint   OutPoint
	Output     *TxOutput
	Height     uint32
	IsCoinbase bool
}

// MatureAt returns the first height at which a coinbase Utxo may be spent.
func (u *Utxo) MatureAt(coinbaseMaturity uint32) uint32 {
	return u.Height + coinbaseMaturity
}

// IsMature reports whether u may be spent by a transaction being validated
// at tipHeight+1 (i.e. included in the next block after tipHeight).
func (u *Utxo) IsMature(tipHeight, coinbaseMaturity uint32) bool {
	if !u.IsCoinbase {
		return true
	}
	return tipHeight >= u.Height+coinbaseMaturity
}

// ChainTip is the single-row pointer to the head of the active chain.
type ChainTip struct {
	BestHash       Hash256
	Height         uint32
	CumulativeWork []byte // big-endian encoding of a math/big.Int
	TotalSupply    uint64
}

// BlockDiff is the effect a validated block would have on the UTXO set,
// ready for atomic application by the chain state manager.
type BlockDiff struct {
	Creates []*Utxo
	Spends  []OutPoint
	Fees    uint64
}
