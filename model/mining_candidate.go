package model

// MiningCandidate is the work package handed to the nonce-search loop: a
// header with everything filled in except Nonce (and, on refresh, Time),
// plus the transaction set it commits to.
type MiningCandidate struct {
	Header       *BlockHeader
	Height       uint32
	Transactions []*Transaction
	CoinbaseValue uint64
}

// Block assembles the candidate and its current header state into a Block,
// intended to be called once the nonce search succeeds.
func (c *MiningCandidate) Block() *Block {
	return &Block{
		Header:       c.Header,
		Transactions: c.Transactions,
	}
}

// RefreshTime advances the candidate header's timestamp to now (never moving
// it backwards); the nonce search calls it periodically during a long search.
func (c *MiningCandidate) RefreshTime(now uint64) {
	if now > c.Header.Time {
		c.Header.Time = now
	}
}
