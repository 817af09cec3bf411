package model

import "fmt"

// OutPoint names one transaction output: the transaction that created it and
// its index within that transaction's output list.
type OutPoint struct {
	TxID Hash256
	Vout uint32
}

// NullOutPoint is the coinbase input's previous_output value: txid all-zero,
// vout 0xFFFFFFFF.
var NullOutPoint = OutPoint{TxID: NullHash, Vout: 0xFFFFFFFF}

// IsNull reports whether o is the coinbase sentinel outpoint.
func (o OutPoint) IsNull() bool {
	return o == NullOutPoint
}

// Bytes returns the 36-byte canonical encoding: txid (32) || vout (4, LE).
func (o OutPoint) Bytes() []byte {
	b := make([]byte, 36)
	copy(b[:32], o.TxID[:])
	putUint32LE(b[32:36], o.Vout)
	return b
}

// Key returns a string form suitable for use as a map key or store key.
func (o OutPoint) Key() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Vout)
}

func (o OutPoint) String() string {
	return o.Key()
}
