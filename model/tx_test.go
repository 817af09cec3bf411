package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTx() *Transaction {
	return &Transaction{
		Version: 1,
		Inputs: []*TxInput{
			{
				PreviousOutput: OutPoint{TxID: Hash256{1, 2, 3}, Vout: 0},
				ScriptSig:      []byte{0xde, 0xad, 0xbe, 0xef},
				Sequence:       0xffffffff,
			},
		},
		Outputs: []*TxOutput{
			{Value: 1000, ScriptPubKey: []byte{0x76, 0xa9}},
			{Value: 2000, ScriptPubKey: []byte{0x51}},
		},
		LockTime: 0,
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := sampleTx()
	encoded := tx.Bytes()

	decoded, err := TransactionFromBytes(encoded)
	require.NoError(t, err)
	require.Equal(t, tx.Version, decoded.Version)
	require.Len(t, decoded.Inputs, 1)
	require.Len(t, decoded.Outputs, 2)
	require.Equal(t, tx.TxID(), decoded.TxID())
}

func TestTxIDDeterministic(t *testing.T) {
	tx1 := sampleTx()
	tx2 := sampleTx()
	require.Equal(t, tx1.TxID(), tx2.TxID())

	tx2.Outputs[0].Value = 999
	require.NotEqual(t, tx1.TxID(), tx2.TxID())
}

func TestIsCoinbase(t *testing.T) {
	cb := &Transaction{
		Inputs:  []*TxInput{{PreviousOutput: NullOutPoint, ScriptSig: []byte("height=5")}},
		Outputs: []*TxOutput{{Value: 100}},
	}
	require.True(t, cb.IsCoinbase())

	tx := sampleTx()
	require.False(t, tx.IsCoinbase())
}

func TestAddressNotInPreimage(t *testing.T) {
	out := &TxOutput{Value: 500, ScriptPubKey: []byte{0x01}, Address: "addr1abc"}
	withAddr := out.Bytes()

	out2 := &TxOutput{Value: 500, ScriptPubKey: []byte{0x01}, Address: "differentaddr"}
	withOtherAddr := out2.Bytes()

	require.Equal(t, withAddr, withOtherAddr)
}
