package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/ulogger"
	"github.com/coreledger/nodecore/validator"
)

func testPool(t *testing.T, utxos map[model.OutPoint]*model.Utxo) *Pool {
	t.Helper()
	p := chaincfg.MainParams
	p.MinRelayFeeRate = 0
	tv := validator.NewTxValidator(&p, nil)
	lookup := func(op model.OutPoint) (*model.Utxo, error) { return utxos[op], nil }
	return NewPool(ulogger.NewErrorTestLogger(t), tv, lookup)
}

func spendable(value uint64) *model.Utxo {
	return &model.Utxo{
		OutPoint: model.OutPoint{TxID: model.NullHash, Vout: 0},
		Output:   &model.TxOutput{Value: value, ScriptPubKey: []byte{0x01}},
	}
}

func txSpending(op model.OutPoint, outValue uint64) *model.Transaction {
	return &model.Transaction{
		Version: 1,
		Inputs:  []*model.TxInput{{PreviousOutput: op, Sequence: 0xffffffff}},
		Outputs: []*model.TxOutput{{Value: outValue, ScriptPubKey: []byte{0x02}}},
	}
}

func TestAddAcceptsValidTransaction(t *testing.T) {
	op := model.OutPoint{TxID: model.NullHash, Vout: 0}
	p := testPool(t, map[model.OutPoint]*model.Utxo{op: spendable(1000)})

	tx := txSpending(op, 900)
	require.NoError(t, p.Add(tx))
	require.Equal(t, 1, p.Len())
}

func TestAddRejectsConflictingSpend(t *testing.T) {
	op := model.OutPoint{TxID: model.NullHash, Vout: 0}
	p := testPool(t, map[model.OutPoint]*model.Utxo{op: spendable(1000)})

	first := txSpending(op, 900)
	second := &model.Transaction{
		Version: 1,
		Inputs:  []*model.TxInput{{PreviousOutput: op, Sequence: 0xffffffff}},
		Outputs: []*model.TxOutput{{Value: 500, ScriptPubKey: []byte{0x03}}},
	}
	require.NoError(t, p.Add(first))
	require.Error(t, p.Add(second))
	require.Equal(t, 1, p.Len())
}

func TestAddRejectsMissingInput(t *testing.T) {
	p := testPool(t, map[model.OutPoint]*model.Utxo{})
	op := model.OutPoint{TxID: model.NullHash, Vout: 0}
	require.Error(t, p.Add(txSpending(op, 900)))
}

func TestTakeForBlockOrdersByFeeRateDescending(t *testing.T) {
	op1 := model.OutPoint{TxID: model.NullHash, Vout: 0}
	var hash2 model.Hash256
	hash2[0] = 0x01
	op2 := model.OutPoint{TxID: hash2, Vout: 0}

	p := testPool(t, map[model.OutPoint]*model.Utxo{
		op1: spendable(1000),
		op2: spendable(1000),
	})

	lowFee := txSpending(op1, 990)  // fee 10
	highFee := txSpending(op2, 500) // fee 500
	require.NoError(t, p.Add(lowFee))
	require.NoError(t, p.Add(highFee))

	selected := p.TakeForBlock(1_000_000)
	require.Len(t, selected, 2)
	require.Equal(t, highFee.TxID(), selected[0].TxID())
	require.Equal(t, lowFee.TxID(), selected[1].TxID())
}

func TestTakeForBlockRespectsSizeBudget(t *testing.T) {
	op := model.OutPoint{TxID: model.NullHash, Vout: 0}
	p := testPool(t, map[model.OutPoint]*model.Utxo{op: spendable(1000)})

	tx := txSpending(op, 900)
	require.NoError(t, p.Add(tx))

	selected := p.TakeForBlock(1)
	require.Empty(t, selected)
}

func TestRemoveConfirmedDropsIncludedAndConflicting(t *testing.T) {
	op := model.OutPoint{TxID: model.NullHash, Vout: 0}
	p := testPool(t, map[model.OutPoint]*model.Utxo{op: spendable(1000)})

	pooled := txSpending(op, 900)
	require.NoError(t, p.Add(pooled))
	require.Equal(t, 1, p.Len())

	confirmedElsewhere := txSpending(op, 800)
	p.RemoveConfirmed([]*model.Transaction{confirmedElsewhere})

	require.Equal(t, 0, p.Len())
}

func TestReadmitRestoresDisplacedTransactions(t *testing.T) {
	op := model.OutPoint{TxID: model.NullHash, Vout: 0}
	p := testPool(t, map[model.OutPoint]*model.Utxo{op: spendable(1000)})

	tx := txSpending(op, 900)
	p.Readmit([]*model.Transaction{tx})
	require.Equal(t, 1, p.Len())
}
