package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/model"
)

func testParams() *chaincfg.Params {
	p := chaincfg.MainParams
	return &p
}

func spendableUtxo(value uint64, height uint32, coinbase bool) *model.Utxo {
	return &model.Utxo{
		OutPoint:   model.OutPoint{TxID: model.NullHash, Vout: 0},
		Output:     &model.TxOutput{Value: value, ScriptPubKey: []byte{0x01}},
		Height:     height,
		IsCoinbase: coinbase,
	}
}

func simpleTx(inValue, outValue uint64) *model.Transaction {
	return &model.Transaction{
		Version: 1,
		Inputs: []*model.TxInput{
			{PreviousOutput: model.OutPoint{TxID: model.NullHash, Vout: 0}, Sequence: 0xffffffff},
		},
		Outputs: []*model.TxOutput{
			{Value: outValue, ScriptPubKey: []byte{0x01}},
		},
	}
}

func TestValidateTransactionRejectsEmptyInputs(t *testing.T) {
	tv := NewTxValidator(testParams(), nil)
	tx := &model.Transaction{Outputs: []*model.TxOutput{{Value: 1}}}
	_, err := tv.ValidateTransaction(tx, nil, 0)
	require.Error(t, err)
}

func TestValidateTransactionRejectsMissingInput(t *testing.T) {
	tv := NewTxValidator(testParams(), nil)
	tx := simpleTx(1000, 900)
	_, err := tv.ValidateTransaction(tx, map[model.OutPoint]*model.Utxo{}, 0)
	require.Error(t, err)
}

func TestValidateTransactionRejectsImmatureCoinbase(t *testing.T) {
	tv := NewTxValidator(testParams(), nil)
	tx := simpleTx(1000, 900)
	spent := map[model.OutPoint]*model.Utxo{
		tx.Inputs[0].PreviousOutput: spendableUtxo(1000, 5, true),
	}
	_, err := tv.ValidateTransaction(tx, spent, 10)
	require.Error(t, err)
}

func TestValidateTransactionAcceptsMatureCoinbase(t *testing.T) {
	p := testParams()
	p.MinRelayFeeRate = 0
	tv := NewTxValidator(p, nil)
	tx := simpleTx(1000, 900)
	spent := map[model.OutPoint]*model.Utxo{
		tx.Inputs[0].PreviousOutput: spendableUtxo(1000, 5, true),
	}
	fee, err := tv.ValidateTransaction(tx, spent, 200)
	require.NoError(t, err)
	require.Equal(t, uint64(100), fee)
}

func TestValidateTransactionRejectsOverspend(t *testing.T) {
	p := testParams()
	p.MinRelayFeeRate = 0
	tv := NewTxValidator(p, nil)
	tx := simpleTx(1000, 2000)
	spent := map[model.OutPoint]*model.Utxo{
		tx.Inputs[0].PreviousOutput: spendableUtxo(1000, 5, false),
	}
	_, err := tv.ValidateTransaction(tx, spent, 200)
	require.Error(t, err)
}

func TestValidateForMempoolRejectsFeeTooLow(t *testing.T) {
	p := testParams()
	p.MinRelayFeeRate = 1000
	tv := NewTxValidator(p, nil)
	tx := simpleTx(1000, 999)
	spent := map[model.OutPoint]*model.Utxo{
		tx.Inputs[0].PreviousOutput: spendableUtxo(1000, 5, false),
	}
	_, err := tv.ValidateForMempool(tx, spent, 200)
	require.Error(t, err)
}

func TestValidateTransactionAcceptsLowFeeBlockTransaction(t *testing.T) {
	p := testParams()
	p.MinRelayFeeRate = 1000
	tv := NewTxValidator(p, nil)
	tx := simpleTx(1000, 999)
	spent := map[model.OutPoint]*model.Utxo{
		tx.Inputs[0].PreviousOutput: spendableUtxo(1000, 5, false),
	}
	fee, err := tv.ValidateTransaction(tx, spent, 200)
	require.NoError(t, err)
	require.Equal(t, uint64(1), fee)
}

func TestValidateTransactionRejectsDuplicateInputs(t *testing.T) {
	tv := NewTxValidator(testParams(), nil)
	op := model.OutPoint{TxID: model.NullHash, Vout: 0}
	tx := &model.Transaction{
		Inputs: []*model.TxInput{
			{PreviousOutput: op, Sequence: 0xffffffff},
			{PreviousOutput: op, Sequence: 0xffffffff},
		},
		Outputs: []*model.TxOutput{{Value: 1}},
	}
	_, err := tv.ValidateTransaction(tx, map[model.OutPoint]*model.Utxo{op: spendableUtxo(1000, 0, false)}, 0)
	require.Error(t, err)
}
