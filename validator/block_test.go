package validator

import (
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/pow"
	"github.com/coreledger/nodecore/sigverify"
)

func mineHeader(t *testing.T, h *model.BlockHeader, oracle pow.Oracle, handle pow.Handle) {
	t.Helper()
	for nonce := uint64(0); nonce < 1_000_000; nonce++ {
		h.Nonce = nonce
		if h.Valid(func(b []byte) model.Hash256 { return oracle.Hash(handle, b) }) {
			return
		}
	}
	t.Fatal("failed to mine a header within the test's nonce budget")
}

func coinbaseTx(t *testing.T, value uint64) *model.Transaction {
	t.Helper()
	return &model.Transaction{
		Version: 1,
		Inputs: []*model.TxInput{
			{PreviousOutput: model.NullOutPoint, ScriptSig: []byte("height 1"), Sequence: 0xffffffff},
		},
		Outputs: []*model.TxOutput{
			{Value: value, ScriptPubKey: []byte{0x01}, Address: "miner"},
		},
	}
}

func newBlockValidator() (*BlockValidator, pow.Oracle, pow.Handle) {
	params := chaincfg.RegtestParams
	oracle := pow.NewDoubleSHA256Oracle()
	handle, _ := oracle.Init(model.NullHash)
	tv := NewTxValidator(&params, nil)
	bv := NewBlockValidator(&params, oracle, tv)
	return bv, oracle, handle
}

func TestValidateBlockAcceptsValidGenesisSuccessor(t *testing.T) {
	bv, oracle, handle := newBlockValidator()

	cb := coinbaseTx(t, 2710000000)
	block := &model.Block{
		Header: &model.BlockHeader{
			Version:        1,
			HashPrevBlock:  model.NullHash,
			HashMerkleRoot: model.NullHash,
			Time:           2000,
			Bits:           uint32(chaincfg.RegtestParams.PowLimitBits),
		},
		Transactions: []*model.Transaction{cb},
	}
	block.Header.HashMerkleRoot = block.ComputeMerkleRoot()
	mineHeader(t, block.Header, oracle, handle)

	bc := BlockContext{
		TipHeight:      0,
		PrevBits:       uint32(chaincfg.RegtestParams.PowLimitBits),
		Intervals:      nil,
		MedianTimePast: 1000,
		Now:            2000,
		PriorSupply:    0,
		Lookup:         func(model.OutPoint) (*model.Utxo, error) { return nil, nil },
		PowHandle:      handle,
	}

	diff, err := bv.ValidateBlock(block, bc)
	require.NoError(t, err)
	require.Len(t, diff.Creates, 1)
	require.Equal(t, uint64(0), diff.Fees)
}

func TestValidateBlockRejectsBadMerkleRoot(t *testing.T) {
	bv, oracle, handle := newBlockValidator()

	cb := coinbaseTx(t, 2710000000)
	block := &model.Block{
		Header: &model.BlockHeader{
			Version:        1,
			HashPrevBlock:  model.NullHash,
			HashMerkleRoot: model.NullHash, // wrong on purpose
			Time:           2000,
			Bits:           uint32(chaincfg.RegtestParams.PowLimitBits),
		},
		Transactions: []*model.Transaction{cb},
	}
	mineHeader(t, block.Header, oracle, handle)

	bc := BlockContext{
		TipHeight: 0, PrevBits: uint32(chaincfg.RegtestParams.PowLimitBits),
		MedianTimePast: 1000, Now: 2000,
		Lookup: func(model.OutPoint) (*model.Utxo, error) { return nil, nil },
		PowHandle: handle,
	}

	_, err := bv.ValidateBlock(block, bc)
	require.Error(t, err)
}

func TestValidateBlockRejectsOversizedCoinbase(t *testing.T) {
	bv, oracle, handle := newBlockValidator()

	cb := coinbaseTx(t, 999999999999)
	block := &model.Block{
		Header: &model.BlockHeader{
			Version:        1,
			HashPrevBlock:  model.NullHash,
			Time:           2000,
			Bits:           uint32(chaincfg.RegtestParams.PowLimitBits),
		},
		Transactions: []*model.Transaction{cb},
	}
	block.Header.HashMerkleRoot = block.ComputeMerkleRoot()
	mineHeader(t, block.Header, oracle, handle)

	bc := BlockContext{
		TipHeight: 0, PrevBits: uint32(chaincfg.RegtestParams.PowLimitBits),
		MedianTimePast: 1000, Now: 2000,
		Lookup: func(model.OutPoint) (*model.Utxo, error) { return nil, nil },
		PowHandle: handle,
	}

	_, err := bv.ValidateBlock(block, bc)
	require.Error(t, err)
}

// TestValidateBlockAcceptsRealSecp256k1Signature runs a P2PKH_Classical
// spend, signed with a real secp256k1 key over SignaturePreimage and verified
// through a Dispatcher-backed TxValidator, all the way through ValidateBlock.
func TestValidateBlockAcceptsRealSecp256k1Signature(t *testing.T) {
	params := chaincfg.RegtestParams
	oracle := pow.NewDoubleSHA256Oracle()
	handle, _ := oracle.Init(model.NullHash)

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	scriptPubKey := append([]byte{byte(sigverify.P2PKHClassical)}, pub...)

	spentOutpoint := model.OutPoint{TxID: model.NullHash, Vout: 0}
	spendable := &model.Utxo{
		OutPoint: spentOutpoint,
		Output:   &model.TxOutput{Value: 1000, ScriptPubKey: scriptPubKey, Address: "spender"},
		Height:   0,
	}

	spend := &model.Transaction{
		Version: 1,
		Inputs: []*model.TxInput{
			{PreviousOutput: spentOutpoint, Sequence: 0xffffffff},
		},
		Outputs: []*model.TxOutput{
			{Value: 900, ScriptPubKey: []byte{0x01}, Address: "recipient"},
		},
	}
	digest := sigverify.Digest(spend.SignaturePreimage())
	sig := ecdsa.Sign(priv, digest[:])
	spend.Inputs[0].ScriptSig = sig.Serialize()

	dispatcher := sigverify.NewDefaultDispatcher()
	tv := NewTxValidator(&params, dispatcher)
	bv := NewBlockValidator(&params, oracle, tv)

	cb := coinbaseTx(t, 2710000000)
	block := &model.Block{
		Header: &model.BlockHeader{
			Version:       1,
			HashPrevBlock: model.NullHash,
			Time:          2000,
			Bits:          uint32(chaincfg.RegtestParams.PowLimitBits),
		},
		Transactions: []*model.Transaction{cb, spend},
	}
	block.Header.HashMerkleRoot = block.ComputeMerkleRoot()
	mineHeader(t, block.Header, oracle, handle)

	lookup := func(op model.OutPoint) (*model.Utxo, error) {
		if op == spentOutpoint {
			return spendable, nil
		}
		return nil, nil
	}
	bc := BlockContext{
		TipHeight: 0, PrevBits: uint32(chaincfg.RegtestParams.PowLimitBits),
		MedianTimePast: 1000, Now: 2000,
		Lookup: lookup, PowHandle: handle,
	}

	diff, err := bv.ValidateBlock(block, bc)
	require.NoError(t, err)
	require.Equal(t, uint64(100), diff.Fees)
}

// TestValidateBlockRejectsTamperedSecp256k1Signature confirms a signature
// computed over a different preimage is rejected rather than silently
// accepted, exercising the BadSignature consensus rule end to end.
func TestValidateBlockRejectsTamperedSecp256k1Signature(t *testing.T) {
	params := chaincfg.RegtestParams
	oracle := pow.NewDoubleSHA256Oracle()
	handle, _ := oracle.Init(model.NullHash)

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	scriptPubKey := append([]byte{byte(sigverify.P2PKHClassical)}, pub...)

	spentOutpoint := model.OutPoint{TxID: model.NullHash, Vout: 0}
	spendable := &model.Utxo{
		OutPoint: spentOutpoint,
		Output:   &model.TxOutput{Value: 1000, ScriptPubKey: scriptPubKey, Address: "spender"},
		Height:   0,
	}

	spend := &model.Transaction{
		Version: 1,
		Inputs: []*model.TxInput{
			{PreviousOutput: spentOutpoint, Sequence: 0xffffffff},
		},
		Outputs: []*model.TxOutput{
			{Value: 900, ScriptPubKey: []byte{0x01}, Address: "recipient"},
		},
	}
	wrongDigest := sigverify.Digest([]byte("not this transaction"))
	sig := ecdsa.Sign(priv, wrongDigest[:])
	spend.Inputs[0].ScriptSig = sig.Serialize()

	dispatcher := sigverify.NewDefaultDispatcher()
	tv := NewTxValidator(&params, dispatcher)
	bv := NewBlockValidator(&params, oracle, tv)

	cb := coinbaseTx(t, 2710000000)
	block := &model.Block{
		Header: &model.BlockHeader{
			Version:       1,
			HashPrevBlock: model.NullHash,
			Time:          2000,
			Bits:          uint32(chaincfg.RegtestParams.PowLimitBits),
		},
		Transactions: []*model.Transaction{cb, spend},
	}
	block.Header.HashMerkleRoot = block.ComputeMerkleRoot()
	mineHeader(t, block.Header, oracle, handle)

	lookup := func(op model.OutPoint) (*model.Utxo, error) {
		if op == spentOutpoint {
			return spendable, nil
		}
		return nil, nil
	}
	bc := BlockContext{
		TipHeight: 0, PrevBits: uint32(chaincfg.RegtestParams.PowLimitBits),
		MedianTimePast: 1000, Now: 2000,
		Lookup: lookup, PowHandle: handle,
	}

	_, err = bv.ValidateBlock(block, bc)
	require.Error(t, err)
}

func TestValidateBlockRejectsFutureTimestamp(t *testing.T) {
	bv, oracle, handle := newBlockValidator()

	cb := coinbaseTx(t, 2710000000)
	block := &model.Block{
		Header: &model.BlockHeader{
			Version:       1,
			HashPrevBlock: model.NullHash,
			Time:          uint64(time.Now().Unix()) + 100000,
			Bits:          uint32(chaincfg.RegtestParams.PowLimitBits),
		},
		Transactions: []*model.Transaction{cb},
	}
	block.Header.HashMerkleRoot = block.ComputeMerkleRoot()
	mineHeader(t, block.Header, oracle, handle)

	bc := BlockContext{
		TipHeight: 0, PrevBits: uint32(chaincfg.RegtestParams.PowLimitBits),
		MedianTimePast: 1000, Now: uint64(time.Now().Unix()),
		Lookup: func(model.OutPoint) (*model.Utxo, error) { return nil, nil },
		PowHandle: handle,
	}

	_, err := bv.ValidateBlock(block, bc)
	require.Error(t, err)
}
