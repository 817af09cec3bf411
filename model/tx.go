package model

import (
	"encoding/binary"
	"io"
)

func putUint32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putUint64LE(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// TxInput spends a previous output. Coinbase inputs reference NullOutPoint
// and carry an arbitrary tag (up to 100 bytes) in ScriptSig instead of a
// real unlocking script.
type TxInput struct {
	PreviousOutput OutPoint
	ScriptSig      []byte
	Sequence       uint32
	Witness        []byte
}

// IsCoinbase reports whether this input is the coinbase sentinel input.
func (in *TxInput) IsCoinbase() bool {
	return in.PreviousOutput.IsNull()
}

// Bytes returns the canonical encoding used inside a transaction's byte
// stream: prev_txid(32) | prev_vout(4) | script_len:varint | script | seq(4).
// Witness data is not part of the canonical (hashed) encoding.
func (in *TxInput) Bytes() []byte {
	b := make([]byte, 0, 36+VarintSize(uint64(len(in.ScriptSig)))+len(in.ScriptSig)+4)
	b = append(b, in.PreviousOutput.Bytes()...)
	b = WriteVarint(b, uint64(len(in.ScriptSig)))
	b = append(b, in.ScriptSig...)
	seq := make([]byte, 4)
	putUint32LE(seq, in.Sequence)
	b = append(b, seq...)
	return b
}

func readTxInput(buf []byte) (*TxInput, []byte, error) {
	prevTxIDBytes, buf, err := readBytes(buf, 32, "prev txid")
	if err != nil {
		return nil, nil, err
	}
	prevTxID, err := NewHashFromBytes(prevTxIDBytes)
	if err != nil {
		return nil, nil, err
	}

	voutBytes, buf, err := readBytes(buf, 4, "prev vout")
	if err != nil {
		return nil, nil, err
	}
	vout := binary.LittleEndian.Uint32(voutBytes)

	scriptLen, n, err := ReadVarint(buf)
	if err != nil {
		return nil, nil, err
	}
	buf = buf[n:]

	script, buf, err := readBytes(buf, int(scriptLen), "script_sig")
	if err != nil {
		return nil, nil, err
	}

	seqBytes, buf, err := readBytes(buf, 4, "sequence")
	if err != nil {
		return nil, nil, err
	}

	in := &TxInput{
		PreviousOutput: OutPoint{TxID: prevTxID, Vout: vout},
		ScriptSig:      append([]byte(nil), script...),
		Sequence:       binary.LittleEndian.Uint32(seqBytes),
	}
	return in, buf, nil
}

// TxOutput assigns value to a locking script. Address is a derived
// convenience field for indexing and is never part of the hash preimage.
type TxOutput struct {
	Value        uint64
	ScriptPubKey []byte
	Address      string
}

// Bytes returns the canonical encoding: value(8) | script_len:varint | script.
func (out *TxOutput) Bytes() []byte {
	b := make([]byte, 8, 8+VarintSize(uint64(len(out.ScriptPubKey)))+len(out.ScriptPubKey))
	putUint64LE(b, out.Value)
	b = WriteVarint(b, uint64(len(out.ScriptPubKey)))
	b = append(b, out.ScriptPubKey...)
	return b
}

func readTxOutput(buf []byte) (*TxOutput, []byte, error) {
	valBytes, buf, err := readBytes(buf, 8, "value")
	if err != nil {
		return nil, nil, err
	}

	scriptLen, n, err := ReadVarint(buf)
	if err != nil {
		return nil, nil, err
	}
	buf = buf[n:]

	script, buf, err := readBytes(buf, int(scriptLen), "script_pubkey")
	if err != nil {
		return nil, nil, err
	}

	return &TxOutput{
		Value:        binary.LittleEndian.Uint64(valBytes),
		ScriptPubKey: append([]byte(nil), script...),
	}, buf, nil
}

// Transaction moves value from previously created outputs to new ones.
type Transaction struct {
	Version  uint32
	Inputs   []*TxInput
	Outputs  []*TxOutput
	LockTime uint32
}

// IsCoinbase reports whether tx is a coinbase transaction: exactly one input
// and that input references the null outpoint.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].IsCoinbase()
}

// Bytes returns the canonical encoding used to compute TxID:
// version | in_count:varint | inputs | out_count:varint | outputs | locktime.
func (tx *Transaction) Bytes() []byte {
	b := make([]byte, 4)
	putUint32LE(b, tx.Version)

	b = WriteVarint(b, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		b = append(b, in.Bytes()...)
	}

	b = WriteVarint(b, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		b = append(b, out.Bytes()...)
	}

	lt := make([]byte, 4)
	putUint32LE(lt, tx.LockTime)
	b = append(b, lt...)

	return b
}

// TxID computes the transaction id: double-SHA256 over the canonical encoding.
func (tx *Transaction) TxID() Hash256 {
	return DoubleSHA256(tx.Bytes())
}

// SerializeSize returns the byte length of the canonical encoding.
func (tx *Transaction) SerializeSize() int {
	return len(tx.Bytes())
}

// SignaturePreimage returns the encoding a signature commits to: the same
// canonical layout as Bytes, but with every input's ScriptSig cleared, so a
// signature never has to sign over its own bytes. A signer computes it before
// ScriptSig is filled in; a verifier recomputes the same digest by rebuilding
// it from the spending transaction regardless of what ScriptSig now holds.
func (tx *Transaction) SignaturePreimage() []byte {
	stripped := &Transaction{Version: tx.Version, Outputs: tx.Outputs, LockTime: tx.LockTime}
	stripped.Inputs = make([]*TxInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		stripped.Inputs[i] = &TxInput{PreviousOutput: in.PreviousOutput, Sequence: in.Sequence}
	}
	return stripped.Bytes()
}

// TransactionFromBytes decodes a transaction from its canonical encoding,
// round-tripping exactly with Bytes.
func TransactionFromBytes(buf []byte) (*Transaction, error) {
	if len(buf) < 4 {
		return nil, io.ErrUnexpectedEOF
	}

	tx := &Transaction{Version: binary.LittleEndian.Uint32(buf[:4])}
	buf = buf[4:]

	inCount, n, err := ReadVarint(buf)
	if err != nil {
		return nil, err
	}
	buf = buf[n:]

	tx.Inputs = make([]*TxInput, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		var in *TxInput
		in, buf, err = readTxInput(buf)
		if err != nil {
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	outCount, n, err := ReadVarint(buf)
	if err != nil {
		return nil, err
	}
	buf = buf[n:]

	tx.Outputs = make([]*TxOutput, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		var out *TxOutput
		out, buf, err = readTxOutput(buf)
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if len(buf) < 4 {
		return nil, io.ErrUnexpectedEOF
	}
	tx.LockTime = binary.LittleEndian.Uint32(buf[:4])

	return tx, nil
}
