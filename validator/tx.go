// Package validator enforces the node's consensus rules against individual
// transactions and whole blocks, producing the UTXO diff a validated block
// implies.
package validator

import (
	"github.com/coreledger/nodecore/chaincfg"
	"github.com/coreledger/nodecore/errors"
	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/sigverify"
)

// TxValidator enforces the per-transaction consensus rules.
type TxValidator struct {
	params    *chaincfg.Params
	sigOracle sigverify.Oracle
}

// NewTxValidator builds a TxValidator bound to params for size/fee policy
// and sigOracle for signature verification.
func NewTxValidator(params *chaincfg.Params, sigOracle sigverify.Oracle) *TxValidator {
	return &TxValidator{params: params, sigOracle: sigOracle}
}

// ValidateTransaction runs the block-level transaction checks against tx:
// well-formedness, no intra-transaction double spend, input presence and
// coinbase maturity, signatures, and overspend. It does not enforce the
// minimum relay fee rate, since a block author may include a transaction at
// any fee its own economics allow; that check only gates mempool admission
// and is applied separately by ValidateForMempool. spent must contain the
// Utxo referenced by every one of tx's inputs, keyed by outpoint; a missing
// entry is reported as ERR_MISSING_INPUT. tipHeight is the height of the
// block the caller is building or checking on top of. On success it returns
// the transaction's fee (sum(inputs) - sum(outputs)).
func (tv *TxValidator) ValidateTransaction(tx *model.Transaction, spent map[model.OutPoint]*model.Utxo, tipHeight uint32) (uint64, error) {
	if err := tv.checkWellFormed(tx); err != nil {
		return 0, err
	}

	if err := tv.checkNoDuplicateInputs(tx); err != nil {
		return 0, err
	}

	inputTotal, err := tv.checkInputsPresentAndMature(tx, spent, tipHeight)
	if err != nil {
		return 0, err
	}

	if err := tv.checkSignatures(tx, spent); err != nil {
		return 0, err
	}

	outputTotal, err := tv.checkOverspend(tx, inputTotal)
	if err != nil {
		return 0, err
	}

	return inputTotal - outputTotal, nil
}

// ValidateForMempool runs every check ValidateTransaction does, plus the
// minimum relay fee rate required for admission into the pending pool.
func (tv *TxValidator) ValidateForMempool(tx *model.Transaction, spent map[model.OutPoint]*model.Utxo, tipHeight uint32) (uint64, error) {
	fee, err := tv.ValidateTransaction(tx, spent, tipHeight)
	if err != nil {
		return 0, err
	}
	if err := tv.checkFee(tx, fee); err != nil {
		return 0, err
	}
	return fee, nil
}

func (tv *TxValidator) checkWellFormed(tx *model.Transaction) error {
	if len(tx.Inputs) == 0 {
		return errors.NewMalformedTxError("transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return errors.NewMalformedTxError("transaction has no outputs")
	}
	for i, out := range tx.Outputs {
		if out.Value > tv.params.MaxSupply {
			return errors.NewMalformedTxError("output %d value %d exceeds max supply", i, out.Value)
		}
	}
	if tv.params.MaxTxSize > 0 && tx.SerializeSize() > tv.params.MaxTxSize {
		return errors.NewMalformedTxError("transaction size %d exceeds max tx size %d", tx.SerializeSize(), tv.params.MaxTxSize)
	}
	return nil
}

func (tv *TxValidator) checkNoDuplicateInputs(tx *model.Transaction) error {
	seen := make(map[model.OutPoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, ok := seen[in.PreviousOutput]; ok {
			return errors.NewDoubleSpendInTxError("input %d spends outpoint %s twice within the same transaction", i, in.PreviousOutput)
		}
		seen[in.PreviousOutput] = struct{}{}
	}
	return nil
}

func (tv *TxValidator) checkInputsPresentAndMature(tx *model.Transaction, spent map[model.OutPoint]*model.Utxo, tipHeight uint32) (uint64, error) {
	var total uint64
	for i, in := range tx.Inputs {
		u, ok := spent[in.PreviousOutput]
		if !ok || u == nil {
			return 0, errors.NewMissingInputError("input %d references unknown or already-spent outpoint %s", i, in.PreviousOutput)
		}
		if !u.IsMature(tipHeight, tv.params.CoinbaseMaturity) {
			return 0, errors.NewImmatureCoinbaseError("input %d spends coinbase output %s before maturity (matures at %d, tip %d)",
				i, in.PreviousOutput, u.MatureAt(tv.params.CoinbaseMaturity), tipHeight)
		}
		total += u.Output.Value
	}
	return total, nil
}

func (tv *TxValidator) checkSignatures(tx *model.Transaction, spent map[model.OutPoint]*model.Utxo) error {
	if tv.sigOracle == nil {
		return nil
	}

	digest := sigverify.Digest(tx.SignaturePreimage())
	for i, in := range tx.Inputs {
		u := spent[in.PreviousOutput]
		if !tv.sigOracle.Verify(u.Output.ScriptPubKey, digest[:], in.ScriptSig) {
			return errors.NewBadSignatureError("input %d has an invalid signature", i)
		}
	}
	return nil
}

func (tv *TxValidator) checkOverspend(tx *model.Transaction, inputTotal uint64) (uint64, error) {
	var outputTotal uint64
	for _, out := range tx.Outputs {
		outputTotal += out.Value
	}
	if outputTotal > inputTotal {
		return 0, errors.NewOverspendError("transaction spends %d but only has %d available", outputTotal, inputTotal)
	}
	return outputTotal, nil
}

func (tv *TxValidator) checkFee(tx *model.Transaction, fee uint64) error {
	minFee := tv.params.MinRelayFeeRate * uint64(tx.SerializeSize())
	if fee < minFee {
		return errors.NewFeeTooLowError("transaction fee %d is below the minimum required %d", fee, minFee)
	}
	return nil
}
