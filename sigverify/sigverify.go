// Package sigverify abstracts signature verification behind an oracle
// interface, so the validator never depends on which signature scheme (or
// mix of schemes) a deployment accepts. The default backend verifies
// classical ECDSA signatures over secp256k1; a post-quantum or multisig
// backend can be swapped in without touching the validator.
package sigverify

import (
	"github.com/coreledger/nodecore/model"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Oracle verifies that sig authorizes spending the output locked by
// pubkey, against the transaction digest message.
type Oracle interface {
	Verify(pubkey, message, sig []byte) bool
}

// Secp256k1Oracle verifies DER-encoded ECDSA signatures over secp256k1, the
// default classical scheme referenced by ScriptKind P2PKH_Classical.
type Secp256k1Oracle struct{}

func NewSecp256k1Oracle() *Secp256k1Oracle {
	return &Secp256k1Oracle{}
}

func (o *Secp256k1Oracle) Verify(pubkeyBytes, message, sigBytes []byte) bool {
	pubkey, err := secp256k1.ParsePubKey(pubkeyBytes)
	if err != nil {
		return false
	}

	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}

	return sig.Verify(message, pubkey)
}

// Digest hashes a transaction preimage into the fixed-size message a
// signature is computed over.
func Digest(preimage []byte) model.Hash256 {
	return model.DoubleSHA256(preimage)
}
