package sigverify

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"
)

func TestSecp256k1OracleValidSignature(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	message := Digest([]byte("a transaction preimage"))
	sig := ecdsa.Sign(priv, message[:])

	oracle := NewSecp256k1Oracle()
	require.True(t, oracle.Verify(priv.PubKey().SerializeCompressed(), message[:], sig.Serialize()))
}

func TestSecp256k1OracleRejectsTamperedMessage(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	message := Digest([]byte("a transaction preimage"))
	sig := ecdsa.Sign(priv, message[:])

	tampered := Digest([]byte("a different preimage"))

	oracle := NewSecp256k1Oracle()
	require.False(t, oracle.Verify(priv.PubKey().SerializeCompressed(), tampered[:], sig.Serialize()))
}

func TestDispatcherRoutesByScriptKind(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	message := Digest([]byte("payload"))
	sig := ecdsa.Sign(priv, message[:])

	d := NewDispatcher()
	d.Register(P2PKHClassical, NewSecp256k1Oracle())

	script := append([]byte{byte(P2PKHClassical)}, priv.PubKey().SerializeCompressed()...)

	require.True(t, d.Verify(script, message[:], sig.Serialize()))
}

func TestDispatcherUnregisteredKindFails(t *testing.T) {
	d := NewDispatcher()
	script := []byte{byte(P2PKHPostQuantum), 0x01, 0x02}

	require.False(t, d.Verify(script, []byte("m"), []byte("s")))
}

func TestDispatcherEmptyScriptPubKeyFails(t *testing.T) {
	d := NewDefaultDispatcher()
	require.False(t, d.Verify(nil, []byte("m"), []byte("s")))
}
