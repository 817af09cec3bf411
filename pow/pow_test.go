package pow

import (
	"testing"

	"github.com/coreledger/nodecore/model"
	"github.com/stretchr/testify/require"
)

func TestSeedHeightFor(t *testing.T) {
	require.Equal(t, uint32(0), SeedHeightFor(0))
	require.Equal(t, uint32(0), SeedHeightFor(2047))
	require.Equal(t, uint32(2048), SeedHeightFor(2048))
	require.Equal(t, uint32(4096), SeedHeightFor(4200))
}

func TestDoubleSHA256OracleDeterministic(t *testing.T) {
	oracle := NewDoubleSHA256Oracle()
	handle, err := oracle.Init(model.Hash256{1})
	require.NoError(t, err)

	header := []byte("some 88 byte header goes here")
	h1 := oracle.Hash(handle, header)
	h2 := oracle.Hash(handle, header)

	require.Equal(t, h1, h2)
	require.Equal(t, H256(header), h1)
}

func TestH160Length(t *testing.T) {
	digest := H160([]byte("a public key"))
	require.Len(t, digest, 20)
}

func TestH160Deterministic(t *testing.T) {
	require.Equal(t, H160([]byte("x")), H160([]byte("x")))
	require.NotEqual(t, H160([]byte("x")), H160([]byte("y")))
}
