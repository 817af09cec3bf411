package settings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings()

	require.NotNil(t, s.ChainCfgParams)
	require.Equal(t, "main", s.Network)
	require.Equal(t, s.ChainCfgParams.MaxTxSize, s.Validator.MaxTxSize)
	require.Equal(t, s.ChainCfgParams.MaxBlockSize, s.Validator.MaxBlockSize)
	require.Greater(t, s.Mempool.MaxTransactions, 0)
}
