// Package settings loads the node's runtime configuration through
// gocore's typed getters, the same env-var/config-file layered lookup the
// rest of the ecosystem uses, into one strongly-typed Settings value.
package settings

import (
	"time"

	"github.com/coreledger/nodecore/chaincfg"
)

// ValidatorSettings tunes admission-time transaction and block validation.
type ValidatorSettings struct {
	MinRelayFeeRate uint64
	MaxTxSize       int
	MaxBlockSize    int
}

// UtxoStoreSettings configures the persistent UTXO store backend.
type UtxoStoreSettings struct {
	StoreURL         string
	RichListPageSize int
}

// ChainSettings configures the chain state manager.
type ChainSettings struct {
	StoreURL           string
	OrphanPoolMaxSize  int
	ReorgMaxDepth      int
}

// MempoolSettings bounds the admission cache.
type MempoolSettings struct {
	MaxTransactions int
	MaxBytes        int
}

// MiningSettings tunes block assembly and the nonce-search loop.
type MiningSettings struct {
	PayoutAddress        string
	CancellationCheckMask uint64
	TimeRefreshInterval   time.Duration
}

// Settings is the fully resolved runtime configuration for the node.
type Settings struct {
	ClientName     string
	DataFolder     string
	Network        string
	ChainCfgParams *chaincfg.Params

	Validator ValidatorSettings
	UtxoStore UtxoStoreSettings
	Chain     ChainSettings
	Mempool   MempoolSettings
	Mining    MiningSettings
}

// NewSettings resolves a Settings value from the process configuration,
// falling back to sensible development defaults for anything unset.
func NewSettings() *Settings {
	network := getString("network", "main")

	params, ok := chaincfg.ByName(network)
	if !ok {
		params = &chaincfg.MainParams
	}

	return &Settings{
		ClientName:     getString("clientName", "nodecore"),
		DataFolder:     getString("dataFolder", "./data"),
		Network:        network,
		ChainCfgParams: params,

		Validator: ValidatorSettings{
			MinRelayFeeRate: getUint64("validator_minRelayFeeRate", params.MinRelayFeeRate),
			MaxTxSize:       getInt("validator_maxTxSize", params.MaxTxSize),
			MaxBlockSize:    getInt("validator_maxBlockSize", params.MaxBlockSize),
		},
		UtxoStore: UtxoStoreSettings{
			StoreURL:         getString("utxostore_store", "sqlite:///utxo"),
			RichListPageSize: getInt("utxostore_richListPageSize", 100),
		},
		Chain: ChainSettings{
			StoreURL:          getString("chain_store", "sqlite:///chain"),
			OrphanPoolMaxSize: getInt("chain_orphanPoolMaxSize", 100),
			ReorgMaxDepth:     getInt("chain_reorgMaxDepth", 100),
		},
		Mempool: MempoolSettings{
			MaxTransactions: getInt("mempool_maxTransactions", 100000),
			MaxBytes:        getInt("mempool_maxBytes", 300*1024*1024),
		},
		Mining: MiningSettings{
			PayoutAddress:         getString("mining_payoutAddress", ""),
			CancellationCheckMask: getUint64("mining_cancellationCheckMask", 0xffff),
			TimeRefreshInterval:   time.Duration(getInt("mining_timeRefreshIntervalSeconds", 1)) * time.Second,
		},
	}
}
