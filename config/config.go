package config

import (
	"fmt"
	"math/big"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/transfer"
)

type Chain struct {
	Chain         string   `toml:"chain"`
	Family        string   `toml:"family"`   // evm, cosmos, solana, other
	ChainId       string   `toml:"chain_id"` // raw, family-specific id
	BlockTime     int      `toml:"block_time"`
	AdjustTime    int      `toml:"adjust_time"`
	StartingBlock int64    `toml:"starting_block"`
	Confirmations int64    `toml:"confirmations"`
	Rpcs          []string `toml:"rpcs"`
	BridgeAddress string   `toml:"bridge_address"` // deposit contract watched on this chain
	BridgeUrl     string   `toml:"bridge_url"`     // bridge daemon rpc endpoint for this chain
}

// ChainKey derives the chain's canonical key from its configured family and
// raw id.
func (c Chain) ChainKey() (common.Hash, error) {
	family, ok := transfer.ParseChainFamily(c.Family)
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown chain family %s for chain %s", c.Family, c.Chain)
	}

	switch family {
	case transfer.FamilyEVM:
		id, ok := new(big.Int).SetString(c.ChainId, 10)
		if !ok {
			return common.Hash{}, fmt.Errorf("invalid evm chain id %s for chain %s", c.ChainId, c.Chain)
		}
		return transfer.EVMChainKey(id), nil

	case transfer.FamilyCosmos:
		return transfer.CosmosChainKey(c.ChainId), nil

	case transfer.FamilySolana:
		return transfer.SolanaChainKey(c.ChainId)

	default:
		return transfer.OtherChainKey([]byte(c.ChainId)), nil
	}
}

type Token struct {
	Address           string `toml:"address"`
	BridgeType        string `toml:"bridge_type"` // mint_burn (default) or lock_unlock
	Fee               string `toml:"fee"`
	DeductFromAmount  bool   `toml:"deduct_from_amount"`
	MaxPerTransaction string `toml:"max_per_transaction"` // empty = unlimited
	MaxPerPeriod      string `toml:"max_per_period"`      // empty = unlimited
}

type Config struct {
	DbHost     string `toml:"db_host"`
	DbPort     int    `toml:"db_port"`
	DbUsername string `toml:"db_username"`
	DbPassword string `toml:"db_password"`
	DbSchema   string `toml:"db_schema"`
	InMemory   bool   `toml:"in_memory"`

	ServerPort int `toml:"server_port"`

	// HostChain names the configured chain whose bridge core this daemon
	// hosts and serves on its rpc port. Chains with an empty bridge_url are
	// hosted in-process as well.
	HostChain string `toml:"host_chain"`

	// WithdrawDelaySecs is the global cancel window between approval and the
	// earliest possible execution.
	WithdrawDelaySecs int64 `toml:"withdraw_delay_secs"`

	FeeEndpoint         string `toml:"fee_endpoint"`
	FeeRecipientAddress string `toml:"fee_recipient_address"`

	ApproverAddress string `toml:"approver_address"`
	CancelerAddress string `toml:"canceler_address"`
	OperatorAddress string `toml:"operator_address"`

	Chains map[string]Chain `toml:"chains"`
	Tokens map[string]Token `toml:"tokens"`
}

func Load(path string) (Config, error) {
	cfg := Config{}
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, err
	}

	for name, chain := range cfg.Chains {
		if chain.Chain == "" {
			chain.Chain = name
			cfg.Chains[name] = chain
		}
	}

	return cfg, nil
}
