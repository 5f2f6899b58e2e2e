package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// ChainFamily namespaces chain key derivation so that unrelated networks
// reusing the same raw chain id can never collide.
type ChainFamily byte

const (
	FamilyEVM    ChainFamily = 1
	FamilyCosmos ChainFamily = 2
	FamilySolana ChainFamily = 3
	FamilyOther  ChainFamily = 4
)

func (f ChainFamily) String() string {
	switch f {
	case FamilyEVM:
		return "evm"
	case FamilyCosmos:
		return "cosmos"
	case FamilySolana:
		return "solana"
	case FamilyOther:
		return "other"
	}

	return "invalid"
}

func ParseChainFamily(s string) (ChainFamily, bool) {
	switch s {
	case "evm":
		return FamilyEVM, true
	case "cosmos":
		return FamilyCosmos, true
	case "solana":
		return FamilySolana, true
	case "other":
		return FamilyOther, true
	}

	return 0, false
}

// ComputeChainKey derives the 32-byte chain key for a network. The layout is
// frozen: keccak256 of the single family tag byte followed by the raw,
// family-specific chain parameters. Immutable once derived.
func ComputeChainKey(family ChainFamily, params []byte) common.Hash {
	bz := make([]byte, 0, 1+len(params))
	bz = append(bz, byte(family))
	bz = append(bz, params...)

	return keccak256(bz)
}

// EVMChainKey derives the key for an EVM network from its numeric chain id,
// encoded as a 32-byte big-endian value.
func EVMChainKey(chainID *big.Int) common.Hash {
	var buf [32]byte
	chainID.FillBytes(buf[:])

	return ComputeChainKey(FamilyEVM, buf[:])
}

// CosmosChainKey derives the key for a Cosmos network from its string chain
// id (e.g. "cosmoshub-4"), taken as raw UTF-8 bytes.
func CosmosChainKey(chainID string) common.Hash {
	return ComputeChainKey(FamilyCosmos, []byte(chainID))
}

// SolanaChainKey derives the key for a Solana network from its base58-encoded
// genesis hash.
func SolanaChainKey(genesisHash string) (common.Hash, error) {
	bz, err := base58.Decode(genesisHash)
	if err != nil {
		return common.Hash{}, err
	}

	return ComputeChainKey(FamilySolana, bz), nil
}

// OtherChainKey derives the key for a network outside the known families from
// an arbitrary identifier.
func OtherChainKey(id []byte) common.Hash {
	return ComputeChainKey(FamilyOther, id)
}
