package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ID computes the canonical transfer id correlating a deposit on one chain
// with its approval and execution on another. It is a single keccak256 pass
// over the fixed concatenation of six 32-byte big-endian zero-padded fields:
//
//	srcChainKey || destChainKey || destTokenAddress || destAccount || amount || nonce
//
// The byte layout is a frozen contract. Every chain-side implementation must
// produce bit-identical output for identical logical fields; legitimacy of a
// withdrawal is verified purely by recomputing this hash.
func ID(srcChainKey, destChainKey, destTokenAddress, destAccount common.Hash,
	amount *big.Int, nonce uint64) common.Hash {

	var buf [192]byte
	copy(buf[0:32], srcChainKey[:])
	copy(buf[32:64], destChainKey[:])
	copy(buf[64:96], destTokenAddress[:])
	copy(buf[96:128], destAccount[:])
	amount.FillBytes(buf[128:160])
	new(big.Int).SetUint64(nonce).FillBytes(buf[160:192])

	return keccak256(buf[:])
}

func keccak256(bz []byte) common.Hash {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(bz)

	var out common.Hash
	copy(out[:], hash.Sum(nil))

	return out
}
