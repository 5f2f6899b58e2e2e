package transfer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// EncodeAddress left-zero-pads a chain's native account representation to the
// canonical 32-byte form used in all hashing.
func EncodeAddress(native []byte) (common.Hash, error) {
	if len(native) > common.HashLength {
		return common.Hash{}, fmt.Errorf("native address too long: %d bytes", len(native))
	}

	var out common.Hash
	copy(out[common.HashLength-len(native):], native)

	return out, nil
}

// EncodeEVMAddress encodes a 20-byte EVM account into canonical form.
func EncodeEVMAddress(addr common.Address) common.Hash {
	out, _ := EncodeAddress(addr.Bytes())
	return out
}

// DecodeEVMAddress recovers an EVM account from canonical form. The leading
// 12 bytes must be zero.
func DecodeEVMAddress(encoded common.Hash) (common.Address, error) {
	for _, b := range encoded[:common.HashLength-common.AddressLength] {
		if b != 0 {
			return common.Address{}, fmt.Errorf("encoded address %s has non-zero padding", encoded)
		}
	}

	return common.BytesToAddress(encoded[common.HashLength-common.AddressLength:]), nil
}

// EncodeSolanaAddress encodes a base58 Solana account (ed25519 public key,
// already 32 bytes) into canonical form.
func EncodeSolanaAddress(addr string) (common.Hash, error) {
	bz, err := base58.Decode(addr)
	if err != nil {
		return common.Hash{}, err
	}

	return EncodeAddress(bz)
}

// EncodeCosmosAddress encodes the raw bytes of a Cosmos account (typically 20
// bytes from bech32 decoding) into canonical form.
func EncodeCosmosAddress(raw []byte) (common.Hash, error) {
	return EncodeAddress(raw)
}
