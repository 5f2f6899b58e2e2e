package transfer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEncodeAddress(t *testing.T) {
	addr := common.HexToAddress("0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d")
	encoded := EncodeEVMAddress(addr)
	require.Equal(t,
		"0x0000000000000000000000008ac76a51cc950d9822d68b83fe1ad97b32cd580d",
		encoded.Hex())

	decoded, err := DecodeEVMAddress(encoded)
	require.Nil(t, err)
	require.Equal(t, addr, decoded)

	// Non-zero padding means the encoded value is not an EVM account.
	var bad common.Hash
	bad[0] = 1
	_, err = DecodeEVMAddress(bad)
	require.NotNil(t, err)

	_, err = EncodeAddress(make([]byte, 33))
	require.NotNil(t, err)
}

func TestEncodeSolanaAddress(t *testing.T) {
	// The system program address is 32 zero bytes.
	encoded, err := EncodeSolanaAddress("11111111111111111111111111111111")
	require.Nil(t, err)
	require.Equal(t, common.Hash{}, encoded)

	_, err = EncodeSolanaAddress("not-base58-0OIl")
	require.NotNil(t, err)
}
