package protocol

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABIMethods(t *testing.T) {
	for _, name := range []string{
		MethodGetMakerAmount, MethodGetTakerAmount,
		MethodAnd, MethodOr, MethodEq, MethodLt, MethodGt,
		MethodTimestampBelow, MethodNonceEquals,
	} {
		_, ok := LimitOrderProtocolABI.Methods[name]
		assert.True(t, ok, "missing protocol method %s", name)
	}

	transfer, ok := ERC20ABI.Methods[MethodTransferFrom]
	require.True(t, ok)
	assert.Equal(t, "0x23b872dd", hexutil.Encode(transfer.ID))
	assert.Len(t, transfer.Inputs, 3)
}

func TestAmountDataLength(t *testing.T) {
	// "0x" + 4-byte selector + two 32-byte words
	assert.Equal(t, 2+(4+32+32)*2, AmountDataLength)
	assert.Equal(t, 138, AmountDataLength)
}

func TestTypeSchemas(t *testing.T) {
	order := OrderType()
	require.Len(t, order, 10)
	assert.Equal(t, "salt", order[0].Name)
	assert.Equal(t, "uint256", order[0].Type)
	assert.Equal(t, "interaction", order[9].Name)

	rfq := OrderRFQType()
	require.Len(t, rfq, 5)
	assert.Equal(t, "info", rfq[0].Name)

	domain := EIP712DomainType()
	require.Len(t, domain, 4)
	assert.Equal(t, "verifyingContract", domain[3].Name)
	assert.Equal(t, "address", domain[3].Type)
}
