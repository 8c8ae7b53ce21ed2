package calldata

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/protocol"
)

const (
	maker = "0x1111111111111111111111111111111111111111"
	taker = "0x2222222222222222222222222222222222222222"
)

func word(hexDigits string) string {
	return strings.Repeat("0", 64-len(hexDigits)) + hexDigits
}

func TestTransferFromLayout(t *testing.T) {
	erc20 := NewERC20(NewABIEncoder())

	data, err := erc20.TransferFrom(context.Background(), maker, taker, "100")
	require.NoError(t, err)

	want := "0x23b872dd" +
		word(strings.Repeat("11", 20)) +
		word(strings.Repeat("22", 20)) +
		word("64")
	assert.Equal(t, want, data)
}

func TestEncodeCallAcceptsTypedValues(t *testing.T) {
	enc := NewABIEncoder()
	ctx := context.Background()

	fromStrings, err := enc.EncodeCall(ctx, protocol.ERC20ABI, "", protocol.MethodTransferFrom, maker, taker, "0x64")
	require.NoError(t, err)

	fromTyped, err := enc.EncodeCall(ctx, protocol.ERC20ABI, "", protocol.MethodTransferFrom,
		common.HexToAddress(maker), common.HexToAddress(taker), big.NewInt(100))
	require.NoError(t, err)

	fromDecimal, err := enc.EncodeCall(ctx, protocol.ERC20ABI, "", protocol.MethodTransferFrom,
		maker, taker, decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.Equal(t, fromStrings, fromTyped)
	assert.Equal(t, fromStrings, fromDecimal)
}

func TestEncodeCallErrors(t *testing.T) {
	enc := NewABIEncoder()
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		params []any
	}{
		{"unknown method", "approve", []any{maker, "1"}},
		{"wrong arity", protocol.MethodTransferFrom, []any{maker, taker}},
		{"bad address", protocol.MethodTransferFrom, []any{"0xM", taker, "1"}},
		{"negative amount", protocol.MethodTransferFrom, []any{maker, taker, "-1"}},
		{"empty amount", protocol.MethodTransferFrom, []any{maker, taker, ""}},
		{"fractional amount", protocol.MethodTransferFrom, []any{maker, taker, decimal.RequireFromString("1.5")}},
		{"overflow", protocol.MethodTransferFrom, []any{maker, taker, "0x1" + strings.Repeat("0", 64)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.EncodeCall(ctx, protocol.ERC20ABI, "", tt.method, tt.params...)
			require.Error(t, err)

			var encErr *domain.EncodingError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, tt.method, encErr.Method)
		})
	}
}

func TestPredicateAndOr(t *testing.T) {
	const contract = "0x3333333333333333333333333333333333333333"
	ctx := context.Background()
	pb := NewPredicateBuilder(NewABIEncoder(), contract)

	below, err := pb.TimestampBelow(ctx, 1700000000)
	require.NoError(t, err)
	nonce, err := pb.NonceEquals(ctx, maker, 7)
	require.NoError(t, err)

	for _, method := range []string{protocol.MethodAnd, protocol.MethodOr} {
		t.Run(method, func(t *testing.T) {
			var combined string
			if method == protocol.MethodAnd {
				combined, err = pb.And(ctx, below, nonce)
			} else {
				combined, err = pb.Or(ctx, below, nonce)
			}
			require.NoError(t, err)

			m := protocol.LimitOrderProtocolABI.Methods[method]
			raw, err := hexutil.Decode(combined)
			require.NoError(t, err)
			require.Equal(t, m.ID, raw[:4])

			args, err := m.Inputs.Unpack(raw[4:])
			require.NoError(t, err)
			require.Len(t, args, 2)

			targets := args[0].([]common.Address)
			data := args[1].([][]byte)
			assert.Equal(t, []common.Address{common.HexToAddress(contract), common.HexToAddress(contract)}, targets)
			assert.Equal(t, below, hexutil.Encode(data[0]))
			assert.Equal(t, nonce, hexutil.Encode(data[1]))
		})
	}
}

func TestPredicateTimestampBelow(t *testing.T) {
	pb := NewPredicateBuilder(NewABIEncoder(), "0x3333333333333333333333333333333333333333")

	got, err := pb.TimestampBelow(context.Background(), 1700000000)
	require.NoError(t, err)

	m := protocol.LimitOrderProtocolABI.Methods[protocol.MethodTimestampBelow]
	assert.Equal(t, hexutil.Encode(m.ID)+fmt.Sprintf("%064x", 1700000000), got)
}

func TestPredicateComparisons(t *testing.T) {
	const target = "0x4444444444444444444444444444444444444444"
	ctx := context.Background()
	pb := NewPredicateBuilder(NewABIEncoder(), "0x3333333333333333333333333333333333333333")

	for name, fn := range map[string]func(context.Context, string, string, string) (string, error){
		protocol.MethodEq: pb.Eq,
		protocol.MethodLt: pb.Lt,
		protocol.MethodGt: pb.Gt,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := fn(ctx, "42", target, "0xdeadbeef")
			require.NoError(t, err)

			m := protocol.LimitOrderProtocolABI.Methods[name]
			raw, err := hexutil.Decode(got)
			require.NoError(t, err)
			args, err := m.Inputs.Unpack(raw[4:])
			require.NoError(t, err)

			assert.Equal(t, int64(42), args[0].(*big.Int).Int64())
			assert.Equal(t, common.HexToAddress(target), args[1].(common.Address))
			assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, args[2].([]byte))
		})
	}
}
