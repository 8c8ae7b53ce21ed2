// Package calldata encodes the contract calls that limit orders embed: ERC20
// transfer templates, amount-resolution getters and predicates.
package calldata

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

// Encoder encodes a contract method call as 0x-prefixed calldata.
type Encoder interface {
	EncodeCall(ctx context.Context, contractABI abi.ABI, contract, method string, params ...any) (string, error)
}

// ABIEncoder packs calls locally with go-ethereum's ABI codec. Parameters
// may be given loosely: hex strings for addresses and bytes, decimal or hex
// strings for integers. They are converted to the types the ABI declares.
type ABIEncoder struct{}

// NewABIEncoder returns a local ABI encoder.
func NewABIEncoder() *ABIEncoder {
	return &ABIEncoder{}
}

// EncodeCall packs method with params. contract is ignored: local encoding
// does not depend on the callee address.
func (e *ABIEncoder) EncodeCall(ctx context.Context, contractABI abi.ABI, contract, method string, params ...any) (string, error) {
	m, ok := contractABI.Methods[method]
	if !ok {
		return "", &domain.EncodingError{Method: method, Err: errors.New("method not found in abi")}
	}
	if len(params) != len(m.Inputs) {
		return "", &domain.EncodingError{
			Method: method,
			Err:    fmt.Errorf("got %d params, want %d", len(params), len(m.Inputs)),
		}
	}

	args := make([]any, len(params))
	for i, input := range m.Inputs {
		v, err := convert(input.Type, params[i])
		if err != nil {
			return "", &domain.EncodingError{Method: method, Err: fmt.Errorf("param %s: %w", input.Name, err)}
		}
		args[i] = v
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return "", &domain.EncodingError{Method: method, Err: err}
	}
	return hexutil.Encode(data), nil
}

func convert(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(v)
	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s for %s", n, t)
		}
		if t.Size > 64 {
			return n, nil
		}
		return fitInt(t, n)
	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		return b, nil
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case abi.BytesTy:
		return toBytes(v)
	case abi.SliceTy:
		return toSlice(t, v)
	default:
		return nil, fmt.Errorf("unsupported abi type %s", t)
	}
}

func toAddress(v any) (common.Address, error) {
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case string:
		if !common.IsHexAddress(a) {
			return common.Address{}, fmt.Errorf("invalid address %q", a)
		}
		return common.HexToAddress(a), nil
	default:
		return common.Address{}, fmt.Errorf("want address, got %T", v)
	}
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, errors.New("nil integer")
		}
		return new(big.Int).Set(n), nil
	case string:
		if n == "" {
			return nil, errors.New("empty integer")
		}
		parsed, ok := math.ParseBig256(n)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n)
		}
		return parsed, nil
	case decimal.Decimal:
		if !n.IsInteger() {
			return nil, fmt.Errorf("non-integer amount %s", n)
		}
		return n.BigInt(), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	default:
		return nil, fmt.Errorf("want integer, got %T", v)
	}
}

// fitInt narrows n to the fixed-width Go type the ABI codec expects for
// integers of 64 bits or fewer.
func fitInt(t abi.Type, n *big.Int) (any, error) {
	val := reflect.New(t.GetType()).Elem()
	switch val.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !n.IsUint64() || val.OverflowUint(n.Uint64()) {
			return nil, fmt.Errorf("value %s overflows %s", n, t)
		}
		val.SetUint(n.Uint64())
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !n.IsInt64() || val.OverflowInt(n.Int64()) {
			return nil, fmt.Errorf("value %s overflows %s", n, t)
		}
		val.SetInt(n.Int64())
	default:
		return nil, fmt.Errorf("unsupported integer kind %s", val.Kind())
	}
	return val.Interface(), nil
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case hexutil.Bytes:
		return b, nil
	case string:
		data, err := hexutil.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("invalid hex bytes %q: %w", b, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("want bytes, got %T", v)
	}
}

func toSlice(t abi.Type, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("want slice for %s, got %T", t, v)
	}
	out := reflect.MakeSlice(t.GetType(), rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := convert(*t.Elem, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(elem))
	}
	return out.Interface(), nil
}

var _ Encoder = (*ABIEncoder)(nil)
