package calldata

import (
	"context"

	"github.com/alanyoungcy/limitorder/internal/protocol"
)

// ERC20 builds token transfer templates.
type ERC20 struct {
	enc Encoder
}

// NewERC20 returns an ERC20 facade over enc.
func NewERC20(enc Encoder) *ERC20 {
	return &ERC20{enc: enc}
}

// TransferFrom returns transferFrom(from, to, amount) calldata. No token
// address is bound here; the order's asset field names the token.
func (e *ERC20) TransferFrom(ctx context.Context, from, to, amount string) (string, error) {
	return e.enc.EncodeCall(ctx, protocol.ERC20ABI, "", protocol.MethodTransferFrom, from, to, amount)
}
