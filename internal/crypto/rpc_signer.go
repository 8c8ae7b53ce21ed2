package crypto

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/eip712"
)

// RPCSigner delegates signing to a wallet or remote signer that speaks
// eth_signTypedData_v4 over JSON-RPC.
type RPCSigner struct {
	client *rpc.Client
	logger *slog.Logger
}

// DialRPCSigner connects to the JSON-RPC endpoint at url.
func DialRPCSigner(ctx context.Context, url string, logger *slog.Logger) (*RPCSigner, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("crypto/rpc_signer: dial %s: %w", url, err)
	}
	return NewRPCSigner(client, logger), nil
}

// NewRPCSigner wraps an existing client.
func NewRPCSigner(client *rpc.Client, logger *slog.Logger) *RPCSigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCSigner{
		client: client,
		logger: logger.With(slog.String("component", "rpc_signer")),
	}
}

// SignTypedData asks the wallet to sign td. dataHash is informational: the
// wallet hashes the JSON document itself.
func (s *RPCSigner) SignTypedData(ctx context.Context, walletAddress string, td apitypes.TypedData, dataHash string) (string, error) {
	if !common.IsHexAddress(walletAddress) {
		return "", &domain.SigningError{Address: walletAddress, Err: domain.ErrUnknownWallet}
	}
	payload, err := eip712.MarshalTypedData(td)
	if err != nil {
		return "", &domain.SigningError{Address: walletAddress, Err: err}
	}

	var sig hexutil.Bytes
	if err := s.client.CallContext(ctx, &sig, "eth_signTypedData_v4", common.HexToAddress(walletAddress), string(payload)); err != nil {
		return "", &domain.SigningError{Address: walletAddress, Err: err}
	}

	s.logger.DebugContext(ctx, "wallet signed typed data",
		slog.String("wallet", walletAddress),
		slog.String("struct_hash", dataHash),
	)
	return sig.String(), nil
}

// Close releases the underlying connection.
func (s *RPCSigner) Close() {
	s.client.Close()
}
