// Package limitorder assembles 1inch limit and RFQ orders, wraps them in
// their EIP-712 envelope and obtains maker signatures.
package limitorder

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/alanyoungcy/limitorder/internal/calldata"
	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/eip712"
	"github.com/alanyoungcy/limitorder/internal/protocol"
)

// TypedDataHasher computes EIP-712 hashes. HashStruct covers the message
// of td.PrimaryType only; Hash is the full domain-bound digest.
type TypedDataHasher interface {
	HashStruct(td apitypes.TypedData) ([]byte, error)
	Hash(td apitypes.TypedData) ([]byte, error)
}

// Signer signs typed data on behalf of walletAddress. dataHash is the hex
// struct hash of the message, without 0x.
type Signer interface {
	SignTypedData(ctx context.Context, walletAddress string, typedData apitypes.TypedData, dataHash string) (string, error)
}

// Config identifies the verifying contract. Name and Version default to
// the protocol's own.
type Config struct {
	ContractAddress string
	ChainID         int64
	Name            string
	Version         string
}

// Builder assembles, hashes and signs orders. It holds only immutable
// configuration and is safe for concurrent use.
type Builder struct {
	contract string
	domain   eip712.Domain
	encoder  calldata.Encoder
	erc20    *calldata.ERC20
	hasher   TypedDataHasher
	signer   Signer
	salt     SaltGenerator
	logger   *slog.Logger
}

// Option customises a Builder.
type Option func(*Builder)

// WithSaltGenerator replaces the default GenerateOrderSalt.
func WithSaltGenerator(g SaltGenerator) Option {
	return func(b *Builder) { b.salt = g }
}

// WithHasher replaces the default apitypes hasher.
func WithHasher(h TypedDataHasher) Option {
	return func(b *Builder) { b.hasher = h }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder returns a Builder bound to the contract in cfg. signer may be
// nil when only building and hashing is needed.
func NewBuilder(cfg Config, encoder calldata.Encoder, signer Signer, opts ...Option) (*Builder, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("limitorder: invalid contract address %q", cfg.ContractAddress)
	}
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("limitorder: chain id must be positive, got %d", cfg.ChainID)
	}
	if encoder == nil {
		return nil, errors.New("limitorder: encoder is required")
	}

	b := &Builder{
		contract: cfg.ContractAddress,
		domain:   eip712.NewDomain(cfg.Name, cfg.Version, cfg.ChainID, cfg.ContractAddress),
		encoder:  encoder,
		erc20:    calldata.NewERC20(encoder),
		hasher:   eip712.Hasher{},
		signer:   signer,
		salt:     SaltFunc(GenerateOrderSalt),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(slog.String("component", "limitorder"))
	return b, nil
}

// Domain returns the EIP-712 domain orders are bound to.
func (b *Builder) Domain() eip712.Domain {
	return b.domain
}

// BuildLimitOrder assembles a limit order from p, filling defaults and
// encoding the transfer and amount templates.
func (b *Builder) BuildLimitOrder(ctx context.Context, p domain.LimitOrderParams) (domain.LimitOrder, error) {
	taker := orDefault(p.TakerAddress, protocol.ZeroAddress)

	salt, err := b.salt.GenerateSalt(ctx, p.MakerAddress)
	if err != nil {
		return domain.LimitOrder{}, fmt.Errorf("limitorder: generate salt: %w", err)
	}

	makerAssetData, takerAssetData, err := b.assetData(ctx, p.MakerAddress, taker, p.MakerAmount, p.TakerAmount)
	if err != nil {
		return domain.LimitOrder{}, err
	}

	getMakerAmount, err := b.amountData(ctx, protocol.MethodGetMakerAmount, p.MakerAmount, p.TakerAmount)
	if err != nil {
		return domain.LimitOrder{}, err
	}
	getTakerAmount, err := b.amountData(ctx, protocol.MethodGetTakerAmount, p.MakerAmount, p.TakerAmount)
	if err != nil {
		return domain.LimitOrder{}, err
	}

	order := domain.LimitOrder{
		Salt:           salt,
		MakerAsset:     p.MakerAssetAddress,
		TakerAsset:     p.TakerAssetAddress,
		MakerAssetData: makerAssetData,
		TakerAssetData: takerAssetData,
		GetMakerAmount: getMakerAmount,
		GetTakerAmount: getTakerAmount,
		Predicate:      orDefault(p.Predicate, protocol.ZX),
		Permit:         orDefault(p.Permit, protocol.ZX),
		Interaction:    orDefault(p.Interaction, protocol.ZX),
	}

	b.logger.DebugContext(ctx, "built limit order",
		slog.String("maker", p.MakerAddress),
		slog.String("salt", salt),
	)
	return order, nil
}

// BuildRFQOrder assembles an RFQ order from p. It fails with
// domain.ErrInvalidRange when the id or expiry does not fit in 64 bits.
func (b *Builder) BuildRFQOrder(ctx context.Context, p domain.RFQOrderParams) (domain.RFQOrder, error) {
	info, err := GenerateRFQOrderInfo(p.ID, p.ExpiresInTimestamp)
	if err != nil {
		return domain.RFQOrder{}, err
	}

	taker := orDefault(p.TakerAddress, protocol.ZeroAddress)
	makerAssetData, takerAssetData, err := b.assetData(ctx, p.MakerAddress, taker, p.MakerAmount, p.TakerAmount)
	if err != nil {
		return domain.RFQOrder{}, err
	}

	b.logger.DebugContext(ctx, "built rfq order",
		slog.String("maker", p.MakerAddress),
		slog.String("info", info),
	)
	return domain.RFQOrder{
		Info:           info,
		MakerAsset:     p.MakerAssetAddress,
		TakerAsset:     p.TakerAssetAddress,
		MakerAssetData: makerAssetData,
		TakerAssetData: takerAssetData,
	}, nil
}

// BuildLimitOrderTypedData wraps order in its "Order" envelope.
func (b *Builder) BuildLimitOrderTypedData(order domain.LimitOrder) apitypes.TypedData {
	return eip712.LimitOrderTypedData(b.domain, order)
}

// BuildRFQOrderTypedData wraps order in its "OrderRFQ" envelope.
func (b *Builder) BuildRFQOrderTypedData(order domain.RFQOrder) apitypes.TypedData {
	return eip712.RFQOrderTypedData(b.domain, order)
}

// BuildLimitOrderHash returns the 0x-prefixed EIP-712 digest of td. It
// accepts either envelope kind.
func (b *Builder) BuildLimitOrderHash(td apitypes.TypedData) (string, error) {
	digest, err := b.hasher.Hash(td)
	if err != nil {
		return "", fmt.Errorf("limitorder: hash %s: %w", td.PrimaryType, err)
	}
	return protocol.ZX + hex.EncodeToString(digest), nil
}

// BuildOrderSignature asks the signer to sign td for walletAddress. Signer
// failures are returned unchanged.
func (b *Builder) BuildOrderSignature(ctx context.Context, walletAddress string, td apitypes.TypedData) (string, error) {
	if b.signer == nil {
		return "", &domain.SigningError{Address: walletAddress, Err: errors.New("no signer configured")}
	}
	structHash, err := b.hasher.HashStruct(td)
	if err != nil {
		return "", fmt.Errorf("limitorder: hash struct %s: %w", td.PrimaryType, err)
	}
	return b.signer.SignTypedData(ctx, walletAddress, td, hex.EncodeToString(structHash))
}

// assetData returns the maker->taker and taker->maker transfer templates.
func (b *Builder) assetData(ctx context.Context, maker, taker, makerAmount, takerAmount string) (string, string, error) {
	makerAssetData, err := b.erc20.TransferFrom(ctx, maker, taker, makerAmount)
	if err != nil {
		return "", "", err
	}
	takerAssetData, err := b.erc20.TransferFrom(ctx, taker, maker, takerAmount)
	if err != nil {
		return "", "", err
	}
	return makerAssetData, takerAssetData, nil
}

// amountData encodes a getter call and keeps the selector plus the two order
// amounts; the swap amount is appended by the contract at fill time.
func (b *Builder) amountData(ctx context.Context, method, makerAmount, takerAmount string) (string, error) {
	data, err := b.encoder.EncodeCall(ctx, protocol.LimitOrderProtocolABI, b.contract, method, makerAmount, takerAmount, "0")
	if err != nil {
		return "", err
	}
	if len(data) > protocol.AmountDataLength {
		data = data[:protocol.AmountDataLength]
	}
	return data, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
