package crypto

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/eip712"
)

// Signer signs order typed data with a locally held secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	hasher     eip712.Hasher
	logger     *slog.Logger
}

// NewSigner creates a Signer from a hex-encoded private key (0x optional).
func NewSigner(privateKeyHex string, logger *slog.Logger) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	addr := ethcrypto.PubkeyToAddress(pk.PublicKey)
	return &Signer{
		privateKey: pk,
		address:    addr,
		logger:     logger.With(slog.String("component", "signer"), slog.String("address", addr.Hex())),
	}, nil
}

// Address returns the Ethereum address derived from the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTypedData signs td for walletAddress, which must be the signer's own
// address. A non-empty dataHash must equal the struct hash of td so the
// caller and the signer agree on what is being signed.
func (s *Signer) SignTypedData(ctx context.Context, walletAddress string, td apitypes.TypedData, dataHash string) (string, error) {
	if !common.IsHexAddress(walletAddress) || common.HexToAddress(walletAddress) != s.address {
		return "", &domain.SigningError{Address: walletAddress, Err: domain.ErrUnknownWallet}
	}

	if dataHash != "" {
		structHash, err := s.hasher.HashStruct(td)
		if err != nil {
			return "", &domain.SigningError{Address: walletAddress, Err: err}
		}
		if !strings.EqualFold(strings.TrimPrefix(dataHash, "0x"), hex.EncodeToString(structHash)) {
			return "", &domain.SigningError{Address: walletAddress, Err: domain.ErrDigestMismatch}
		}
	}

	digest, err := s.hasher.Hash(td)
	if err != nil {
		return "", &domain.SigningError{Address: walletAddress, Err: err}
	}

	sig, err := s.signDigest(digest)
	if err != nil {
		return "", &domain.SigningError{Address: walletAddress, Err: err}
	}

	s.logger.DebugContext(ctx, "signed typed data",
		slog.String("primary_type", td.PrimaryType),
		slog.String("digest", "0x"+hex.EncodeToString(digest)),
	)
	return sig, nil
}

// signDigest signs a 32-byte digest and returns r || s || v as 0x hex.
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; the contract's ecrecover expects {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}
