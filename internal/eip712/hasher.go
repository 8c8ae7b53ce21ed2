package eip712

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

// Hasher computes EIP-712 hashes with go-ethereum's apitypes encoder.
type Hasher struct{}

// HashStruct returns hashStruct(td.Message) for td.PrimaryType. The domain is
// not part of the result.
func (Hasher) HashStruct(td apitypes.TypedData) ([]byte, error) {
	h, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("eip712: hash struct %s: %w", td.PrimaryType, err)
	}
	return h, nil
}

// Hash returns the signable digest
//
//	keccak256("\x19\x01" || domainSeparator || hashStruct(message))
func (Hasher) Hash(td apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("eip712: hash typed data: %w", err)
	}
	return digest, nil
}

// RecoverAddress returns the address that produced signature over td. The
// recovery byte may be 0/1 or 27/28.
func RecoverAddress(td apitypes.TypedData, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("eip712: decode signature: %w", errors.Join(domain.ErrInvalidSignature, err))
	}
	if len(sig) != ethcrypto.SignatureLength {
		return common.Address{}, fmt.Errorf("eip712: signature is %d bytes: %w", len(sig), domain.ErrInvalidSignature)
	}

	digest, err := Hasher{}.Hash(td)
	if err != nil {
		return common.Address{}, err
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("eip712: recover public key: %w", errors.Join(domain.ErrInvalidSignature, err))
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
