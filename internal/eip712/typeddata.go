// Package eip712 wraps limit orders in the protocol's EIP-712 envelope and
// hashes, serialises and recovers signatures over it.
package eip712

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/protocol"
)

// Domain identifies the verifying contract a signature is bound to.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// NewDomain returns a Domain. Empty name and version fall back to the
// protocol defaults.
func NewDomain(name, version string, chainID int64, contract string) Domain {
	if name == "" {
		name = protocol.Name
	}
	if version == "" {
		version = protocol.Version
	}
	return Domain{
		Name:              name,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: contract,
	}
}

// TypedDataDomain converts d to its apitypes form.
func (d Domain) TypedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           math.NewHexOrDecimal256(d.ChainID),
		VerifyingContract: d.VerifyingContract,
	}
}

// LimitOrderTypedData wraps o in an "Order" envelope.
func LimitOrderTypedData(d Domain, o domain.LimitOrder) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			protocol.EIP712DomainTypeName: protocol.EIP712DomainType(),
			domain.PrimaryTypeOrder:       protocol.OrderType(),
		},
		PrimaryType: domain.PrimaryTypeOrder,
		Domain:      d.TypedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"salt":           o.Salt,
			"makerAsset":     o.MakerAsset,
			"takerAsset":     o.TakerAsset,
			"makerAssetData": o.MakerAssetData,
			"takerAssetData": o.TakerAssetData,
			"getMakerAmount": o.GetMakerAmount,
			"getTakerAmount": o.GetTakerAmount,
			"predicate":      o.Predicate,
			"permit":         o.Permit,
			"interaction":    o.Interaction,
		},
	}
}

// RFQOrderTypedData wraps o in an "OrderRFQ" envelope.
func RFQOrderTypedData(d Domain, o domain.RFQOrder) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			protocol.EIP712DomainTypeName: protocol.EIP712DomainType(),
			domain.PrimaryTypeOrderRFQ:    protocol.OrderRFQType(),
		},
		PrimaryType: domain.PrimaryTypeOrderRFQ,
		Domain:      d.TypedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"info":           o.Info,
			"makerAsset":     o.MakerAsset,
			"takerAsset":     o.TakerAsset,
			"makerAssetData": o.MakerAssetData,
			"takerAssetData": o.TakerAssetData,
		},
	}
}

// MarshalTypedData renders td as the JSON document eth_signTypedData_v4
// expects.
func MarshalTypedData(td apitypes.TypedData) ([]byte, error) {
	data, err := json.Marshal(td)
	if err != nil {
		return nil, fmt.Errorf("eip712: marshal typed data: %w", err)
	}
	return data, nil
}
