package protocol

import "github.com/ethereum/go-ethereum/signer/core/apitypes"

// EIP712DomainTypeName is the reserved name of the domain struct.
const EIP712DomainTypeName = "EIP712Domain"

// Field order below must match the verifying contract's struct layout.

// EIP712DomainType returns the domain schema.
func EIP712DomainType() []apitypes.Type {
	return []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}
}

// OrderType returns the schema of the limit order struct.
func OrderType() []apitypes.Type {
	return []apitypes.Type{
		{Name: "salt", Type: "uint256"},
		{Name: "makerAsset", Type: "address"},
		{Name: "takerAsset", Type: "address"},
		{Name: "makerAssetData", Type: "bytes"},
		{Name: "takerAssetData", Type: "bytes"},
		{Name: "getMakerAmount", Type: "bytes"},
		{Name: "getTakerAmount", Type: "bytes"},
		{Name: "predicate", Type: "bytes"},
		{Name: "permit", Type: "bytes"},
		{Name: "interaction", Type: "bytes"},
	}
}

// OrderRFQType returns the schema of the RFQ order struct.
func OrderRFQType() []apitypes.Type {
	return []apitypes.Type{
		{Name: "info", Type: "uint256"},
		{Name: "makerAsset", Type: "address"},
		{Name: "takerAsset", Type: "address"},
		{Name: "makerAssetData", Type: "bytes"},
		{Name: "takerAssetData", Type: "bytes"},
	}
}
