// Package protocol holds the fixed parameters of the 1inch Limit Order
// Protocol v1: EIP-712 domain values, type schemas, contract ABIs and the
// calldata sentinels orders are built from.
package protocol

const (
	// Name and Version form the EIP-712 domain of the verifying contract.
	Name    = "1inch Limit Order Protocol"
	Version = "1"

	// ZX is the empty calldata sentinel.
	ZX = "0x"

	// ZeroAddress marks an order that any taker may fill.
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// AmountDataLength is the length of a getMakerAmount/getTakerAmount
	// template: "0x", the selector and two 32-byte words.
	AmountDataLength = 2 + 68*2
)

// Protocol contract methods.
const (
	MethodGetMakerAmount = "getMakerAmount"
	MethodGetTakerAmount = "getTakerAmount"
	MethodAnd            = "and"
	MethodOr             = "or"
	MethodEq             = "eq"
	MethodLt             = "lt"
	MethodGt             = "gt"
	MethodTimestampBelow = "timestampBelow"
	MethodNonceEquals    = "nonceEquals"
)

// MethodTransferFrom is the ERC20 method used for asset data templates.
const MethodTransferFrom = "transferFrom"
