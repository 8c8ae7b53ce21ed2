package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// Primary type tags of the protocol's typed-data structs.
const (
	PrimaryTypeOrder    = "Order"
	PrimaryTypeOrderRFQ = "OrderRFQ"
)

// LimitOrder is a standing maker order. Field order matches the on-chain
// Order struct.
type LimitOrder struct {
	Salt           string `json:"salt"`
	MakerAsset     string `json:"makerAsset"`
	TakerAsset     string `json:"takerAsset"`
	MakerAssetData string `json:"makerAssetData"`
	TakerAssetData string `json:"takerAssetData"`
	GetMakerAmount string `json:"getMakerAmount"`
	GetTakerAmount string `json:"getTakerAmount"`
	Predicate      string `json:"predicate"`
	Permit         string `json:"permit"`
	Interaction    string `json:"interaction"`
}

// RFQOrder is a quote order. Info packs the expiry into the high 64 bits and
// the quote id into the low 64 bits.
type RFQOrder struct {
	Info           string `json:"info"`
	MakerAsset     string `json:"makerAsset"`
	TakerAsset     string `json:"takerAsset"`
	MakerAssetData string `json:"makerAssetData"`
	TakerAssetData string `json:"takerAssetData"`
}

// LimitOrderParams are the caller inputs for a limit order.
//
// Defaults: TakerAddress is the zero address (any taker); Predicate, Permit
// and Interaction are "0x".
type LimitOrderParams struct {
	MakerAssetAddress string `json:"makerAssetAddress"`
	TakerAssetAddress string `json:"takerAssetAddress"`
	MakerAddress      string `json:"makerAddress"`
	TakerAddress      string `json:"takerAddress,omitempty"`
	MakerAmount       string `json:"makerAmount"`
	TakerAmount       string `json:"takerAmount"`
	Predicate         string `json:"predicate,omitempty"`
	Permit            string `json:"permit,omitempty"`
	Interaction       string `json:"interaction,omitempty"`
}

// RFQOrderParams are the caller inputs for an RFQ order. ID and
// ExpiresInTimestamp must each fit in 64 bits.
type RFQOrderParams struct {
	ID                 *big.Int `json:"id"`
	ExpiresInTimestamp *big.Int `json:"expiresInTimestamp"`
	MakerAssetAddress  string   `json:"makerAssetAddress"`
	TakerAssetAddress  string   `json:"takerAssetAddress"`
	MakerAddress       string   `json:"makerAddress"`
	TakerAddress       string   `json:"takerAddress,omitempty"`
	MakerAmount        string   `json:"makerAmount"`
	TakerAmount        string   `json:"takerAmount"`
}

// PreparedOrder is an assembled order with its typed data and hash, ready
// for an external wallet to sign.
type PreparedOrder struct {
	PrimaryType string          `json:"primaryType"`
	OrderHash   string          `json:"orderHash"`
	LimitOrder  *LimitOrder     `json:"limitOrder,omitempty"`
	RFQOrder    *RFQOrder       `json:"rfqOrder,omitempty"`
	TypedData   json.RawMessage `json:"typedData"`
}

// SignedOrder is a prepared order plus the maker's signature.
type SignedOrder struct {
	PreparedOrder
	Signature string    `json:"signature"`
	Signer    string    `json:"signer"`
	CreatedAt time.Time `json:"createdAt"`
}
