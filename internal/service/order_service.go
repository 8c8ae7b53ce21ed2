// Package service orchestrates order building and signing together with the
// audit, archive and event side effects of a signing service.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/eip712"
	"github.com/alanyoungcy/limitorder/internal/limitorder"
)

// Audit event names.
const (
	EventOrderSigned    = "order_signed"
	EventRFQOrderSigned = "rfq_order_signed"
)

// VerifyRequest carries a typed-data document and a signature over it.
// Expected, when set, is the address the signature must recover to.
type VerifyRequest struct {
	TypedData json.RawMessage `json:"typedData"`
	Signature string          `json:"signature"`
	Expected  string          `json:"expected,omitempty"`
}

// VerifyResult is the outcome of VerifySignature.
type VerifyResult struct {
	Signer    string `json:"signer"`
	OrderHash string `json:"orderHash"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`

	// Set for OrderRFQ documents.
	RFQID     uint64 `json:"rfqId,omitempty"`
	ExpiresAt uint64 `json:"expiresAt,omitempty"`
}

// OrderService builds and signs orders and records what it signed. Audit,
// archive and bus are optional; their failures are logged, never returned.
type OrderService struct {
	builder *limitorder.Builder
	wallet  string
	audit   domain.AuditStore
	blobs   domain.BlobWriter
	bus     domain.SignalBus
	rfqIDs  domain.IDAllocator
	now     func() time.Time
	logger  *slog.Logger
}

// NewOrderService creates an OrderService around builder. wallet is the
// maker address the configured signer controls; empty accepts any maker.
func NewOrderService(builder *limitorder.Builder, wallet string, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		builder: builder,
		wallet:  wallet,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "order_service")),
	}
}

// WithAuditStore records every signature in store.
func (s *OrderService) WithAuditStore(store domain.AuditStore) *OrderService {
	s.audit = store
	return s
}

// WithArchive writes every signed order as JSON to blobs.
func (s *OrderService) WithArchive(blobs domain.BlobWriter) *OrderService {
	s.blobs = blobs
	return s
}

// WithSignalBus publishes every signed order on bus.
func (s *OrderService) WithSignalBus(bus domain.SignalBus) *OrderService {
	s.bus = bus
	return s
}

// WithRFQIDs assigns ids to RFQ orders submitted without one.
func (s *OrderService) WithRFQIDs(ids domain.IDAllocator) *OrderService {
	s.rfqIDs = ids
	return s
}

// Wallet returns the maker address the service signs for, if fixed.
func (s *OrderService) Wallet() string {
	return s.wallet
}

// PrepareLimitOrder builds a limit order with its typed data and hash for
// an external wallet to sign.
func (s *OrderService) PrepareLimitOrder(ctx context.Context, p domain.LimitOrderParams) (domain.PreparedOrder, error) {
	prepared, _, err := s.prepareLimit(ctx, p, false)
	return prepared, err
}

// PrepareRFQOrder is the RFQ counterpart of PrepareLimitOrder.
func (s *OrderService) PrepareRFQOrder(ctx context.Context, p domain.RFQOrderParams) (domain.PreparedOrder, error) {
	prepared, _, err := s.prepareRFQ(ctx, p, false)
	return prepared, err
}

// SignLimitOrder builds, hashes and signs a limit order.
func (s *OrderService) SignLimitOrder(ctx context.Context, p domain.LimitOrderParams) (domain.SignedOrder, error) {
	prepared, td, err := s.prepareLimit(ctx, p, true)
	if err != nil {
		return domain.SignedOrder{}, err
	}
	return s.sign(ctx, p.MakerAddress, prepared, td, EventOrderSigned)
}

// SignRFQOrder builds, hashes and signs an RFQ order. A nil ID is taken
// from the RFQ id allocator when one is configured.
func (s *OrderService) SignRFQOrder(ctx context.Context, p domain.RFQOrderParams) (domain.SignedOrder, error) {
	prepared, td, err := s.prepareRFQ(ctx, p, true)
	if err != nil {
		return domain.SignedOrder{}, err
	}
	return s.sign(ctx, p.MakerAddress, prepared, td, EventRFQOrderSigned)
}

// VerifySignature recovers the signer of req.Signature over req.TypedData.
// A document bound to another contract or chain is reported invalid.
func (s *OrderService) VerifySignature(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	var td apitypes.TypedData
	if err := json.Unmarshal(req.TypedData, &td); err != nil {
		return VerifyResult{}, fmt.Errorf("order_service: typed data: %w", errors.Join(domain.ErrInvalidOrder, err))
	}
	if td.PrimaryType != domain.PrimaryTypeOrder && td.PrimaryType != domain.PrimaryTypeOrderRFQ {
		return VerifyResult{}, fmt.Errorf("order_service: unsupported primary type %q: %w", td.PrimaryType, domain.ErrInvalidOrder)
	}

	hash, err := s.builder.BuildLimitOrderHash(td)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("order_service: %w", errors.Join(domain.ErrInvalidOrder, err))
	}
	signer, err := eip712.RecoverAddress(td, req.Signature)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("order_service: %w", err)
	}

	res := VerifyResult{Signer: signer.Hex(), OrderHash: hash, Valid: true}
	if td.PrimaryType == domain.PrimaryTypeOrderRFQ {
		info, err := rfqInfo(td.Message["info"])
		if err != nil {
			return VerifyResult{}, fmt.Errorf("order_service: %w", errors.Join(domain.ErrInvalidOrder, err))
		}
		if res.RFQID, res.ExpiresAt, err = limitorder.DecodeRFQOrderInfo(info); err != nil {
			return VerifyResult{}, fmt.Errorf("order_service: %w", errors.Join(domain.ErrInvalidOrder, err))
		}
	}
	d := s.builder.Domain()
	switch {
	case !strings.EqualFold(td.Domain.VerifyingContract, d.VerifyingContract):
		res.Valid, res.Reason = false, "verifying contract mismatch"
	case td.Domain.ChainId == nil || (*big.Int)(td.Domain.ChainId).Cmp(big.NewInt(d.ChainID)) != 0:
		res.Valid, res.Reason = false, "chain id mismatch"
	case req.Expected != "" && !strings.EqualFold(req.Expected, res.Signer):
		res.Valid, res.Reason = false, "signer mismatch"
	case res.ExpiresAt != 0 && res.ExpiresAt < uint64(s.now().Unix()):
		res.Valid, res.Reason = false, "rfq order expired"
	}
	s.logger.DebugContext(ctx, "verified signature",
		slog.String("order_hash", hash),
		slog.String("signer", res.Signer),
		slog.Bool("valid", res.Valid),
	)
	return res, nil
}

// rfqInfo normalises the info field of a decoded document to decimal. JSON
// numbers arrive as float64 and are accepted when integral.
func rfqInfo(v any) (string, error) {
	var raw string
	switch x := v.(type) {
	case string:
		raw = x
	case json.Number:
		raw = x.String()
	case float64:
		raw = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return "", fmt.Errorf("info has type %T", v)
	}
	n, ok := math.ParseBig256(raw)
	if !ok {
		return "", fmt.Errorf("info %q is not an integer", raw)
	}
	return n.String(), nil
}

// ListAudit returns audit entries, optionally for one order hash.
func (s *OrderService) ListAudit(ctx context.Context, orderHash string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, fmt.Errorf("order_service: audit log disabled: %w", domain.ErrNotFound)
	}
	entries, err := s.audit.List(ctx, orderHash, opts)
	if err != nil {
		return nil, fmt.Errorf("order_service: list audit: %w", err)
	}
	return entries, nil
}

// RecentOrders returns up to count of the most recently signed orders from
// the signed-order stream, oldest first.
func (s *OrderService) RecentOrders(ctx context.Context, count int) ([]domain.SignedOrder, error) {
	if s.bus == nil {
		return nil, fmt.Errorf("order_service: signal bus disabled: %w", domain.ErrNotFound)
	}
	msgs, err := s.bus.StreamRecent(ctx, domain.StreamOrdersSigned, count)
	if err != nil {
		return nil, fmt.Errorf("order_service: recent orders: %w", err)
	}
	out := make([]domain.SignedOrder, 0, len(msgs))
	for _, m := range msgs {
		var o domain.SignedOrder
		if err := json.Unmarshal(m.Payload, &o); err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable stream entry",
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *OrderService) prepareLimit(ctx context.Context, p domain.LimitOrderParams, signing bool) (domain.PreparedOrder, apitypes.TypedData, error) {
	if err := s.validateLimit(&p, signing); err != nil {
		return domain.PreparedOrder{}, apitypes.TypedData{}, err
	}
	order, err := s.builder.BuildLimitOrder(ctx, p)
	if err != nil {
		return domain.PreparedOrder{}, apitypes.TypedData{}, fmt.Errorf("order_service: build limit order: %w", err)
	}
	td := s.builder.BuildLimitOrderTypedData(order)
	prepared, err := s.envelope(td)
	if err != nil {
		return domain.PreparedOrder{}, apitypes.TypedData{}, err
	}
	prepared.LimitOrder = &order
	return prepared, td, nil
}

func (s *OrderService) prepareRFQ(ctx context.Context, p domain.RFQOrderParams, signing bool) (domain.PreparedOrder, apitypes.TypedData, error) {
	if err := s.validateRFQ(&p, signing); err != nil {
		return domain.PreparedOrder{}, apitypes.TypedData{}, err
	}
	if p.ID == nil && s.rfqIDs != nil {
		id, err := s.rfqIDs.Next(ctx, p.MakerAddress)
		if err != nil {
			return domain.PreparedOrder{}, apitypes.TypedData{}, fmt.Errorf("order_service: allocate rfq id: %w", err)
		}
		p.ID = new(big.Int).SetUint64(id)
	}
	order, err := s.builder.BuildRFQOrder(ctx, p)
	if err != nil {
		return domain.PreparedOrder{}, apitypes.TypedData{}, fmt.Errorf("order_service: build rfq order: %w", err)
	}
	td := s.builder.BuildRFQOrderTypedData(order)
	prepared, err := s.envelope(td)
	if err != nil {
		return domain.PreparedOrder{}, apitypes.TypedData{}, err
	}
	prepared.RFQOrder = &order
	return prepared, td, nil
}

func (s *OrderService) envelope(td apitypes.TypedData) (domain.PreparedOrder, error) {
	hash, err := s.builder.BuildLimitOrderHash(td)
	if err != nil {
		return domain.PreparedOrder{}, fmt.Errorf("order_service: %w", err)
	}
	raw, err := eip712.MarshalTypedData(td)
	if err != nil {
		return domain.PreparedOrder{}, fmt.Errorf("order_service: %w", err)
	}
	return domain.PreparedOrder{PrimaryType: td.PrimaryType, OrderHash: hash, TypedData: raw}, nil
}

func (s *OrderService) sign(ctx context.Context, maker string, prepared domain.PreparedOrder, td apitypes.TypedData, event string) (domain.SignedOrder, error) {
	sig, err := s.builder.BuildOrderSignature(ctx, maker, td)
	if err != nil {
		return domain.SignedOrder{}, fmt.Errorf("order_service: sign %s: %w", prepared.OrderHash, err)
	}
	signed := domain.SignedOrder{
		PreparedOrder: prepared,
		Signature:     sig,
		Signer:        common.HexToAddress(maker).Hex(),
		CreatedAt:     s.now().UTC(),
	}
	s.record(ctx, signed, event)

	s.logger.InfoContext(ctx, "order signed",
		slog.String("order_hash", signed.OrderHash),
		slog.String("primary_type", signed.PrimaryType),
		slog.String("signer", signed.Signer),
	)
	return signed, nil
}

// record runs the best-effort side effects for a signed order.
func (s *OrderService) record(ctx context.Context, o domain.SignedOrder, event string) {
	warn := func(what string, err error) {
		s.logger.WarnContext(ctx, what+" failed",
			slog.String("order_hash", o.OrderHash),
			slog.String("error", err.Error()),
		)
	}

	if s.audit != nil {
		detail := map[string]any{"signature": o.Signature}
		switch {
		case o.LimitOrder != nil:
			detail["makerAsset"], detail["takerAsset"], detail["salt"] = o.LimitOrder.MakerAsset, o.LimitOrder.TakerAsset, o.LimitOrder.Salt
		case o.RFQOrder != nil:
			detail["makerAsset"], detail["takerAsset"], detail["info"] = o.RFQOrder.MakerAsset, o.RFQOrder.TakerAsset, o.RFQOrder.Info
		}
		if err := s.audit.Log(ctx, domain.AuditEntry{
			Event:       event,
			OrderHash:   o.OrderHash,
			Signer:      o.Signer,
			PrimaryType: o.PrimaryType,
			RequestID:   domain.RequestIDFrom(ctx),
			Detail:      detail,
		}); err != nil {
			warn("audit log", err)
		}
	}

	if s.blobs == nil && s.bus == nil {
		return
	}
	payload, err := json.Marshal(o)
	if err != nil {
		warn("encode signed order", err)
		return
	}

	if s.blobs != nil {
		if err := s.blobs.Put(ctx, ArchiveKey(o), bytes.NewReader(payload), "application/json"); err != nil {
			warn("archive", err)
		}
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, domain.ChannelOrdersSigned, payload); err != nil {
			warn("publish", err)
		}
		if err := s.bus.StreamAppend(ctx, domain.StreamOrdersSigned, payload); err != nil {
			warn("stream append", err)
		}
	}
}

// ArchiveKey is the object key a signed order is archived under:
// orders/<primaryType>/<yyyy>/<mm>/<dd>/<hash>.json.
func ArchiveKey(o domain.SignedOrder) string {
	return fmt.Sprintf("orders/%s/%s/%s.json", o.PrimaryType, o.CreatedAt.UTC().Format("2006/01/02"), o.OrderHash)
}

func (s *OrderService) validateLimit(p *domain.LimitOrderParams, signing bool) error {
	v := validator{}
	v.address("makerAssetAddress", p.MakerAssetAddress)
	v.address("takerAssetAddress", p.TakerAssetAddress)
	v.address("makerAddress", p.MakerAddress)
	v.optionalAddress("takerAddress", p.TakerAddress)
	p.MakerAmount = v.amount("makerAmount", p.MakerAmount)
	p.TakerAmount = v.amount("takerAmount", p.TakerAmount)
	v.calldata("predicate", p.Predicate)
	v.calldata("permit", p.Permit)
	v.calldata("interaction", p.Interaction)
	if signing {
		s.checkWallet(&v, p.MakerAddress)
	}
	return v.err()
}

func (s *OrderService) validateRFQ(p *domain.RFQOrderParams, signing bool) error {
	v := validator{}
	v.address("makerAssetAddress", p.MakerAssetAddress)
	v.address("takerAssetAddress", p.TakerAssetAddress)
	v.address("makerAddress", p.MakerAddress)
	v.optionalAddress("takerAddress", p.TakerAddress)
	p.MakerAmount = v.amount("makerAmount", p.MakerAmount)
	p.TakerAmount = v.amount("takerAmount", p.TakerAmount)
	if signing {
		s.checkWallet(&v, p.MakerAddress)
	}
	return v.err()
}

func (s *OrderService) checkWallet(v *validator, maker string) {
	if s.wallet != "" && common.IsHexAddress(maker) && !strings.EqualFold(maker, s.wallet) {
		v.fail("makerAddress %s is not the signing wallet %s", maker, s.wallet)
	}
}

// validator collects every parameter problem into one ErrInvalidOrder.
type validator struct {
	problems []string
}

func (v *validator) fail(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) address(field, s string) {
	if !common.IsHexAddress(s) {
		v.fail("%s %q is not a hex address", field, s)
	}
}

func (v *validator) optionalAddress(field, s string) {
	if s != "" {
		v.address(field, s)
	}
}

// amount checks s is a non-negative integer below 2^256 and returns its
// canonical decimal form.
func (v *validator) amount(field, s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	switch {
	case err != nil:
		v.fail("%s %q is not a number", field, s)
	case d.IsNegative():
		v.fail("%s %q is negative", field, s)
	case !d.IsInteger():
		v.fail("%s %q is not a whole number of base units", field, s)
	case d.BigInt().BitLen() > 256:
		v.fail("%s %q exceeds uint256", field, s)
	default:
		return d.BigInt().String()
	}
	return s
}

func (v *validator) calldata(field, s string) {
	if s == "" {
		return
	}
	if _, err := hexutil.Decode(s); err != nil {
		v.fail("%s is not 0x-prefixed hex: %v", field, err)
	}
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("order_service: %s: %w", strings.Join(v.problems, "; "), domain.ErrInvalidOrder)
}
