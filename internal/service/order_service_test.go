package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitorder/internal/calldata"
	"github.com/alanyoungcy/limitorder/internal/crypto"
	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/limitorder"
)

const (
	testKey    = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	wallet     = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	contract   = "0x119c71D3BbAC22029622cbaEc24854d3D32D2828"
	makerAsset = "0x111111111117dC0aa78b770fA6A738034120C302"
	takerAsset = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (f *fakeAudit) Log(_ context.Context, e domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAudit) List(_ context.Context, hash string, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if hash == "" || e.OrderHash == hash {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeBlobs struct {
	objects map[string][]byte
	err     error
}

func (f *fakeBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if f.err != nil {
		return f.err
	}
	b, _ := io.ReadAll(data)
	f.objects[path] = b
	return nil
}

func (f *fakeBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

type fakeBus struct {
	published map[string][][]byte
	streams   map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streams: map[string][][]byte{}}
}

func (f *fakeBus) Publish(_ context.Context, ch string, p []byte) error {
	f.published[ch] = append(f.published[ch], p)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (f *fakeBus) StreamAppend(_ context.Context, s string, p []byte) error {
	f.streams[s] = append(f.streams[s], p)
	return nil
}

func (f *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (f *fakeBus) StreamRecent(_ context.Context, s string, n int) ([]domain.StreamMessage, error) {
	all := f.streams[s]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	out := make([]domain.StreamMessage, 0, len(all)+1)
	for i, p := range all {
		out = append(out, domain.StreamMessage{ID: string(rune('a' + i)), Payload: p})
	}
	return append(out, domain.StreamMessage{ID: "junk", Payload: []byte("{")}), nil
}

type fakeIDs struct{ next uint64 }

func (f *fakeIDs) Next(context.Context, string) (uint64, error) {
	f.next++
	return f.next, nil
}

func newService(t *testing.T) *OrderService {
	t.Helper()
	signer, err := crypto.NewSigner(testKey, nil)
	require.NoError(t, err)
	b, err := limitorder.NewBuilder(
		limitorder.Config{ContractAddress: contract, ChainID: 1},
		calldata.NewABIEncoder(), signer,
		limitorder.WithSaltGenerator(limitorder.SaltFunc(func() string { return "7" })),
	)
	require.NoError(t, err)
	svc := NewOrderService(b, wallet, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	return svc
}

func limitParams() domain.LimitOrderParams {
	return domain.LimitOrderParams{
		MakerAssetAddress: makerAsset,
		TakerAssetAddress: takerAsset,
		MakerAddress:      wallet,
		MakerAmount:       "1000000000000000000",
		TakerAmount:       "2000",
	}
}

func TestSignLimitOrderSideEffects(t *testing.T) {
	audit := &fakeAudit{}
	blobs := &fakeBlobs{objects: map[string][]byte{}}
	bus := newFakeBus()
	svc := newService(t).WithAuditStore(audit).WithArchive(blobs).WithSignalBus(bus)
	ctx := domain.WithRequestID(context.Background(), "req-1")

	signed, err := svc.SignLimitOrder(ctx, limitParams())
	require.NoError(t, err)
	assert.Equal(t, domain.PrimaryTypeOrder, signed.PrimaryType)
	assert.Equal(t, wallet, signed.Signer)
	require.NotNil(t, signed.LimitOrder)
	assert.Equal(t, "7", signed.LimitOrder.Salt)

	res, err := svc.VerifySignature(ctx, VerifyRequest{TypedData: signed.TypedData, Signature: signed.Signature, Expected: wallet})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Reason)
	assert.Equal(t, signed.OrderHash, res.OrderHash)

	require.Len(t, audit.entries, 1)
	e := audit.entries[0]
	assert.Equal(t, EventOrderSigned, e.Event)
	assert.Equal(t, signed.OrderHash, e.OrderHash)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "7", e.Detail["salt"])

	key := "orders/Order/2024/03/09/" + signed.OrderHash + ".json"
	require.Contains(t, blobs.objects, key)
	var archived domain.SignedOrder
	require.NoError(t, json.Unmarshal(blobs.objects[key], &archived))
	assert.Equal(t, signed.Signature, archived.Signature)

	assert.Len(t, bus.published[domain.ChannelOrdersSigned], 1)
	assert.Len(t, bus.streams[domain.StreamOrdersSigned], 1)

	recent, err := svc.RecentOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, signed.OrderHash, recent[0].OrderHash)
}

func TestSideEffectFailuresAreNotReturned(t *testing.T) {
	svc := newService(t).
		WithAuditStore(&fakeAudit{err: errors.New("db down")}).
		WithArchive(&fakeBlobs{err: errors.New("s3 down")})

	_, err := svc.SignLimitOrder(context.Background(), limitParams())
	assert.NoError(t, err)
}

func TestValidationRejectsBadParams(t *testing.T) {
	svc := newService(t)
	cases := map[string]func(*domain.LimitOrderParams){
		"bad maker asset":   func(p *domain.LimitOrderParams) { p.MakerAssetAddress = "0x123" },
		"bad taker":         func(p *domain.LimitOrderParams) { p.TakerAddress = "nobody" },
		"negative amount":   func(p *domain.LimitOrderParams) { p.MakerAmount = "-1" },
		"fractional amount": func(p *domain.LimitOrderParams) { p.TakerAmount = "1.5" },
		"not a number":      func(p *domain.LimitOrderParams) { p.TakerAmount = "lots" },
		"bad predicate":     func(p *domain.LimitOrderParams) { p.Predicate = "deadbeef" },
		"foreign maker":     func(p *domain.LimitOrderParams) { p.MakerAddress = "0x2222222222222222222222222222222222222222" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := limitParams()
			mutate(&p)
			_, err := svc.SignLimitOrder(context.Background(), p)
			assert.ErrorIs(t, err, domain.ErrInvalidOrder)
		})
	}
}

func TestPrepareAllowsAnyMaker(t *testing.T) {
	svc := newService(t)
	p := limitParams()
	p.MakerAddress = "0x2222222222222222222222222222222222222222"
	p.MakerAmount = "1e3"

	prepared, err := svc.PrepareLimitOrder(context.Background(), p)
	require.NoError(t, err)
	assert.NotEmpty(t, prepared.OrderHash)
	assert.JSONEq(t, `"Order"`, mustJSON(t, prepared.PrimaryType))

	var td map[string]any
	require.NoError(t, json.Unmarshal(prepared.TypedData, &td))
	assert.Equal(t, "Order", td["primaryType"])
}

func TestSignRFQOrderAllocatesID(t *testing.T) {
	audit := &fakeAudit{}
	svc := newService(t).WithAuditStore(audit).WithRFQIDs(&fakeIDs{next: 4})

	signed, err := svc.SignRFQOrder(context.Background(), domain.RFQOrderParams{
		ExpiresInTimestamp: big.NewInt(1700000000),
		MakerAssetAddress:  makerAsset,
		TakerAssetAddress:  takerAsset,
		MakerAddress:       wallet,
		MakerAmount:        "10",
		TakerAmount:        "20",
	})
	require.NoError(t, err)
	require.NotNil(t, signed.RFQOrder)
	assert.Equal(t, "31359464925306237747200000005", signed.RFQOrder.Info)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, EventRFQOrderSigned, audit.entries[0].Event)
}

func TestSignRFQOrderRangeError(t *testing.T) {
	svc := newService(t)
	_, err := svc.SignRFQOrder(context.Background(), domain.RFQOrderParams{
		ID:                 new(big.Int).Lsh(big.NewInt(1), 64),
		ExpiresInTimestamp: big.NewInt(1),
		MakerAssetAddress:  makerAsset,
		TakerAssetAddress:  takerAsset,
		MakerAddress:       wallet,
		MakerAmount:        "10",
		TakerAmount:        "20",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestVerifySignatureMismatches(t *testing.T) {
	svc := newService(t)
	signed, err := svc.SignLimitOrder(context.Background(), limitParams())
	require.NoError(t, err)

	res, err := svc.VerifySignature(context.Background(), VerifyRequest{
		TypedData: signed.TypedData,
		Signature: signed.Signature,
		Expected:  "0x2222222222222222222222222222222222222222",
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "signer mismatch", res.Reason)

	_, err = svc.VerifySignature(context.Background(), VerifyRequest{TypedData: signed.TypedData, Signature: "0x1234"})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = svc.VerifySignature(context.Background(), VerifyRequest{TypedData: json.RawMessage(`{"primaryType":"Mail"}`)})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestVerifyRFQReportsIDAndExpiry(t *testing.T) {
	svc := newService(t)
	params := domain.RFQOrderParams{
		ID:                 big.NewInt(9),
		ExpiresInTimestamp: big.NewInt(1893456000), // 2030-01-01
		MakerAssetAddress:  makerAsset,
		TakerAssetAddress:  takerAsset,
		MakerAddress:       wallet,
		MakerAmount:        "10",
		TakerAmount:        "20",
	}
	signed, err := svc.SignRFQOrder(context.Background(), params)
	require.NoError(t, err)

	res, err := svc.VerifySignature(context.Background(), VerifyRequest{TypedData: signed.TypedData, Signature: signed.Signature})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Reason)
	assert.Equal(t, uint64(9), res.RFQID)
	assert.Equal(t, uint64(1893456000), res.ExpiresAt)

	params.ExpiresInTimestamp = big.NewInt(1700000000)
	stale, err := svc.SignRFQOrder(context.Background(), params)
	require.NoError(t, err)
	res, err = svc.VerifySignature(context.Background(), VerifyRequest{TypedData: stale.TypedData, Signature: stale.Signature})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "rfq order expired", res.Reason)
}

func TestVerifyRejectsForeignChainBeyondInt64(t *testing.T) {
	svc := newService(t)
	signed, err := svc.SignLimitOrder(context.Background(), limitParams())
	require.NoError(t, err)

	var td apitypes.TypedData
	require.NoError(t, json.Unmarshal(signed.TypedData, &td))
	// 2^64 + 1 truncates to 1 in int64.
	foreign := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))
	td.Domain.ChainId = (*math.HexOrDecimal256)(foreign)

	signer, err := crypto.NewSigner(testKey, nil)
	require.NoError(t, err)
	sig, err := signer.SignTypedData(context.Background(), wallet, td, "")
	require.NoError(t, err)

	res, err := svc.VerifySignature(context.Background(), VerifyRequest{
		TypedData: json.RawMessage(mustJSON(t, td)),
		Signature: sig,
	})
	require.NoError(t, err)
	assert.Equal(t, wallet, res.Signer)
	assert.False(t, res.Valid)
	assert.Equal(t, "chain id mismatch", res.Reason)
}

func TestVerifyRFQAcceptsNumericInfo(t *testing.T) {
	svc := newService(t)
	signed, err := svc.SignRFQOrder(context.Background(), domain.RFQOrderParams{
		ID:                 big.NewInt(42),
		ExpiresInTimestamp: big.NewInt(0),
		MakerAssetAddress:  makerAsset,
		TakerAssetAddress:  takerAsset,
		MakerAddress:       wallet,
		MakerAmount:        "10",
		TakerAmount:        "20",
	})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(signed.TypedData, &doc))
	doc["message"].(map[string]any)["info"] = 42

	res, err := svc.VerifySignature(context.Background(), VerifyRequest{
		TypedData: json.RawMessage(mustJSON(t, doc)),
		Signature: signed.Signature,
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Reason)
	assert.Equal(t, uint64(42), res.RFQID)
	assert.Equal(t, signed.OrderHash, res.OrderHash)
}

func TestRFQInfoNormalisation(t *testing.T) {
	tests := []struct {
		in      any
		want    string
		wantErr bool
	}{
		{in: "18446744073709551625", want: "18446744073709551625"},
		{in: "0x10", want: "16"},
		{in: float64(7), want: "7"},
		{in: json.Number("9"), want: "9"},
		{in: 1.5, wantErr: true},
		{in: true, wantErr: true},
		{in: nil, wantErr: true},
	}
	for _, tt := range tests {
		got, err := rfqInfo(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestWalletReportsConfiguredSigner(t *testing.T) {
	assert.Equal(t, wallet, newService(t).Wallet())
}

func TestOptionalBackendsDisabled(t *testing.T) {
	svc := newService(t)
	_, err := svc.ListAudit(context.Background(), "", domain.ListOpts{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.RecentOrders(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
