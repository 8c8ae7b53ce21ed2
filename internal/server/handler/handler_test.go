package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/service"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeOrders struct {
	err      error
	limit    domain.LimitOrderParams
	rfq      domain.RFQOrderParams
	verify   service.VerifyRequest
	recentN  int
	auditArg string
	opts     domain.ListOpts
}

func (f *fakeOrders) SignLimitOrder(_ context.Context, p domain.LimitOrderParams) (domain.SignedOrder, error) {
	f.limit = p
	return domain.SignedOrder{PreparedOrder: domain.PreparedOrder{PrimaryType: "Order", OrderHash: "0xabc"}, Signature: "0xsig"}, f.err
}

func (f *fakeOrders) SignRFQOrder(_ context.Context, p domain.RFQOrderParams) (domain.SignedOrder, error) {
	f.rfq = p
	return domain.SignedOrder{PreparedOrder: domain.PreparedOrder{PrimaryType: "OrderRFQ"}}, f.err
}

func (f *fakeOrders) PrepareLimitOrder(_ context.Context, p domain.LimitOrderParams) (domain.PreparedOrder, error) {
	f.limit = p
	return domain.PreparedOrder{PrimaryType: "Order", TypedData: json.RawMessage(`{}`)}, f.err
}

func (f *fakeOrders) PrepareRFQOrder(_ context.Context, p domain.RFQOrderParams) (domain.PreparedOrder, error) {
	f.rfq = p
	return domain.PreparedOrder{PrimaryType: "OrderRFQ", TypedData: json.RawMessage(`{}`)}, f.err
}

func (f *fakeOrders) VerifySignature(_ context.Context, req service.VerifyRequest) (service.VerifyResult, error) {
	f.verify = req
	return service.VerifyResult{Signer: "0x1", Valid: true}, f.err
}

func (f *fakeOrders) RecentOrders(_ context.Context, n int) ([]domain.SignedOrder, error) {
	f.recentN = n
	return nil, f.err
}

func (f *fakeOrders) ListAudit(_ context.Context, hash string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	f.auditArg, f.opts = hash, opts
	return []domain.AuditEntry{{ID: 1, Event: "order_signed"}}, f.err
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestSignLimitOrder(t *testing.T) {
	svc := &fakeOrders{}
	h := NewOrderHandler(svc, discard)

	rec := do(h.SignLimitOrder, http.MethodPost, "/api/orders/limit",
		`{"makerAssetAddress":"0xa","takerAssetAddress":"0xb","makerAddress":"0xc","makerAmount":"1","takerAmount":"2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "0xc", svc.limit.MakerAddress)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "0xabc", body["orderHash"])
	assert.Equal(t, "0xsig", body["signature"])
	assert.Equal(t, "Order", body["primaryType"])
}

func TestSignLimitOrderRejectsUnknownFields(t *testing.T) {
	h := NewOrderHandler(&fakeOrders{}, discard)
	rec := do(h.SignLimitOrder, http.MethodPost, "/api/orders/limit", `{"maker":"0xc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRFQDecodesLargeIntegers(t *testing.T) {
	svc := &fakeOrders{}
	h := NewOrderHandler(svc, discard)

	rec := do(h.PrepareRFQOrder, http.MethodPost, "/api/orders/rfq/prepare",
		`{"id":18446744073709551616,"expiresInTimestamp":1700000000,"makerAmount":"1","takerAmount":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	want, _ := new(big.Int).SetString("18446744073709551616", 10)
	assert.Equal(t, 0, want.Cmp(svc.rfq.ID))
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidOrder, http.StatusBadRequest},
		{domain.ErrInvalidRange, http.StatusBadRequest},
		{&domain.EncodingError{Method: "transferFrom", Err: errors.New("bad")}, http.StatusUnprocessableEntity},
		{&domain.SigningError{Address: "0x1", Err: errors.New("denied")}, http.StatusBadGateway},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewOrderHandler(&fakeOrders{err: tc.err}, discard)
		rec := do(h.SignRFQOrder, http.MethodPost, "/api/orders/rfq", `{}`)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}

	h := NewOrderHandler(&fakeOrders{err: errors.New("secret detail")}, discard)
	rec := do(h.SignRFQOrder, http.MethodPost, "/api/orders/rfq", `{}`)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestVerifySignature(t *testing.T) {
	svc := &fakeOrders{}
	h := NewOrderHandler(svc, discard)

	rec := do(h.VerifySignature, http.MethodPost, "/api/orders/verify", `{"typedData":{"primaryType":"Order"},"signature":"0x12"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0x12", svc.verify.Signature)
	assert.JSONEq(t, `{"primaryType":"Order"}`, string(svc.verify.TypedData))
	assert.JSONEq(t, `{"signer":"0x1","orderHash":"","valid":true}`, rec.Body.String())
}

func TestRecentOrders(t *testing.T) {
	svc := &fakeOrders{}
	h := NewOrderHandler(svc, discard)

	rec := do(h.RecentOrders, http.MethodGet, "/api/orders/recent?count=9999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, svc.recentN)
	assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())

	do(h.RecentOrders, http.MethodGet, "/api/orders/recent?count=abc", "")
	assert.Equal(t, 20, svc.recentN)
}

func TestListAudit(t *testing.T) {
	svc := &fakeOrders{}
	h := NewAuditHandler(svc, discard)

	rec := do(h.ListAudit, http.MethodGet, "/api/audit?order_hash=0xabc&limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xabc", svc.auditArg)
	assert.Equal(t, domain.ListOpts{Limit: 10, Offset: 5}, svc.opts)
	assert.Contains(t, rec.Body.String(), `"event":"order_signed"`)
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	}, "0xf39F", discard)
	rec := do(h.HealthCheck, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	h = NewHealthHandler(map[string]HealthCheck{
		"postgres": func(context.Context) error { return errors.New("conn refused") },
	}, "", discard)
	rec = do(h.HealthCheck, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "conn refused")
}
