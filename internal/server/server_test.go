package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/server/handler"
	"github.com/alanyoungcy/limitorder/internal/server/middleware"
	"github.com/alanyoungcy/limitorder/internal/service"
)

type stubOrders struct{}

func (stubOrders) SignLimitOrder(context.Context, domain.LimitOrderParams) (domain.SignedOrder, error) {
	return domain.SignedOrder{Signature: "0xsig"}, nil
}

func (stubOrders) SignRFQOrder(context.Context, domain.RFQOrderParams) (domain.SignedOrder, error) {
	return domain.SignedOrder{}, nil
}

func (stubOrders) PrepareLimitOrder(context.Context, domain.LimitOrderParams) (domain.PreparedOrder, error) {
	return domain.PreparedOrder{}, nil
}

func (stubOrders) PrepareRFQOrder(context.Context, domain.RFQOrderParams) (domain.PreparedOrder, error) {
	return domain.PreparedOrder{}, nil
}

func (stubOrders) VerifySignature(context.Context, service.VerifyRequest) (service.VerifyResult, error) {
	return service.VerifyResult{}, nil
}

func (stubOrders) RecentOrders(context.Context, int) ([]domain.SignedOrder, error) {
	return nil, domain.ErrNotFound
}

type countingLimiter struct{ allowed int }

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	l.allowed--
	return l.allowed >= 0, nil
}

func newTestServer(cfg Config, limiter domain.RateLimiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, Handlers{
		Health: handler.NewHealthHandler(nil, "0xf39F", logger),
		Orders: handler.NewOrderHandler(stubOrders{}, logger),
	}, limiter, nil, logger).Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	h := newTestServer(Config{APIKeys: []string{"k1"}}, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestOrderRoutesRequireKey(t *testing.T) {
	h := newTestServer(Config{APIKeys: []string{"k1"}}, nil)
	body := `{"makerAmount":"1","takerAmount":"1"}`

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/orders/limit", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/limit", strings.NewReader(body))
	req.Header.Set("X-API-Key", "k1")
	rec = serve(h, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"signature":"0xsig"`)
}

func TestOptionalRoutes(t *testing.T) {
	h := newTestServer(Config{}, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/orders/recent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/orders/limit", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitApplied(t *testing.T) {
	h := newTestServer(Config{RateLimit: 1, RateWindow: time.Minute}, &countingLimiter{allowed: 1})

	first := serve(h, httptest.NewRequest(http.MethodPost, "/api/orders/verify", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, first.Code)

	second := serve(h, httptest.NewRequest(http.MethodPost, "/api/orders/verify", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
