package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/service"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	SignLimitOrder(ctx context.Context, p domain.LimitOrderParams) (domain.SignedOrder, error)
	SignRFQOrder(ctx context.Context, p domain.RFQOrderParams) (domain.SignedOrder, error)
	PrepareLimitOrder(ctx context.Context, p domain.LimitOrderParams) (domain.PreparedOrder, error)
	PrepareRFQOrder(ctx context.Context, p domain.RFQOrderParams) (domain.PreparedOrder, error)
	VerifySignature(ctx context.Context, req service.VerifyRequest) (service.VerifyResult, error)
	RecentOrders(ctx context.Context, count int) ([]domain.SignedOrder, error)
}

// OrderHandler serves the order building and signing endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logHandler(logger, "order")}
}

// SignLimitOrder builds and signs a limit order.
// POST /api/orders/limit
func (h *OrderHandler) SignLimitOrder(w http.ResponseWriter, r *http.Request) {
	var p domain.LimitOrderParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	signed, err := h.orders.SignLimitOrder(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, signed)
}

// PrepareLimitOrder builds an unsigned limit order for an external wallet.
// POST /api/orders/limit/prepare
func (h *OrderHandler) PrepareLimitOrder(w http.ResponseWriter, r *http.Request) {
	var p domain.LimitOrderParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prepared, err := h.orders.PrepareLimitOrder(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prepared)
}

// SignRFQOrder builds and signs an RFQ order.
// POST /api/orders/rfq
func (h *OrderHandler) SignRFQOrder(w http.ResponseWriter, r *http.Request) {
	var p domain.RFQOrderParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	signed, err := h.orders.SignRFQOrder(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, signed)
}

// PrepareRFQOrder builds an unsigned RFQ order.
// POST /api/orders/rfq/prepare
func (h *OrderHandler) PrepareRFQOrder(w http.ResponseWriter, r *http.Request) {
	var p domain.RFQOrderParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prepared, err := h.orders.PrepareRFQOrder(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prepared)
}

// VerifySignature recovers the signer of a typed-data signature.
// POST /api/orders/verify
func (h *OrderHandler) VerifySignature(w http.ResponseWriter, r *http.Request) {
	var req service.VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.orders.VerifySignature(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// recentOrdersResponse wraps the recent orders response.
type recentOrdersResponse struct {
	Orders []domain.SignedOrder `json:"orders"`
}

// RecentOrders returns the latest signed orders from the event stream.
// GET /api/orders/recent?count=20
func (h *OrderHandler) RecentOrders(w http.ResponseWriter, r *http.Request) {
	count := min(queryInt(r.URL.Query().Get("count"), 20, 1), 500)
	orders, err := h.orders.RecentOrders(r.Context(), count)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []domain.SignedOrder{}
	}
	writeJSON(w, http.StatusOK, recentOrdersResponse{Orders: orders})
}
