package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

// AuditLister lists signing audit entries.
type AuditLister interface {
	ListAudit(ctx context.Context, orderHash string, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AuditHandler serves the signing audit log.
type AuditHandler struct {
	audit  AuditLister
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit AuditLister, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logHandler(logger, "audit")}
}

type auditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
}

// ListAudit returns audit entries, newest first.
// GET /api/audit?order_hash=0x...&limit=50&offset=0
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.ListAudit(r.Context(), r.URL.Query().Get("order_hash"), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, auditResponse{Entries: entries})
}
