package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry records one signing event.
type AuditEntry struct {
	ID          int64          `json:"id"`
	Event       string         `json:"event"`
	OrderHash   string         `json:"orderHash"`
	Signer      string         `json:"signer"`
	PrimaryType string         `json:"primaryType"`
	RequestID   string         `json:"requestId,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// AuditStore persists signing events.
type AuditStore interface {
	Log(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, orderHash string, opts ListOpts) ([]AuditEntry, error)
}
