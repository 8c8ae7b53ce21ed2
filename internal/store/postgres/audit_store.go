package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

// AuditStore implements domain.AuditStore on the signing_audit table.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends entry. Detail is stored as JSONB; ID and CreatedAt are
// assigned by the database.
func (s *AuditStore) Log(ctx context.Context, entry domain.AuditEntry) error {
	var detail []byte
	if entry.Detail != nil {
		var err error
		if detail, err = json.Marshal(entry.Detail); err != nil {
			return fmt.Errorf("postgres: marshal audit detail: %w", err)
		}
	}

	const query = `
		INSERT INTO signing_audit (event, order_hash, signer, primary_type, request_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query,
		entry.Event, strings.ToLower(entry.OrderHash), entry.Signer, entry.PrimaryType, entry.RequestID, detail)
	if err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", entry.Event, err)
	}
	return nil
}

// List returns entries newest first. An empty orderHash lists every order.
func (s *AuditStore) List(ctx context.Context, orderHash string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := auditListQuery(orderHash, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.CollectableRow) (domain.AuditEntry, error) {
	var (
		e      domain.AuditEntry
		detail []byte
	)
	if err := row.Scan(&e.ID, &e.Event, &e.OrderHash, &e.Signer, &e.PrimaryType, &e.RequestID, &detail, &e.CreatedAt); err != nil {
		return e, fmt.Errorf("scan: %w", err)
	}
	if detail != nil {
		if err := json.Unmarshal(detail, &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshal detail: %w", err)
		}
	}
	return e, nil
}

// auditListQuery builds the filtered, paginated SELECT for List.
func auditListQuery(orderHash string, opts domain.ListOpts) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString(`SELECT id, event, order_hash, signer, primary_type, request_id, detail, created_at FROM signing_audit WHERE 1=1`)
	if orderHash != "" {
		b.WriteString(" AND order_hash = " + arg(strings.ToLower(orderHash)))
	}
	if opts.Since != nil {
		b.WriteString(" AND created_at >= " + arg(*opts.Since))
	}
	if opts.Until != nil {
		b.WriteString(" AND created_at <= " + arg(*opts.Until))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + arg(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + arg(opts.Offset))
	}
	return b.String(), args
}

var _ domain.AuditStore = (*AuditStore)(nil)
