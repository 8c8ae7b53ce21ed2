package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/audit?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "audit"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Equal(t, "postgres://u:p%40ss%2Fw@db:6543/audit?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, User: "u", Password: "p@ss/w", Database: "audit", SSLMode: "require"}))
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_signing_audit.sql", names[0])
	assert.IsNonDecreasing(t, names)
}

func TestAuditListQuery(t *testing.T) {
	q, args := auditListQuery("", domain.ListOpts{})
	assert.NotContains(t, q, "order_hash =")
	assert.NotContains(t, q, "LIMIT")
	assert.Empty(t, args)

	since := time.Unix(1_700_000_000, 0)
	q, args = auditListQuery("0xABCD", domain.ListOpts{Since: &since, Limit: 20, Offset: 40})
	assert.Contains(t, q, "order_hash = $1")
	assert.Contains(t, q, "created_at >= $2")
	assert.Contains(t, q, "LIMIT $3")
	assert.Contains(t, q, "OFFSET $4")
	assert.Equal(t, []any{"0xabcd", since, 20, 40}, args)
}
