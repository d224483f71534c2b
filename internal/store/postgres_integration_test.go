//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresLoadOrders(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx := t.Context()
	require.NoError(t, p.Ping(ctx))
	require.NoError(t, p.Migrate(ctx))

	_, err = p.db.ExecContext(ctx, `INSERT INTO seed_orders (id, city, lat, lng, name, items) VALUES
		('it-0', 'pune', 18.52, 73.85, 'Order #1', '["Masala Dosa"]'),
		('it-1', 'pune', 18.53, 73.86, 'Order #2', NULL)
		ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = p.db.Exec(`DELETE FROM seed_orders WHERE id LIKE 'it-%'`) })

	got, err := p.LoadOrders(ctx, "Pune", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "it-0", got[0].ID)
	assert.Equal(t, []string{"Masala Dosa"}, got[0].Details.Items)
	assert.Equal(t, 18.52, got[0].Location.Lat)

	_, err = p.LoadOrders(ctx, "atlantis", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}
