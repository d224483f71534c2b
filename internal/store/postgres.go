package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lastmile/internal/model"
)

// Schema is the table read by Postgres.LoadOrders. The service never writes
// to it; it is applied by operators or tests that seed orders.
const Schema = `
CREATE TABLE IF NOT EXISTS seed_orders (
    id          text PRIMARY KEY,
    city        text NOT NULL,
    lat         double precision NOT NULL,
    lng         double precision NOT NULL,
    name        text NOT NULL DEFAULT '',
    customer    text NOT NULL DEFAULT '',
    address     text NOT NULL DEFAULT '',
    items       jsonb,
    ordered_at  timestamptz
);
CREATE INDEX IF NOT EXISTS seed_orders_city_idx ON seed_orders (city, id);
`

// Postgres is a read-only order source backed by the seed_orders table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies Schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

// LoadOrders returns up to limit orders seeded for city, ordered by id.
func (p *Postgres) LoadOrders(ctx context.Context, city string, limit int) ([]model.Order, error) {
	if limit < 1 {
		return nil, fmt.Errorf("load orders: limit %d: %w", limit, model.ErrInvalidArgument)
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, lat, lng, name, customer, address, items, ordered_at FROM seed_orders WHERE city=$1 ORDER BY id LIMIT $2`,
		strings.ToLower(city), limit)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	defer rows.Close()

	out := []model.Order{}
	for rows.Next() {
		var (
			o     model.Order
			items []byte
			at    sql.NullTime
		)
		if err := rows.Scan(&o.ID, &o.Location.Lat, &o.Location.Lng, &o.Details.Name, &o.Details.Customer, &o.Details.Address, &items, &at); err != nil {
			return nil, fmt.Errorf("load orders: scan: %w", err)
		}
		if o.Details.Items, err = decodeItems(items); err != nil {
			return nil, fmt.Errorf("load orders: order %q: %w", o.ID, err)
		}
		if at.Valid {
			o.Details.OrderedAt = at.Time.UTC()
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("load orders: city %q: %w", city, ErrNotFound)
	}
	return out, nil
}

// decodeItems parses the items column, a JSON array of strings or NULL.
func decodeItems(b []byte) ([]string, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	return items, nil
}
