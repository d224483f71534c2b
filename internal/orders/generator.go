// Package orders produces delivery orders for a city, either synthesised
// with faker or loaded from an external source.
package orders

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jaswdr/faker"

	"lastmile/internal/geo"
	"lastmile/internal/model"
)

// Source loads up to limit orders for a city.
type Source interface {
	LoadOrders(ctx context.Context, city string, limit int) ([]model.Order, error)
}

// DefaultSpreadDeg is the maximum offset of a generated order from the city
// centre, roughly 5 km.
const DefaultSpreadDeg = 0.045

var (
	firstNames   = []string{"John", "Emma", "Raj", "Priya", "Amit", "Sara", "Michael", "Sophia", "Arjun", "Zara"}
	lastNames    = []string{"Smith", "Patel", "Kumar", "Singh", "Sharma", "Johnson", "Williams", "Brown", "Gupta", "Khan"}
	houseNumbers = []string{"12", "45", "78A", "23B", "56", "89C", "34", "67D", "90"}
	streets      = []string{"Main Street", "Park Avenue", "Lake View Road", "Green Lane", "Tech Park Road", "Hill Street"}
	menu         = []string{
		"Butter Chicken with Naan", "Veg Biryani", "Paneer Tikka", "Masala Dosa",
		"Pizza Margherita", "Chicken Burger", "Hakka Noodles", "Caesar Salad",
		"Chocolate Brownie", "Ice Cream Sundae", "Mango Lassi", "Cold Coffee",
	}
)

// Generator synthesises orders scattered around a city centre.
type Generator struct {
	catalog *Catalog
	spread  float64
	now     func() time.Time

	mu   sync.Mutex
	fake faker.Faker
	rng  *rand.Rand
}

// NewGenerator returns a generator seeded with seed. spread <= 0 selects
// DefaultSpreadDeg.
func NewGenerator(catalog *Catalog, seed int64, spread float64) *Generator {
	if spread <= 0 {
		spread = DefaultSpreadDeg
	}
	src := rand.NewSource(seed)
	return &Generator{
		catalog: catalog,
		spread:  spread,
		now:     time.Now,
		fake:    faker.NewWithSeed(src),
		rng:     rand.New(src),
	}
}

// LoadOrders implements Source.
func (g *Generator) LoadOrders(ctx context.Context, city string, limit int) ([]model.Order, error) {
	if limit < 1 {
		return nil, fmt.Errorf("generate orders: count %d: %w", limit, model.ErrInvalidArgument)
	}
	c, err := g.catalog.Lookup(city)
	if err != nil {
		return nil, fmt.Errorf("generate orders: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	out := make([]model.Order, 0, limit)
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, g.order(c, i, now))
	}
	return out, nil
}

func (g *Generator) order(c City, i int, now time.Time) model.Order {
	loc := geo.Coordinate{
		Lat: c.Center.Lat + (g.rng.Float64()-0.5)*2*g.spread,
		Lng: c.Center.Lng + (g.rng.Float64()-0.5)*2*g.spread,
	}
	area := c.Name
	if len(c.Areas) > 0 {
		area = g.fake.RandomStringElement(c.Areas)
	}
	items := make([]string, g.fake.IntBetween(1, 3))
	for j := range items {
		items[j] = g.fake.RandomStringElement(menu)
	}
	return model.Order{
		ID:       fmt.Sprintf("loc-%d", i),
		Location: loc,
		Details: model.OrderDetails{
			Name:     fmt.Sprintf("Order #%d", i+1),
			Customer: g.fake.RandomStringElement(firstNames) + " " + g.fake.RandomStringElement(lastNames),
			Address: fmt.Sprintf("%s, %s, %s, %s",
				g.fake.RandomStringElement(houseNumbers),
				g.fake.RandomStringElement(streets),
				area, c.Name),
			Items:     items,
			OrderedAt: now.Add(-time.Duration(g.fake.IntBetween(0, 59)) * time.Minute).UTC(),
		},
	}
}
