package orders

import (
	"fmt"
	"sort"
	"strings"

	"lastmile/internal/geo"
	"lastmile/internal/model"
)

// City is a preset simulation area. The hub sits at Center.
type City struct {
	Key    string         `yaml:"key" json:"key"`
	Name   string         `yaml:"name" json:"name"`
	Center geo.Coordinate `yaml:"center" json:"center"`
	Areas  []string       `yaml:"areas" json:"areas"`
}

// DefaultCities returns the built-in presets.
func DefaultCities() []City {
	return []City{
		{
			Key: "bangalore", Name: "Bangalore",
			Center: geo.Coordinate{Lat: 12.9716, Lng: 77.5946},
			Areas:  []string{"Indiranagar", "Koramangala", "HSR Layout", "Whitefield", "Jayanagar"},
		},
		{
			Key: "mumbai", Name: "Mumbai",
			Center: geo.Coordinate{Lat: 19.0760, Lng: 72.8777},
			Areas:  []string{"Bandra", "Andheri", "Juhu", "Worli", "Powai"},
		},
		{
			Key: "delhi", Name: "Delhi",
			Center: geo.Coordinate{Lat: 28.6139, Lng: 77.2090},
			Areas:  []string{"Connaught Place", "Hauz Khas", "Saket", "Lajpat Nagar", "Dwarka"},
		},
		{
			Key: "hyderabad", Name: "Hyderabad",
			Center: geo.Coordinate{Lat: 17.3850, Lng: 78.4867},
			Areas:  []string{"Banjara Hills", "Jubilee Hills", "Gachibowli", "Hitech City", "Secunderabad"},
		},
		{
			Key: "chennai", Name: "Chennai",
			Center: geo.Coordinate{Lat: 13.0827, Lng: 80.2707},
			Areas:  []string{"T Nagar", "Adyar", "Nungambakkam", "Besant Nagar", "Anna Nagar"},
		},
	}
}

// Catalog indexes cities by key.
type Catalog struct {
	byKey map[string]City
}

// NewCatalog builds a catalog. Keys are case-insensitive and must be unique.
func NewCatalog(cities []City) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]City, len(cities))}
	for _, city := range cities {
		k := strings.ToLower(strings.TrimSpace(city.Key))
		if k == "" {
			return nil, fmt.Errorf("city without key: %w", model.ErrInvalidArgument)
		}
		if _, dup := c.byKey[k]; dup {
			return nil, fmt.Errorf("duplicate city %q: %w", k, model.ErrInvalidArgument)
		}
		if !city.Center.Valid() {
			return nil, fmt.Errorf("city %q center: %w", k, model.ErrInvalidArgument)
		}
		city.Key = k
		if city.Name == "" {
			city.Name = strings.ToUpper(k[:1]) + k[1:]
		}
		c.byKey[k] = city
	}
	return c, nil
}

// Lookup returns the city for key.
func (c *Catalog) Lookup(key string) (City, error) {
	city, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return City{}, fmt.Errorf("unknown city %q: %w", key, model.ErrInvalidArgument)
	}
	return city, nil
}

// Hub returns the hub of the city.
func (c *Catalog) Hub(key string) (model.Hub, error) {
	city, err := c.Lookup(key)
	if err != nil {
		return model.Hub{}, err
	}
	return model.NewHub(city.Center), nil
}

// List returns all cities sorted by key.
func (c *Catalog) List() []City {
	out := make([]City, 0, len(c.byKey))
	for _, city := range c.byKey {
		out = append(out, city)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
