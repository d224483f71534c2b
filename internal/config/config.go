// Package config loads service settings from built-in defaults, an optional
// YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lastmile/internal/orders"
	"lastmile/internal/sim"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

type Config struct {
	Server     Server        `yaml:"server" json:"server"`
	Log        Log           `yaml:"log" json:"log"`
	RateLimit  RateLimit     `yaml:"rate_limit" json:"rateLimit"`
	Redis      Redis         `yaml:"redis" json:"-"`
	Database   Database      `yaml:"database" json:"-"`
	Webhook    Webhook       `yaml:"webhook" json:"-"`
	Playback   Playback      `yaml:"playback" json:"playback"`
	Simulation Simulation    `yaml:"simulation" json:"simulation"`
	Cities     []orders.City `yaml:"cities" json:"cities"`
}

type Server struct {
	Addr              string        `yaml:"addr" json:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdownTimeout"`
	AllowOrigins      []string      `yaml:"allow_origins" json:"allowOrigins"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // text or json
}

type RateLimit struct {
	RPS   float64 `yaml:"rps" json:"rps"` // 0 disables limiting
	Burst int     `yaml:"burst" json:"burst"`
}

type Redis struct {
	URL string `yaml:"url"`
}

type Database struct {
	URL string `yaml:"url"`
}

// Webhook forwards session events to an HTTP endpoint when URL is set.
type Webhook struct {
	URL         string        `yaml:"url"`
	Secret      string        `yaml:"secret"`
	Events      []string      `yaml:"events"`
	MaxAttempts int           `yaml:"max_attempts"`
	QueueSize   int           `yaml:"queue_size"`
	Interval    time.Duration `yaml:"interval"`
}

type Playback struct {
	TickInterval      time.Duration `yaml:"tick_interval" json:"tickInterval"`
	ProgressPerSecond float64       `yaml:"progress_per_second" json:"progressPerSecond"`
	SegmentResolution int           `yaml:"segment_resolution" json:"segmentResolution"`
	Speeds            []float64     `yaml:"speeds" json:"speeds"`
}

type Simulation struct {
	DefaultCity   string  `yaml:"default_city" json:"defaultCity"`
	DefaultOrders int     `yaml:"default_orders" json:"defaultOrders"`
	DefaultAgents int     `yaml:"default_agents" json:"defaultAgents"`
	MaxOrders     int     `yaml:"max_orders" json:"maxOrders"`
	MaxAgents     int     `yaml:"max_agents" json:"maxAgents"`
	MaxSessions   int     `yaml:"max_sessions" json:"maxSessions"`
	SpreadDeg     float64 `yaml:"spread_deg" json:"spreadDeg"`
	Seed          int64   `yaml:"seed" json:"seed"` // 0 seeds from the clock
}

// Default returns the built-in configuration. Playback advances 0.3 progress
// points every 40ms at speed 1.
func Default() Config {
	return Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log:       Log{Level: "info", Format: "text"},
		RateLimit: RateLimit{RPS: 50, Burst: 100},
		Webhook:   Webhook{MaxAttempts: 5, QueueSize: 256, Interval: time.Second},
		Playback: Playback{
			TickInterval:      40 * time.Millisecond,
			ProgressPerSecond: 7.5,
			SegmentResolution: 30,
			Speeds:            []float64{0.5, 1, 2, 4},
		},
		Simulation: Simulation{
			DefaultCity:   "bangalore",
			DefaultOrders: 15,
			DefaultAgents: 3,
			MaxOrders:     500,
			MaxAgents:     50,
			MaxSessions:   100,
			SpreadDeg:     orders.DefaultSpreadDeg,
		},
		Cities: orders.DefaultCities(),
	}
}

// Load reads .env (if present), then the YAML file at CONFIG_PATH or
// DefaultPath (optional unless CONFIG_PATH is set), then env overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	path := os.Getenv("CONFIG_PATH")
	required := path != ""
	if path == "" {
		path = DefaultPath
	}
	if err := cfg.loadFile(path, required); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return c.parse(b)
}

func (c *Config) parse(b []byte) error {
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := getenv("WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := getenv("WEBHOOK_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
	if v := getenv("ALLOW_ORIGINS"); v != "" {
		c.Server.AllowOrigins = strings.Split(v, ",")
	}
	if v := getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_RPS: %w", err)
		}
		c.RateLimit.RPS = f
	}
	if v := getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RATE_BURST: %w", err)
		}
		c.RateLimit.Burst = n
	}
	if v := getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: WEBHOOK_MAX_ATTEMPTS: %w", err)
		}
		c.Webhook.MaxAttempts = n
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" || c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server: addr and shutdown_timeout are required"))
	}
	p := c.Playback
	if p.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("playback.tick_interval must be > 0"))
	}
	if p.ProgressPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("playback.progress_per_second must be > 0"))
	}
	if p.SegmentResolution < 1 {
		errs = append(errs, fmt.Errorf("playback.segment_resolution must be >= 1"))
	}
	for _, s := range p.Speeds {
		if s <= 0 {
			errs = append(errs, fmt.Errorf("playback.speeds must be positive, got %v", s))
		}
	}
	s := c.Simulation
	if s.MaxAgents < 1 || s.MaxOrders < 1 {
		errs = append(errs, fmt.Errorf("simulation.max_agents and simulation.max_orders must be >= 1"))
	}
	if s.DefaultAgents < 1 || s.DefaultAgents > s.MaxAgents {
		errs = append(errs, fmt.Errorf("simulation.default_agents must be in [1, %d]", s.MaxAgents))
	}
	if s.DefaultOrders < 1 || s.DefaultOrders > s.MaxOrders {
		errs = append(errs, fmt.Errorf("simulation.default_orders must be in [1, %d]", s.MaxOrders))
	}
	if s.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("simulation.max_sessions must be >= 0"))
	}
	if c.RateLimit.RPS < 0 || (c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1) {
		errs = append(errs, fmt.Errorf("rate_limit: rps must be >= 0 and burst >= 1 when enabled"))
	}
	if c.Webhook.URL != "" && (c.Webhook.MaxAttempts < 1 || c.Webhook.QueueSize < 1 || c.Webhook.Interval <= 0) {
		errs = append(errs, fmt.Errorf("webhook: max_attempts, queue_size and interval must be positive"))
	}
	if len(c.Cities) == 0 {
		errs = append(errs, fmt.Errorf("cities must not be empty"))
	} else if cat, err := orders.NewCatalog(c.Cities); err != nil {
		errs = append(errs, fmt.Errorf("cities: %w", err))
	} else if _, err := cat.Lookup(s.DefaultCity); err != nil {
		errs = append(errs, fmt.Errorf("simulation.default_city: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SessionConfig derives the per-session settings.
func (c Config) SessionConfig() sim.Config {
	return sim.Config{
		Resolution:        c.Playback.SegmentResolution,
		TickInterval:      c.Playback.TickInterval,
		ProgressPerSecond: c.Playback.ProgressPerSecond,
		MaxAgents:         c.Simulation.MaxAgents,
		MaxOrders:         c.Simulation.MaxOrders,
	}
}
