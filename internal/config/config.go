package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"reagentbank.io/internal/ledger"
)

// Config is read once at startup and passed by value from then on.
type Config struct {
	PageSize     int           `yaml:"page_size"`
	AccountWide  bool          `yaml:"account_wide"`
	DBPath       string        `yaml:"db_path"`
	CatalogPath  string        `yaml:"catalog_path"`
	AuditDir     string        `yaml:"audit_dir"`
	NavResumeTTL time.Duration `yaml:"nav_resume_ttl"`

	RateLimits   RateLimits        `yaml:"rate_limits"`
	Inventory    InventorySpec     `yaml:"inventory"`
	StarterItems map[uint32]uint32 `yaml:"starter_items,omitempty"`
	Tracing      Tracing           `yaml:"tracing"`
	Events       Events            `yaml:"events"`
	Log          Log               `yaml:"log"`
}

type RateLimits struct {
	SelectsPerSec float64 `yaml:"selects_per_sec"`
	Burst         int     `yaml:"burst"`
}

type InventorySpec struct {
	BackpackSlots int   `yaml:"backpack_slots"`
	BagSlots      []int `yaml:"bag_slots"`
}

type Tracing struct {
	// Endpoint is an OTLP/HTTP host:port; empty disables export.
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	ServiceName string            `yaml:"service_name"`
}

type Events struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
}

func (e Events) Enabled() bool { return len(e.Brokers) > 0 }

type Log struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config.yaml: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		PageSize:     10,
		DBPath:       "data/reagentbank.sqlite",
		CatalogPath:  "configs/items.json",
		AuditDir:     "data/audit",
		NavResumeTTL: 5 * time.Minute,
		RateLimits:   RateLimits{SelectsPerSec: 10, Burst: 20},
		Inventory:    InventorySpec{BackpackSlots: 16, BagSlots: []int{16, 16, 16, 16}},
		Tracing:      Tracing{ServiceName: "reagentbank"},
		Events:       Events{Topic: "reagentbank.ledger"},
		Log:          Log{Level: "info"},
	}
}

// Normalize trims strings and fills zero values that have a sane default.
func (c *Config) Normalize() {
	d := Defaults()
	c.DBPath = strings.TrimSpace(c.DBPath)
	c.CatalogPath = strings.TrimSpace(c.CatalogPath)
	c.AuditDir = strings.TrimSpace(c.AuditDir)
	if c.PageSize == 0 {
		c.PageSize = d.PageSize
	}
	if c.NavResumeTTL == 0 {
		c.NavResumeTTL = d.NavResumeTTL
	}
	if c.RateLimits.SelectsPerSec == 0 {
		c.RateLimits.SelectsPerSec = d.RateLimits.SelectsPerSec
	}
	if c.RateLimits.Burst == 0 {
		c.RateLimits.Burst = d.RateLimits.Burst
	}
	if c.Inventory.BackpackSlots == 0 {
		c.Inventory.BackpackSlots = d.Inventory.BackpackSlots
	}
	c.Tracing.Endpoint = strings.TrimSpace(c.Tracing.Endpoint)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
	brokers := c.Events.Brokers[:0]
	for _, b := range c.Events.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Events.Brokers = brokers
	if c.Events.Topic == "" {
		c.Events.Topic = d.Events.Topic
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

func (c Config) Validate() error {
	if c.PageSize < 1 || c.PageSize > 50 {
		return fmt.Errorf("page_size must be in [1,50], got %d", c.PageSize)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path is required")
	}
	if c.NavResumeTTL < 0 {
		return fmt.Errorf("nav_resume_ttl must be >= 0")
	}
	if c.RateLimits.SelectsPerSec < 0 || c.RateLimits.Burst < 1 {
		return fmt.Errorf("rate_limits: selects_per_sec must be >= 0 and burst >= 1")
	}
	slots := c.Inventory.BackpackSlots
	if slots < 1 || slots > 255 {
		return fmt.Errorf("inventory.backpack_slots must be in [1,255], got %d", slots)
	}
	if len(c.Inventory.BagSlots) > 254 {
		return fmt.Errorf("inventory.bag_slots: at most 254 bags")
	}
	for i, n := range c.Inventory.BagSlots {
		if n < 1 || n > 255 {
			return fmt.Errorf("inventory.bag_slots[%d] must be in [1,255], got %d", i, n)
		}
	}
	for id, n := range c.StarterItems {
		if id == 0 || n == 0 {
			return fmt.Errorf("starter_items: item and count must be non-zero")
		}
	}
	if c.Events.Enabled() && strings.TrimSpace(c.Events.Topic) == "" {
		return fmt.Errorf("events.topic is required when brokers are set")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

// Mode is the ledger addressing mode selected by account_wide.
func (c Config) Mode() ledger.Mode {
	if c.AccountWide {
		return ledger.ModeShared
	}
	return ledger.ModeIndividual
}
