// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	BackendSupabase = "supabase"
	BackendMemory   = "memory"

	RPCViaREST     = "rest"
	RPCViaPostgres = "postgres"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SupabaseConfig struct {
	URL     string        `yaml:"url"`
	AnonKey string        `yaml:"anon_key"`
	RPC     string        `yaml:"rpc"` // rest | postgres
	Timeout time.Duration `yaml:"timeout"`
}

type LoyaltyConfig struct {
	WelcomeBonus      int64         `yaml:"welcome_bonus"`
	DefaultTierID     int           `yaml:"default_tier_id"`
	BonusRefreshDelay time.Duration `yaml:"bonus_refresh_delay"`
	VoucherTTL        time.Duration `yaml:"voucher_ttl"`
	HistoryTTL        time.Duration `yaml:"history_ttl"`
}

type SessionConfig struct {
	StorePath       string        `yaml:"store_path"`
	EncryptionKey   string        `yaml:"encryption_key"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RefreshLeeway   time.Duration `yaml:"refresh_leeway"`
}

// StaffConfig signs the bearer tokens accepted by counter-staff endpoints.
// An empty secret leaves those endpoints open.
type StaffConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type LocaleConfig struct {
	Default string `yaml:"default"`
}

type Config struct {
	Backend  string         `yaml:"backend"` // supabase | memory
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Loyalty  LoyaltyConfig  `yaml:"loyalty"`
	Session  SessionConfig  `yaml:"session"`
	Locale   LocaleConfig   `yaml:"locale"`
	Staff    StaffConfig    `yaml:"staff"`

	Runtime RuntimeConfig `yaml:"-"`
}

// envOverrides are secrets and deployment knobs read from LOYALTY_* variables.
type envOverrides struct {
	Backend         string `envconfig:"BACKEND"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	RedisURL        string `envconfig:"REDIS_URL"`
	SupabaseURL     string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey string `envconfig:"SUPABASE_ANON_KEY"`
	SessionKey      string `envconfig:"SESSION_KEY"`
	HTTPAddr        string `envconfig:"HTTP_ADDR"`
	StaffSecret     string `envconfig:"STAFF_SECRET"`
}

// LoadConfig reads the YAML file at path (optional when empty), applies
// LOYALTY_* environment overrides, fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("loyalty", &env); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	env.apply(&cfg)

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (e envOverrides) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Backend, e.Backend)
	set(&cfg.Database.URL, e.DatabaseURL)
	set(&cfg.Redis.URL, e.RedisURL)
	set(&cfg.Supabase.URL, e.SupabaseURL)
	set(&cfg.Supabase.AnonKey, e.SupabaseAnonKey)
	set(&cfg.Session.EncryptionKey, e.SessionKey)
	set(&cfg.HTTP.Addr, e.HTTPAddr)
	set(&cfg.Staff.Secret, e.StaffSecret)
}

func applyDefaults(cfg *Config) {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = BackendSupabase
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 5*time.Minute)
	if cfg.Supabase.RPC == "" {
		cfg.Supabase.RPC = RPCViaREST
	}
	cfg.Supabase.Timeout = normalizeTTL(cfg.Supabase.Timeout, 15*time.Second)
	if cfg.Loyalty.WelcomeBonus == 0 {
		cfg.Loyalty.WelcomeBonus = 100
	}
	if cfg.Loyalty.DefaultTierID <= 0 {
		cfg.Loyalty.DefaultTierID = 1
	}
	cfg.Loyalty.BonusRefreshDelay = normalizeTTL(cfg.Loyalty.BonusRefreshDelay, time.Second)
	cfg.Loyalty.VoucherTTL = normalizeTTL(cfg.Loyalty.VoucherTTL, 10*time.Minute)
	cfg.Loyalty.HistoryTTL = normalizeTTL(cfg.Loyalty.HistoryTTL, 5*time.Minute)
	cfg.Session.RefreshInterval = normalizeTTL(cfg.Session.RefreshInterval, 30*time.Second)
	cfg.Session.RefreshLeeway = normalizeTTL(cfg.Session.RefreshLeeway, 2*time.Minute)
	cfg.Staff.TokenTTL = normalizeTTL(cfg.Staff.TokenTTL, 12*time.Hour)
	if cfg.Locale.Default == "" {
		cfg.Locale.Default = "en"
	}
}

// Validate checks the settings the selected backend cannot run without.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSupabase:
		if c.Supabase.URL == "" {
			return errors.New("supabase.url is required")
		}
		if c.Supabase.AnonKey == "" {
			return errors.New("supabase.anon_key is required")
		}
		if c.Database.URL == "" {
			return errors.New("database.url is required")
		}
		if c.Supabase.RPC != RPCViaREST && c.Supabase.RPC != RPCViaPostgres {
			return fmt.Errorf("supabase.rpc must be %q or %q", RPCViaREST, RPCViaPostgres)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if k := len(c.Session.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("session.encryption_key must be 16, 24, or 32 bytes; got %d", k)
	}
	if s := len(c.Staff.Secret); s != 0 && s < 32 {
		return fmt.Errorf("staff.secret must be at least 32 bytes; got %d", s)
	}
	if c.Loyalty.WelcomeBonus < 0 {
		return errors.New("loyalty.welcome_bonus must not be negative")
	}
	return nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
