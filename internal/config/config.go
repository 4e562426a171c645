package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lazypower/nudge/internal/gate"
	"github.com/lazypower/nudge/internal/logging"
)

// Config holds all nudge configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Session  SessionConfig  `toml:"session"`
	Decision DecisionConfig `toml:"decision"`
	Delivery DeliveryConfig `toml:"delivery"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Bind      string  `toml:"bind"`
	Port      int     `toml:"port"`
	RateLimit float64 `toml:"rate_limit"` // events per second per session, 0 disables
	RateBurst int     `toml:"rate_burst"`
}

type DatabaseConfig struct {
	Path     string `toml:"path"` // empty resolves to store.DefaultDBPath()
	Disabled bool   `toml:"disabled"`
	// Retention is how long ended sessions stay in the journal; 0 keeps them.
	Retention time.Duration `toml:"retention"`
}

type SessionConfig struct {
	Backend       string        `toml:"backend"` // "memory" or "redis"
	Size          int           `toml:"size"`
	RedisURL      string        `toml:"redis_url"`
	TTL           time.Duration `toml:"ttl"`
	IdleTimeout   time.Duration `toml:"idle_timeout"`
	SweepInterval time.Duration `toml:"sweep_interval"`
}

// DecisionConfig is the only section applied on hot reload.
type DecisionConfig struct {
	Policy        string        `toml:"policy"` // "soft" or "threshold"
	Seed          uint64        `toml:"seed"`   // 0 seeds from the clock
	DismissWindow time.Duration `toml:"dismiss_window"`
}

type DeliveryConfig struct {
	Kind           string        `toml:"kind"` // "none", "log", "webhook", "kafka"
	WebhookURL     string        `toml:"webhook_url"`
	WebhookTimeout time.Duration `toml:"webhook_timeout"`
	KafkaBrokers   []string      `toml:"kafka_brokers"`
	KafkaTopic     string        `toml:"kafka_topic"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// Backends and delivery kinds.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DeliveryNone    = "none"
	DeliveryLog     = "log"
	DeliveryWebhook = "webhook"
	DeliveryKafka   = "kafka"
)

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:      "127.0.0.1",
			Port:      37778,
			RateLimit: 20,
			RateBurst: 40,
		},
		Database: DatabaseConfig{
			Retention: 30 * 24 * time.Hour,
		},
		Session: SessionConfig{
			Backend:       BackendMemory,
			Size:          10000,
			TTL:           30 * time.Minute,
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Decision: DecisionConfig{
			Policy:        gate.PolicySoft,
			DismissWindow: 10 * time.Minute,
		},
		Delivery: DeliveryConfig{
			Kind:           DeliveryLog,
			WebhookTimeout: 5 * time.Second,
			KafkaTopic:     "nudge.interventions",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// DefaultPath returns $NUDGE_CONFIG or ~/.nudge/config.toml.
func DefaultPath() string {
	if p := os.Getenv("NUDGE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nudge", "config.toml")
}

// Load reads path over the defaults, applies NUDGE_* environment overrides
// and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"NUDGE_BIND":            &cfg.Server.Bind,
		"NUDGE_DB_PATH":         &cfg.Database.Path,
		"NUDGE_SESSION_BACKEND": &cfg.Session.Backend,
		"NUDGE_REDIS_URL":       &cfg.Session.RedisURL,
		"NUDGE_POLICY":          &cfg.Decision.Policy,
		"NUDGE_DELIVERY":        &cfg.Delivery.Kind,
		"NUDGE_WEBHOOK_URL":     &cfg.Delivery.WebhookURL,
		"NUDGE_KAFKA_TOPIC":     &cfg.Delivery.KafkaTopic,
		"NUDGE_LOG_LEVEL":       &cfg.Log.Level,
		"NUDGE_LOG_FORMAT":      &cfg.Log.Format,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("NUDGE_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NUDGE_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := os.LookupEnv("NUDGE_SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NUDGE_SEED: %w", err)
		}
		cfg.Decision.Seed = seed
	}
	if v, ok := os.LookupEnv("NUDGE_KAFKA_BROKERS"); ok {
		cfg.Delivery.KafkaBrokers = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if c.Database.Retention < 0 {
		return errors.New("database.retention must not be negative")
	}
	switch c.Session.Backend {
	case BackendMemory:
		if c.Session.Size <= 0 {
			return errors.New("session.size must be positive")
		}
	case BackendRedis:
		if c.Session.RedisURL == "" {
			return errors.New("session.redis_url required for redis backend")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if _, err := gate.PolicyByName(c.Decision.Policy); err != nil {
		return err
	}
	if c.Decision.DismissWindow < 0 {
		return errors.New("decision.dismiss_window must not be negative")
	}
	switch c.Delivery.Kind {
	case DeliveryNone, DeliveryLog:
	case DeliveryWebhook:
		if c.Delivery.WebhookURL == "" {
			return errors.New("delivery.webhook_url required for webhook delivery")
		}
	case DeliveryKafka:
		if len(c.Delivery.KafkaBrokers) == 0 {
			return errors.New("delivery.kafka_brokers required for kafka delivery")
		}
	default:
		return fmt.Errorf("unknown delivery.kind %q", c.Delivery.Kind)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}
