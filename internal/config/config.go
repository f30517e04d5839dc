// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Perf    PerfConfig    `mapstructure:"perf"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RequestTimeout bounds non-streaming handlers; the performance stream is exempt.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DB drivers understood by the service.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DBConfig controls access to the employee table.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PerfConfig tunes the repeated-search performance run.
type PerfConfig struct {
	DefaultQueries int           `mapstructure:"default_queries"`
	MaxQueries     int           `mapstructure:"max_queries"`
	Delay          time.Duration `mapstructure:"delay"`
	// RunTimeout caps a whole run; zero disables the cap.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// PubSubConfig holds metadata for run notifications. Notifications are
// disabled when TopicName is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EMPLOYEEDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindPlatformEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.table", "employees")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("perf.default_queries", 100)
	v.SetDefault("perf.max_queries", 10000)
	v.SetDefault("perf.delay", "50ms")
	v.SetDefault("perf.run_timeout", "0s")
	v.SetDefault("logging.development", true)
}

// bindPlatformEnv lets the conventional PORT and DATABASE_URL variables stand in
// for the prefixed keys.
func bindPlatformEnv(v *viper.Viper) error {
	if err := v.BindEnv("server.port", "EMPLOYEEDIR_SERVER_PORT", "PORT"); err != nil {
		return fmt.Errorf("bind server.port env: %w", err)
	}
	if err := v.BindEnv("db.dsn", "EMPLOYEEDIR_DB_DSN", "DATABASE_URL"); err != nil {
		return fmt.Errorf("bind db.dsn env: %w", err)
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn (or DATABASE_URL) is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("db.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.DB.Driver)
	}
	if c.DB.MinConns < 0 || c.DB.MaxConns < 0 {
		return fmt.Errorf("db.min_conns and db.max_conns must be >= 0")
	}
	if c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("db.min_conns must not exceed db.max_conns")
	}
	if c.Perf.MaxQueries <= 0 {
		return fmt.Errorf("perf.max_queries must be > 0")
	}
	if c.Perf.DefaultQueries <= 0 || c.Perf.DefaultQueries > c.Perf.MaxQueries {
		return fmt.Errorf("perf.default_queries must be between 1 and perf.max_queries")
	}
	if c.Perf.Delay < 0 {
		return fmt.Errorf("perf.delay must be >= 0")
	}
	if c.Perf.RunTimeout < 0 {
		return fmt.Errorf("perf.run_timeout must be >= 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
