package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gatewatch engine.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Bans     BansConfig     `mapstructure:"bans"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Events   EventsConfig   `mapstructure:"events"`
	Geo      GeoConfig      `mapstructure:"geo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds token validation settings. Token issuing is handled by an
// external auth service; the engine only validates.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StatsConfig sizes the aggregation store.
type StatsConfig struct {
	BucketCount  int           `mapstructure:"bucket_count"`
	BucketSize   time.Duration `mapstructure:"bucket_size"`
	RecentWindow time.Duration `mapstructure:"recent_window"`
	TopCountries int           `mapstructure:"top_countries"`
}

// BansConfig controls the ban registry and expiry reaper.
type BansConfig struct {
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	AuditSize     int           `mapstructure:"audit_size"`
}

// RulesConfig holds the automatic ban-rule policy. Dir may contain yaml rule
// files that extend or override the built-in default rule.
type RulesConfig struct {
	Dir         string        `mapstructure:"dir"`
	Threshold   int           `mapstructure:"threshold"`
	Window      time.Duration `mapstructure:"window"`
	MinSeverity int           `mapstructure:"min_severity"`
	BanTTL      time.Duration `mapstructure:"ban_ttl"`
}

// EventsConfig controls raw event retention for the query path.
type EventsConfig struct {
	MaxEvents     int           `mapstructure:"max_events"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// GeoConfig holds geo resolver settings.
type GeoConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RedisConfig holds Redis configuration for the geo cache.
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// NATSConfig holds NATS configuration for sensor intake and ban publishing.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// DatabaseConfig selects the event store backend.
type DatabaseConfig struct {
	Backend  string         `mapstructure:"backend"` // "memory" or "postgres"
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings for the event archive.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a pgx connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("stats.bucket_count", 24)
	v.SetDefault("stats.bucket_size", "1h")
	v.SetDefault("stats.recent_window", "1h")
	v.SetDefault("stats.top_countries", 10)

	v.SetDefault("bans.default_ttl", "24h")
	v.SetDefault("bans.sweep_interval", "60s")
	v.SetDefault("bans.audit_size", 1000)

	v.SetDefault("rules.dir", "")
	v.SetDefault("rules.threshold", 5)
	v.SetDefault("rules.window", "5m")
	v.SetDefault("rules.min_severity", 3)
	v.SetDefault("rules.ban_ttl", "24h")

	v.SetDefault("events.max_events", 100000)
	v.SetDefault("events.max_age", "24h")
	v.SetDefault("events.prune_interval", "5m")

	v.SetDefault("geo.enabled", true)
	v.SetDefault("geo.url", "http://ip-api.com/json")
	v.SetDefault("geo.timeout", "2s")
	v.SetDefault("geo.cache_ttl", "24h")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)

	v.SetDefault("database.backend", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "gatewatch")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "gatewatch")
	v.SetDefault("database.postgres.sslmode", "disable")

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config
	v.SetEnvPrefix("GATEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
