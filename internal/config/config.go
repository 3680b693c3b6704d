package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"
)

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

var tablePrefixPattern = regexp.MustCompile(`^[a-z0-9_]*$`)

type Config struct {
	Env      string `env:"ENV" env-default:"local"`
	Port     int    `env:"PORT" env-default:"8080"`
	LogLevel string `env:"LOG_LEVEL"`
	Store    StoreConfig
	Postgres PostgresConfig
	Session  SessionConfig
	Redis    RedisConfig
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" env-default:"postgres"`
	// TablePrefix selects the tenant table served by this process.
	TablePrefix    string   `env:"TABLE_PREFIX"`
	TenantPrefixes []string `env:"TENANT_PREFIXES" env-separator:","`
}

type PostgresConfig struct {
	Host            string        `env:"BLUEPRINT_DB_HOST" env-default:"localhost"`
	Port            int           `env:"BLUEPRINT_DB_PORT" env-default:"5432"`
	Username        string        `env:"BLUEPRINT_DB_USERNAME"`
	Password        string        `env:"BLUEPRINT_DB_PASSWORD"`
	Database        string        `env:"BLUEPRINT_DB_DATABASE"`
	Schema          string        `env:"BLUEPRINT_DB_SCHEMA"`
	SSLMode         string        `env:"BLUEPRINT_DB_SSL_MODE" env-default:"disable"`
	MaxIdleConns    int           `env:"BLUEPRINT_DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int           `env:"BLUEPRINT_DB_MAX_OPEN_CONNS" env-default:"100"`
	ConnMaxLifetime time.Duration `env:"BLUEPRINT_DB_CONN_MAX_LIFETIME" env-default:"1h"`
}

type SessionConfig struct {
	JWTSecret string        `env:"JWT_SECRET" env-required:"true"`
	JWTIssuer string        `env:"JWT_ISSUER" env-default:"todo-widget"`
	JWTTTL    time.Duration `env:"JWT_TTL" env-default:"24h"`
	CSRFTTL   time.Duration `env:"CSRF_TTL" env-default:"12h"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// Load reads the configuration from the process environment. A .env file in
// the working directory is loaded first.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvDev, EnvProd, EnvLocal:
	default:
		return fmt.Errorf("unknown env: %q", c.Env)
	}

	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	for _, prefix := range c.Store.Tenants() {
		if !tablePrefixPattern.MatchString(prefix) {
			return fmt.Errorf("invalid table prefix %q: only lowercase letters, digits and underscores are allowed", prefix)
		}
	}

	if c.Session.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.Env == EnvProd && len(c.Session.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes in prod")
	}
	if c.Session.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.Session.JWTTTL)
	}
	if c.Session.CSRFTTL <= 0 {
		return fmt.Errorf("CSRF_TTL must be positive, got %s", c.Session.CSRFTTL)
	}
	return nil
}

// Tenants returns every table prefix provisioning applies to. The served
// prefix comes first; blank and repeated entries are skipped.
func (s StoreConfig) Tenants() []string {
	tenants := []string{s.TablePrefix}
	seen := map[string]bool{s.TablePrefix: true}
	for _, p := range s.TenantPrefixes {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		tenants = append(tenants, p)
	}
	return tenants
}

// DSN builds the connection string in the key=value form gorm's postgres
// driver expects.
func (p PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		p.Host, p.Username, p.Password, p.Database, p.Port, p.SSLMode)
	if p.Schema != "" {
		dsn += " search_path=" + p.Schema
	}
	return dsn
}
