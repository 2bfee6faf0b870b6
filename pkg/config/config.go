package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	Env             string        `env:"APP_ENV" envDefault:"development"`
	Domain          string        `env:"DOMAIN" envDefault:"qrlist.com"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// PoolConfig is one connection pool profile. Global and tenant pools are
// parsed from the same fields under different prefixes.
type PoolConfig struct {
	MaxPoolSize            uint64        `env:"MAX_POOL_SIZE"`
	MinPoolSize            uint64        `env:"MIN_POOL_SIZE"`
	MaxIdleTime            time.Duration `env:"MAX_IDLE_TIME"`
	ServerSelectionTimeout time.Duration `env:"SERVER_SELECTION_TIMEOUT"`
	SocketTimeout          time.Duration `env:"SOCKET_TIMEOUT"`
	ConnectTimeout         time.Duration `env:"CONNECT_TIMEOUT"`
}

// MongoConfig holds document database configuration
type MongoConfig struct {
	SecretName          string        `env:"MONGO_DB_SECRET_NAME"`
	AppName             string        `env:"MONGO_APP_NAME" envDefault:"restaurant-api"`
	Global              PoolConfig    `envPrefix:"MONGO_GLOBAL_"`
	Tenant              PoolConfig    `envPrefix:"MONGO_TENANT_"`
	ConnectRetries      int           `env:"MONGO_CONNECT_RETRIES" envDefault:"2"`
	RetryDelay          time.Duration `env:"MONGO_RETRY_DELAY" envDefault:"1s"`
	ReadyAttempts       int           `env:"MONGO_READY_ATTEMPTS" envDefault:"3"`
	ReadyInterval       time.Duration `env:"MONGO_READY_INTERVAL" envDefault:"500ms"`
	HealthCheckInterval time.Duration `env:"MONGO_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TenantConfig holds tenant resolution configuration. CacheTTL is the longest
// time another process may keep serving a company after it was deactivated.
type TenantConfig struct {
	CacheTTL        time.Duration `env:"TENANT_CACHE_TTL" envDefault:"10s"`
	CacheMaxEntries int64         `env:"TENANT_CACHE_MAX_ENTRIES" envDefault:"10000"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string `env:"JWT_SIGNING_KEY"`
	PublicKeyPEM    string `env:"JWT_PUBLIC_KEY"`
	Issuer          string `env:"JWT_ISSUER"`
	ExpirationHours int    `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`
}

// SecretsConfig selects and tunes the secret store backend
type SecretsConfig struct {
	Backend  string        `env:"SECRETS_BACKEND" envDefault:"aws"`
	Region   string        `env:"SERVICE_REGION"`
	CacheTTL time.Duration `env:"SECRETS_CACHE_TTL" envDefault:"5m"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string `env:"METRICS_PREFIX" envDefault:"restaurant"`
}

// Config holds all configuration
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"restaurant-api"`
	Server      ServerConfig
	Log         LogConfig
	Mongo       MongoConfig
	Tenant      TenantConfig
	JWT         JWTConfig
	Secrets     SecretsConfig
	Metrics     MetricsConfig
}

// DefaultGlobalPool is the pool profile of the shared database.
func DefaultGlobalPool() PoolConfig {
	return PoolConfig{
		MaxPoolSize:            10,
		MinPoolSize:            2,
		MaxIdleTime:            30 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		SocketTimeout:          20 * time.Second,
		ConnectTimeout:         15 * time.Second,
	}
}

// DefaultTenantPool is the pool profile of every tenant database. Tenants are
// numerous, so their pools are smaller and fail faster than the global one.
func DefaultTenantPool() PoolConfig {
	return PoolConfig{
		MaxPoolSize:            3,
		MinPoolSize:            1,
		MaxIdleTime:            20 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		SocketTimeout:          15 * time.Second,
		ConnectTimeout:         10 * time.Second,
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	cfg := &Config{
		Mongo: MongoConfig{
			Global: DefaultGlobalPool(),
			Tenant: DefaultTenantPool(),
		},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot check on its own
func (c *Config) Validate() error {
	for name, p := range map[string]PoolConfig{"global": c.Mongo.Global, "tenant": c.Mongo.Tenant} {
		if p.MaxPoolSize == 0 {
			return fmt.Errorf("%s pool: max pool size must be positive", name)
		}
		if p.MinPoolSize > p.MaxPoolSize {
			return fmt.Errorf("%s pool: min pool size %d exceeds max %d", name, p.MinPoolSize, p.MaxPoolSize)
		}
	}
	if c.Mongo.ConnectRetries < 0 {
		return fmt.Errorf("connect retries must not be negative")
	}
	if c.Mongo.RetryDelay <= 0 || c.Mongo.ReadyInterval <= 0 {
		return fmt.Errorf("retry delay and ready interval must be positive")
	}
	if c.Mongo.ReadyAttempts < 1 {
		return fmt.Errorf("ready attempts must be at least 1")
	}
	return nil
}

// LogFields returns the configuration as zap fields, without secrets
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("server_port", c.Server.Port),
		zap.String("mongo_secret", maskSecretName(c.Mongo.SecretName)),
		zap.Uint64("global_max_pool", c.Mongo.Global.MaxPoolSize),
		zap.Uint64("tenant_max_pool", c.Mongo.Tenant.MaxPoolSize),
		zap.String("secrets_backend", c.Secrets.Backend),
		zap.Bool("jwt_hmac", c.JWT.SigningKey != ""),
		zap.Bool("jwt_rsa", c.JWT.PublicKeyPEM != ""),
	}
}

func maskSecretName(name string) string {
	if len(name) <= 12 {
		return "***"
	}
	return "..." + name[len(name)-8:]
}
