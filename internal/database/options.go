package database

import (
	"time"

	"github.com/tgmkubi/restaurant-sst-api/pkg/config"
)

// Options controls how connections are established.
type Options struct {
	SecretName          string
	Global              config.PoolConfig
	Tenant              config.PoolConfig
	ConnectRetries      int
	RetryDelay          time.Duration
	ReadyAttempts       int
	ReadyInterval       time.Duration
	HealthCheckInterval time.Duration
}

// OptionsFromConfig maps the mongo configuration section.
func OptionsFromConfig(cfg config.MongoConfig) Options {
	return Options{
		SecretName:          cfg.SecretName,
		Global:              cfg.Global,
		Tenant:              cfg.Tenant,
		ConnectRetries:      cfg.ConnectRetries,
		RetryDelay:          cfg.RetryDelay,
		ReadyAttempts:       cfg.ReadyAttempts,
		ReadyInterval:       cfg.ReadyInterval,
		HealthCheckInterval: cfg.HealthCheckInterval,
	}
}

// DefaultOptions returns the built-in profiles and retry policy.
func DefaultOptions(secretName string) Options {
	return Options{
		SecretName:          secretName,
		Global:              config.DefaultGlobalPool(),
		Tenant:              config.DefaultTenantPool(),
		ConnectRetries:      2,
		RetryDelay:          time.Second,
		ReadyAttempts:       3,
		ReadyInterval:       500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Profile returns the pool profile used for the named database.
func (o Options) Profile(name Name) config.PoolConfig {
	if name.Scope() == ScopeGlobal {
		return o.Global
	}
	return o.Tenant
}

func (o Options) normalized() Options {
	if o.ConnectRetries < 0 {
		o.ConnectRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Millisecond
	}
	if o.ReadyAttempts < 1 {
		o.ReadyAttempts = 1
	}
	if o.ReadyInterval <= 0 {
		o.ReadyInterval = time.Millisecond
	}
	return o
}
