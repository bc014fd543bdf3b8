// Package config holds the service configuration: YAML file, then FRALEDGER_*
// environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relves/fraledger/internal/storage"
	"github.com/relves/fraledger/pkg/hashing"
	"github.com/relves/fraledger/pkg/ledger"
)

// Cache drivers.
const (
	CacheLRU   = "lru"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Cache   CacheConfig   `yaml:"cache"`
	Archive ArchiveConfig `yaml:"archive"`
}

// ServerConfig is the HTTP listener. An empty AllowedAPIKeys disables the
// API-key check on mutating routes.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedAPIKeys []string `yaml:"allowed_api_keys"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// StorageConfig selects the persistence driver. Path is used by sqlite, DSN by
// postgres and mongo, Database by mongo.
type StorageConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
}

// LedgerConfig selects the ledger backend and batching policy.
type LedgerConfig struct {
	Backend       string        `yaml:"backend"`   // chain or stub
	Algorithm     string        `yaml:"algorithm"` // sha256, sha3-256, blake3
	Origin        string        `yaml:"origin"`    // checkpoint origin line
	BatchSize     int           `yaml:"batch_size"`
	BatchInterval time.Duration `yaml:"batch_interval"`
}

type CacheConfig struct {
	Driver    string        `yaml:"driver"`
	Size      int           `yaml:"size"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
}

type ArchiveConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxBytes int  `yaml:"max_bytes"`
}

// Default returns a configuration that runs without any external service.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			MaxUploadBytes: 32 << 20,
		},
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			Driver:   storage.DriverSQLite,
			Path:     "./data",
			Database: "fraledger",
		},
		Ledger: LedgerConfig{
			Backend:   ledger.BackendChain,
			Algorithm: string(hashing.SHA256),
			Origin:    "fraledger",
			BatchSize: 1,
		},
		Cache: CacheConfig{
			Driver: CacheLRU,
			Size:   1024,
			TTL:    10 * time.Minute,
		},
		Archive: ArchiveConfig{Enabled: true},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch c.Storage.Driver {
	case storage.DriverMemory:
	case storage.DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case storage.DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	case storage.DriverMongo:
		if c.Storage.DSN == "" || c.Storage.Database == "" {
			errs = append(errs, errors.New("storage.dsn and storage.database are required for mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	switch c.Ledger.Backend {
	case ledger.BackendChain, ledger.BackendStub:
	default:
		errs = append(errs, fmt.Errorf("ledger.backend: unknown backend %q", c.Ledger.Backend))
	}
	if _, err := hashing.NewEngine(hashing.Algorithm(c.Ledger.Algorithm)); err != nil {
		errs = append(errs, fmt.Errorf("ledger.algorithm: %w", err))
	}
	if c.Ledger.BatchSize < 1 {
		errs = append(errs, errors.New("ledger.batch_size must be at least 1"))
	}
	if c.Ledger.BatchInterval < 0 {
		errs = append(errs, errors.New("ledger.batch_interval must not be negative"))
	}

	switch c.Cache.Driver {
	case CacheLRU, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver))
	}

	return errors.Join(errs...)
}

// SlogLevel returns the parsed log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
