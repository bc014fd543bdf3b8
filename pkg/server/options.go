package server

import (
	"log/slog"

	"github.com/relves/fraledger/pkg/verification"
)

// DefaultMaxUploadSize bounds multipart document uploads.
const DefaultMaxUploadSize = 32 << 20

// Config holds server configuration.
type Config struct {
	Service       *verification.Service
	Validator     RequestValidator
	Logger        *slog.Logger
	MaxUploadSize int64
}

// Option configures the server.
type Option func(*Config)

// WithService sets the verification facade the handlers call.
func WithService(s *verification.Service) Option {
	return func(c *Config) {
		c.Service = s
	}
}

// WithValidator sets a request validator for mutating routes.
// If nil (default), no validation is performed.
func WithValidator(v RequestValidator) Option {
	return func(c *Config) {
		c.Validator = v
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMaxUploadSize sets the multipart upload limit in bytes.
func WithMaxUploadSize(n int64) Option {
	return func(c *Config) {
		c.MaxUploadSize = n
	}
}

func applyOptions(opts ...Option) *Config {
	cfg := &Config{MaxUploadSize: DefaultMaxUploadSize}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
