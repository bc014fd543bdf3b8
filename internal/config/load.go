package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path over Default() and applies environment
// overrides. An empty path skips the file. The result is not validated.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config unmarshal: %w", err)
		}
	}
	if err := applyEnvOverrides(c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadEnvFile reads KEY=VALUE lines from path into the process environment.
// Blank lines and # comments are skipped; existing variables are kept unless
// override is set. A missing file is not an error.
func LoadEnvFile(path string, override bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		val = strings.Trim(strings.TrimSpace(val), `"`)
		if override || os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
	return sc.Err()
}

// applyEnvOverrides applies FRALEDGER_* variables. PORT is honoured for
// container platforms that only set that.
func applyEnvOverrides(c *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	if v := os.Getenv("PORT"); v != "" {
		c.Server.ListenAddr = ":" + v
	}
	str("FRALEDGER_LISTEN_ADDR", &c.Server.ListenAddr)
	if v := os.Getenv("FRALEDGER_API_KEYS"); v != "" {
		c.Server.AllowedAPIKeys = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Server.AllowedAPIKeys = append(c.Server.AllowedAPIKeys, k)
			}
		}
	}
	str("FRALEDGER_LOG_LEVEL", &c.Log.Level)

	str("FRALEDGER_STORAGE_DRIVER", &c.Storage.Driver)
	str("FRALEDGER_DATA_PATH", &c.Storage.Path)
	str("FRALEDGER_STORAGE_DSN", &c.Storage.DSN)
	str("FRALEDGER_STORAGE_DATABASE", &c.Storage.Database)

	str("FRALEDGER_LEDGER_BACKEND", &c.Ledger.Backend)
	str("FRALEDGER_HASH_ALGORITHM", &c.Ledger.Algorithm)
	str("FRALEDGER_ORIGIN", &c.Ledger.Origin)
	if err := integer("FRALEDGER_BATCH_SIZE", &c.Ledger.BatchSize); err != nil {
		return err
	}
	if err := duration("FRALEDGER_BATCH_INTERVAL", &c.Ledger.BatchInterval); err != nil {
		return err
	}

	str("FRALEDGER_CACHE_DRIVER", &c.Cache.Driver)
	if err := integer("FRALEDGER_CACHE_SIZE", &c.Cache.Size); err != nil {
		return err
	}
	if err := duration("FRALEDGER_CACHE_TTL", &c.Cache.TTL); err != nil {
		return err
	}
	str("FRALEDGER_REDIS_ADDR", &c.Cache.RedisAddr)
	if err := integer("FRALEDGER_REDIS_DB", &c.Cache.RedisDB); err != nil {
		return err
	}

	if v := os.Getenv("FRALEDGER_ARCHIVE_ENABLED"); v != "" {
		c.Archive.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	return nil
}
