// Package config resolves pipeline configuration from the environment.
// Validation is fail-fast: a missing required variable is reported before
// any network attempt is made.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

// Environment variable names for the warehouse connection.
const (
	EnvHost     = "POSTGRES_HOST"
	EnvDatabase = "POSTGRES_DB"
	EnvUser     = "POSTGRES_USER"
	EnvPassword = "POSTGRES_PASSWORD"
	EnvPort     = "POSTGRES_PORT"

	EnvPoolMin        = "DB_POOL_MIN"
	EnvPoolMax        = "DB_POOL_MAX"
	EnvConnectTimeout = "DB_CONNECT_TIMEOUT"
	EnvDataDir        = "BRONZE_DATA_DIR"
)

// Defaults applied when the optional variables are unset.
const (
	DefaultPoolMin        = 2
	DefaultPoolMax        = 20
	DefaultConnectTimeout = 10 * time.Second
	DefaultDataDir        = "data"
)

// Database holds the required warehouse connection parameters.
type Database struct {
	Host     string
	Database string
	User     string
	Password string
	Port     int

	ConnectTimeout time.Duration
}

// Config is the resolved pipeline configuration.
type Config struct {
	DB Database

	// PoolMin and PoolMax bound the connection pool.
	PoolMin int32
	PoolMax int32

	// DataDir is the root under which raw snapshots and manifests live.
	// Staged loads refuse any file path outside this root.
	DataDir string
}

// FromEnv builds a Config from environment variables, validating required
// connection parameters. All missing variables are reported together.
func FromEnv() (*Config, error) {
	var errs []error
	for _, v := range []string{EnvHost, EnvDatabase, EnvUser, EnvPassword, EnvPort} {
		if os.Getenv(v) == "" {
			errs = append(errs, fmt.Errorf("missing required environment variable %s: %w", v, bronze.ErrInvalidConfig))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	port, err := strconv.Atoi(os.Getenv(EnvPort))
	if err != nil || port <= 0 {
		return nil, fmt.Errorf("%s must be a positive integer, got %q: %w", EnvPort, os.Getenv(EnvPort), bronze.ErrInvalidConfig)
	}

	cfg := &Config{
		DB: Database{
			Host:           os.Getenv(EnvHost),
			Database:       os.Getenv(EnvDatabase),
			User:           os.Getenv(EnvUser),
			Password:       os.Getenv(EnvPassword),
			Port:           port,
			ConnectTimeout: DefaultConnectTimeout,
		},
		PoolMin: DefaultPoolMin,
		PoolMax: DefaultPoolMax,
		DataDir: DefaultDataDir,
	}

	if v := os.Getenv(EnvConnectTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer (seconds), got %q: %w", EnvConnectTimeout, v, bronze.ErrInvalidConfig)
		}
		cfg.DB.ConnectTimeout = time.Duration(secs) * time.Second
	}

	if v := os.Getenv(EnvPoolMin); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer, got %q: %w", EnvPoolMin, v, bronze.ErrInvalidConfig)
		}
		cfg.PoolMin = int32(n)
	}
	if v := os.Getenv(EnvPoolMax); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer, got %q: %w", EnvPoolMax, v, bronze.ErrInvalidConfig)
		}
		cfg.PoolMax = int32(n)
	}
	if cfg.PoolMin > cfg.PoolMax {
		return nil, fmt.Errorf("%s (%d) cannot exceed %s (%d): %w", EnvPoolMin, cfg.PoolMin, EnvPoolMax, cfg.PoolMax, bronze.ErrInvalidConfig)
	}

	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}

	return cfg, nil
}

// ConnString renders the connection parameters as a keyword/value DSN.
func (d Database) ConnString() string {
	parts := []string{
		"host=" + quoteDSN(d.Host),
		fmt.Sprintf("port=%d", d.Port),
		"dbname=" + quoteDSN(d.Database),
		"user=" + quoteDSN(d.User),
		"password=" + quoteDSN(d.Password),
		fmt.Sprintf("connect_timeout=%d", int(d.ConnectTimeout.Seconds())),
	}
	return strings.Join(parts, " ")
}

// quoteDSN quotes a DSN value per libpq rules when it contains spaces,
// quotes, or is empty.
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}

// DataRoot returns the absolute data root directory used for path containment.
func (c *Config) DataRoot() (string, error) {
	abs, err := filepath.Abs(c.DataDir)
	if err != nil {
		return "", fmt.Errorf("resolve data dir %q: %w", c.DataDir, err)
	}
	return abs, nil
}

// RawDir returns the directory holding one snapshot's raw files.
func (c *Config) RawDir(snapshotID string) string {
	return filepath.Join(c.DataDir, "raw", snapshotID)
}

// ManifestDir returns the directory holding snapshot manifests.
func (c *Config) ManifestDir() string {
	return filepath.Join(c.DataDir, "manifest")
}
