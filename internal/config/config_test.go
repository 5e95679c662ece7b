package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv(EnvHost, "db.local")
	t.Setenv(EnvDatabase, "warehouse")
	t.Setenv(EnvUser, "loader")
	t.Setenv(EnvPassword, "secret")
	t.Setenv(EnvPort, "5433")
}

func TestFromEnv_AllFields(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvPoolMin, "4")
	t.Setenv(EnvPoolMax, "8")
	t.Setenv(EnvConnectTimeout, "30")
	t.Setenv(EnvDataDir, "/srv/bronze")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "db.local", cfg.DB.Host)
	assert.Equal(t, "warehouse", cfg.DB.Database)
	assert.Equal(t, "loader", cfg.DB.User)
	assert.Equal(t, "secret", cfg.DB.Password)
	assert.Equal(t, 5433, cfg.DB.Port)
	assert.Equal(t, 30*time.Second, cfg.DB.ConnectTimeout)
	assert.Equal(t, int32(4), cfg.PoolMin)
	assert.Equal(t, int32(8), cfg.PoolMax)
	assert.Equal(t, "/srv/bronze", cfg.DataDir)
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, int32(DefaultPoolMin), cfg.PoolMin)
	assert.Equal(t, int32(DefaultPoolMax), cfg.PoolMax)
	assert.Equal(t, DefaultConnectTimeout, cfg.DB.ConnectTimeout)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
}

func TestFromEnv_ReportsAllMissingVariables(t *testing.T) {
	for _, v := range []string{EnvHost, EnvDatabase, EnvUser, EnvPassword, EnvPort} {
		t.Setenv(v, "")
	}

	_, err := FromEnv()
	require.Error(t, err)
	assert.True(t, errors.Is(err, bronze.ErrInvalidConfig))

	for _, v := range []string{EnvHost, EnvDatabase, EnvUser, EnvPassword, EnvPort} {
		assert.Contains(t, err.Error(), v)
	}
}

func TestFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"non-numeric port", EnvPort, "not-a-port"},
		{"zero port", EnvPort, "0"},
		{"negative pool min", EnvPoolMin, "-1"},
		{"zero pool max", EnvPoolMax, "0"},
		{"non-numeric timeout", EnvConnectTimeout, "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.env, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.True(t, errors.Is(err, bronze.ErrInvalidConfig))
		})
	}
}

func TestFromEnv_PoolMinExceedsMax(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvPoolMin, "10")
	t.Setenv(EnvPoolMax, "5")

	_, err := FromEnv()
	require.Error(t, err)
	assert.True(t, errors.Is(err, bronze.ErrInvalidConfig))
}

func TestConnString(t *testing.T) {
	d := Database{
		Host:           "db.local",
		Database:       "warehouse",
		User:           "loader",
		Password:       "secret",
		Port:           5432,
		ConnectTimeout: 10 * time.Second,
	}

	assert.Equal(t,
		"host=db.local port=5432 dbname=warehouse user=loader password=secret connect_timeout=10",
		d.ConnString())
}

func TestConnString_QuotesSpecialValues(t *testing.T) {
	d := Database{
		Host:           "db.local",
		Database:       "ware house",
		User:           "loader",
		Password:       `p'ss\word`,
		Port:           5432,
		ConnectTimeout: 10 * time.Second,
	}

	s := d.ConnString()
	assert.Contains(t, s, "dbname='ware house'")
	assert.Contains(t, s, `password='p\'ss\\word'`)
}

func TestDataPaths(t *testing.T) {
	cfg := &Config{DataDir: "data"}

	assert.Equal(t, filepath.Join("data", "raw", "snap1"), cfg.RawDir("snap1"))
	assert.Equal(t, filepath.Join("data", "manifest"), cfg.ManifestDir())

	root, err := cfg.DataRoot()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root))
}
