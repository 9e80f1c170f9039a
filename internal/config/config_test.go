package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		HTTPAddr:              ":3001",
		RPCEndpoint:           "http://localhost:8899",
		RPCTimeout:            time.Second,
		HotWalletSecret:       "secret",
		StoreBackend:          BackendMemory,
		SubmitValidation:      ValidationOptimistic,
		ExportSchedule:        "0 22 * * *",
		EligibilitySchedule:   "5 22 * * *",
		ScheduleTZ:            "UTC",
		RequiredHoldingMonths: 3,
		EvaluatorConcurrency:  4,
		LogLevel:              "info",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 2, cfg.RPCMaxRetries)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, "data/csv", cfg.SnapshotDir)
	assert.Equal(t, "0 22 * * *", cfg.ExportSchedule)
	assert.Equal(t, "5 22 * * *", cfg.EligibilitySchedule)
	assert.Equal(t, 3, cfg.RequiredHoldingMonths)
	assert.Equal(t, ValidationOptimistic, cfg.SubmitValidation)
	assert.Equal(t, 10*time.Minute, cfg.ValidatorCacheTTL)
	assert.False(t, cfg.ValidatorStrict)
	assert.Equal(t, PostgresPool{MaxConns: 10, MaxConnLifetime: time.Hour, MaxConnIdleTime: 30 * time.Minute}, cfg.PostgresPool)
}

func TestLoad_EnvFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "PORT=4000\nHOT_WALLET_SECRET=fromfile\nREQUIRED_HOLDING_MONTHS=6\nKAFKA_BROKERS=a:9092, b:9092\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	t.Setenv("REQUIRED_HOLDING_MONTHS", "1")
	t.Setenv("SOLANA_RPC_TIMEOUT", "3s")
	t.Setenv("VALIDATOR_STRICT", "true")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.HTTPAddr)
	assert.Equal(t, "fromfile", cfg.HotWalletSecret)
	assert.Equal(t, 1, cfg.RequiredHoldingMonths, "environment wins over the env file")
	assert.Equal(t, 3*time.Second, cfg.RPCTimeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.ValidatorStrict)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}

func TestLoad_HTTPAddrWinsOverPort(t *testing.T) {
	t.Setenv("PORT", "5000")
	t.Setenv("HTTP_ADDR", "127.0.0.1:6000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6000", cfg.HTTPAddr)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"missing secret", func(c *Config) { c.HotWalletSecret = "" }, "HOT_WALLET_SECRET"},
		{"missing endpoint", func(c *Config) { c.RPCEndpoint = "" }, "SOLANA_RPC_ENDPOINT"},
		{"postgres without dsn", func(c *Config) { c.StoreBackend = BackendPostgres }, "POSTGRES_DSN"},
		{"postgres pool too small", func(c *Config) {
			c.StoreBackend, c.PostgresDSN = BackendPostgres, "postgres://localhost/airdrop"
			c.PostgresPool = PostgresPool{MaxConns: 1}
		}, "POSTGRES_MAX_CONNS"},
		{"postgres min above max", func(c *Config) {
			c.StoreBackend, c.PostgresDSN = BackendPostgres, "postgres://localhost/airdrop"
			c.PostgresPool = PostgresPool{MaxConns: 4, MinConns: 5}
		}, "POSTGRES_MIN_CONNS"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "sqlite" }, "STORE_BACKEND"},
		{"unknown validation mode", func(c *Config) { c.SubmitValidation = "later" }, "SUBMIT_VALIDATION"},
		{"bad schedule", func(c *Config) { c.ExportSchedule = "every day" }, "EXPORT_SCHEDULE"},
		{"bad tz", func(c *Config) { c.ScheduleTZ = "Mars/Olympus" }, "SCHEDULE_TZ"},
		{"zero concurrency", func(c *Config) { c.EvaluatorConcurrency = 0 }, "EVALUATOR_CONCURRENCY"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	logger := logrus.New()
	cfg.ConfigureLogger(logger)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
