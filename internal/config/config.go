// Package config loads service configuration from defaults, an optional
// dotenv file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Submit validation modes.
const (
	ValidationOptimistic = "optimistic"
	ValidationSync       = "sync"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	RPCEndpoint   string
	RPCTimeout    time.Duration
	RPCMaxRetries int
	RPCRate       float64
	RPCBurst      int
	TokenMint     string

	HotWalletSecret string

	StoreBackend  string
	PostgresDSN   string
	PostgresPool  PostgresPool
	ClickhouseDSN string
	SnapshotDir   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers     []string
	KafkaClaimsTopic string

	ExportSchedule      string
	EligibilitySchedule string
	ScheduleTZ          string

	RequiredHoldingMonths int
	EvaluatorConcurrency  int

	SubmitValidation   string
	ValidatorCacheSize int
	ValidatorCacheTTL  time.Duration
	ValidatorStrict    bool

	LogLevel  string
	LogFormat string
}

// PostgresPool sizes the PostgreSQL connection pool.
type PostgresPool struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3001")
	v.SetDefault("http_addr", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("solana_rpc_endpoint", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana_rpc_timeout", 10*time.Second)
	v.SetDefault("solana_rpc_max_retries", 2)
	v.SetDefault("solana_rpc_rate", 9.0)
	v.SetDefault("solana_rpc_burst", 9)
	v.SetDefault("token_mint", "")
	v.SetDefault("hot_wallet_secret", "")
	v.SetDefault("store_backend", BackendPostgres)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("postgres_max_conns", 10)
	v.SetDefault("postgres_min_conns", 0)
	v.SetDefault("postgres_conn_max_lifetime", time.Hour)
	v.SetDefault("postgres_conn_max_idle_time", 30*time.Minute)
	v.SetDefault("clickhouse_dsn", "")
	v.SetDefault("snapshot_dir", "data/csv")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_claims_topic", "airdrop.claims")
	v.SetDefault("export_schedule", "0 22 * * *")
	v.SetDefault("eligibility_schedule", "5 22 * * *")
	v.SetDefault("schedule_tz", "Local")
	v.SetDefault("required_holding_months", 3)
	v.SetDefault("evaluator_concurrency", 8)
	v.SetDefault("submit_validation", ValidationOptimistic)
	v.SetDefault("validator_cache_size", 1024)
	v.SetDefault("validator_cache_ttl", 10*time.Minute)
	v.SetDefault("validator_strict", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads configuration. envFile may be empty or point to a missing
// file; both are ignored.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read env file %s: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		HTTPAddr:        v.GetString("http_addr"),
		MetricsAddr:     v.GetString("metrics_addr"),
		RPCEndpoint:     strings.TrimSpace(v.GetString("solana_rpc_endpoint")),
		RPCTimeout:      v.GetDuration("solana_rpc_timeout"),
		RPCMaxRetries:   v.GetInt("solana_rpc_max_retries"),
		RPCRate:         v.GetFloat64("solana_rpc_rate"),
		RPCBurst:        v.GetInt("solana_rpc_burst"),
		TokenMint:       strings.TrimSpace(v.GetString("token_mint")),
		HotWalletSecret: strings.TrimSpace(v.GetString("hot_wallet_secret")),
		StoreBackend:    strings.ToLower(v.GetString("store_backend")),
		PostgresDSN:     v.GetString("postgres_dsn"),
		PostgresPool: PostgresPool{
			MaxConns:        v.GetInt("postgres_max_conns"),
			MinConns:        v.GetInt("postgres_min_conns"),
			MaxConnLifetime: v.GetDuration("postgres_conn_max_lifetime"),
			MaxConnIdleTime: v.GetDuration("postgres_conn_max_idle_time"),
		},
		ClickhouseDSN:         v.GetString("clickhouse_dsn"),
		SnapshotDir:           v.GetString("snapshot_dir"),
		RedisAddr:             v.GetString("redis_addr"),
		RedisPassword:         v.GetString("redis_password"),
		RedisDB:               v.GetInt("redis_db"),
		KafkaBrokers:          splitList(v.GetString("kafka_brokers")),
		KafkaClaimsTopic:      v.GetString("kafka_claims_topic"),
		ExportSchedule:        v.GetString("export_schedule"),
		EligibilitySchedule:   v.GetString("eligibility_schedule"),
		ScheduleTZ:            v.GetString("schedule_tz"),
		RequiredHoldingMonths: v.GetInt("required_holding_months"),
		EvaluatorConcurrency:  v.GetInt("evaluator_concurrency"),
		SubmitValidation:      strings.ToLower(v.GetString("submit_validation")),
		ValidatorCacheSize:    v.GetInt("validator_cache_size"),
		ValidatorCacheTTL:     v.GetDuration("validator_cache_ttl"),
		ValidatorStrict:       v.GetBool("validator_strict"),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             strings.ToLower(v.GetString("log_format")),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":" + v.GetString("port")
	}

	return cfg, nil
}

// Validate reports the first startup-fatal problem.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return errors.New("SOLANA_RPC_ENDPOINT is required")
	}
	if c.HotWalletSecret == "" {
		return errors.New("HOT_WALLET_SECRET is required")
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store backend")
		}
		// Migrations hold one connection for the advisory lock.
		if c.PostgresPool.MaxConns < 2 {
			return errors.New("POSTGRES_MAX_CONNS must be at least 2")
		}
		if c.PostgresPool.MinConns < 0 || c.PostgresPool.MinConns > c.PostgresPool.MaxConns {
			return errors.New("POSTGRES_MIN_CONNS must be between 0 and POSTGRES_MAX_CONNS")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.SubmitValidation {
	case ValidationOptimistic, ValidationSync:
	default:
		return fmt.Errorf("unknown SUBMIT_VALIDATION %q", c.SubmitValidation)
	}
	if c.RPCTimeout <= 0 {
		return errors.New("SOLANA_RPC_TIMEOUT must be positive")
	}
	if c.RequiredHoldingMonths < 0 {
		return errors.New("REQUIRED_HOLDING_MONTHS must not be negative")
	}
	if c.EvaluatorConcurrency < 1 {
		return errors.New("EVALUATOR_CONCURRENCY must be at least 1")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaClaimsTopic == "" {
		return errors.New("KAFKA_CLAIMS_TOPIC is required when KAFKA_BROKERS is set")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.ExportSchedule); err != nil {
		return fmt.Errorf("invalid EXPORT_SCHEDULE: %w", err)
	}
	if _, err := parser.Parse(c.EligibilitySchedule); err != nil {
		return fmt.Errorf("invalid ELIGIBILITY_SCHEDULE: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid SCHEDULE_TZ: %w", err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Location returns the scheduler time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.ScheduleTZ == "" || c.ScheduleTZ == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.ScheduleTZ)
}

// ConfigureLogger applies level and format to logger.
func (c *Config) ConfigureLogger(logger *logrus.Logger) {
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
