// Package main runs the airdrop service:
// - HTTP API (continuous): submit, status, collectAirdrop
// - Export (scheduled): nightly snapshot of all submissions
// - Eligibility (scheduled): nightly recomputation of isEligible
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"solana-airdrop/internal/airdrop"
	"solana-airdrop/internal/api"
	"solana-airdrop/internal/config"
	"solana-airdrop/internal/eligibility"
	"solana-airdrop/internal/export"
	"solana-airdrop/internal/hotwallet"
	"solana-airdrop/internal/notify"
	"solana-airdrop/internal/observability"
	"solana-airdrop/internal/scheduler"
	"solana-airdrop/internal/solana"
	"solana-airdrop/internal/storage"
	chstore "solana-airdrop/internal/storage/clickhouse"
	"solana-airdrop/internal/storage/memory"
	"solana-airdrop/internal/storage/migrations"
	pgstore "solana-airdrop/internal/storage/postgres"
	"solana-airdrop/internal/validator"
)

const shutdownTimeout = 30 * time.Second

// stores holds the storage backends selected by configuration.
type stores struct {
	submissions storage.SubmissionStore
	sinks       []export.Sink
	cleanup     func()
}

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file; environment variables take precedence")
	runOnce := flag.String("run-once", "", "Run one job (export|eligibility) and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.ConfigureLogger(log.StandardLogger())

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	wallet, err := hotwallet.ParseSecret(cfg.HotWalletSecret)
	if err != nil {
		log.WithError(err).Fatal("Invalid HOT_WALLET_SECRET")
	}
	log.WithField("payer", wallet.Address()).Info("Hot wallet loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := createStores(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to create stores")
	}
	defer st.cleanup()

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint,
		solana.WithTimeout(cfg.RPCTimeout),
		solana.WithMaxRetries(cfg.RPCMaxRetries),
		solana.WithLimiter(solana.NewRateLimiter(cfg.RPCRate, cfg.RPCBurst)),
	)

	walletValidator := validator.New(validator.Options{
		Reader:    rpc,
		Timeout:   cfg.RPCTimeout,
		CacheSize: cfg.ValidatorCacheSize,
		CacheTTL:  cfg.ValidatorCacheTTL,
		Strict:    cfg.ValidatorStrict,
		Logger:    log.WithField("component", "validator"),
	})

	notifier, closeNotifier := createNotifier(cfg)
	defer closeNotifier()

	svc := airdrop.New(airdrop.Options{
		Store:     st.submissions,
		Validator: walletValidator,
		Notifier:  notifier,
		Signer:    wallet,
		Mode:      airdrop.Mode(cfg.SubmitValidation),
		Logger:    log.WithField("component", "airdrop"),
	})

	if cfg.TokenMint == "" {
		log.Warn("TOKEN_MINT is not set, holdings are read from the wallet address as a token account")
	}
	evaluator := eligibility.New(eligibility.Options{
		Store:          st.submissions,
		Checker:        eligibility.NewHoldingChecker(rpc, cfg.TokenMint),
		RequiredMonths: requiredMonths(cfg.RequiredHoldingMonths),
		Concurrency:    cfg.EvaluatorConcurrency,
		CallTimeout:    cfg.RPCTimeout,
		Logger:         log.WithField("component", "eligibility"),
	})

	exporter := export.New(export.Options{
		Store:  st.submissions,
		Sinks:  st.sinks,
		Logger: log.WithField("component", "export"),
	})

	loc, _ := cfg.Location()
	locker, closeLocker := createLocker(ctx, cfg)
	defer closeLocker()

	sched := scheduler.New(scheduler.Options{
		Location: loc,
		Locker:   locker,
		Logger:   log.WithField("component", "scheduler"),
	})
	if err := sched.Add(scheduler.JobExport, cfg.ExportSchedule, func(ctx context.Context) error {
		_, err := exporter.Run(ctx)
		return err
	}); err != nil {
		log.WithError(err).Fatal("Failed to schedule export")
	}
	if err := sched.Add(scheduler.JobEligibility, cfg.EligibilitySchedule, func(ctx context.Context) error {
		_, err := evaluator.Run(ctx)
		return err
	}); err != nil {
		log.WithError(err).Fatal("Failed to schedule eligibility")
	}

	if *runOnce != "" {
		if err := sched.RunNow(ctx, *runOnce); err != nil {
			log.WithError(err).WithField("job", *runOnce).Fatal("Job failed")
		}
		return
	}

	_, srv := api.NewServer(api.Options{
		Addr:         cfg.HTTPAddr,
		Service:      svc,
		Jobs:         sched,
		ServeMetrics: cfg.MetricsAddr == "",
		Logger:       log.WithField("component", "api"),
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = startMetricsServer(cfg.MetricsAddr)
	}

	// Channel to signal completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("Received signal, initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Warn("Received second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			log.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	sched.Start()
	log.WithFields(log.Fields{
		"export":      cfg.ExportSchedule,
		"eligibility": cfg.EligibilitySchedule,
		"tz":          loc.String(),
	}).Info("Scheduler started")

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to gracefully shutdown HTTP server")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("Scheduled jobs did not finish before shutdown")
	}

	close(done)
	log.Info("Shutdown complete")
}

// createStores opens the submission store and the snapshot sinks.
func createStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{sinks: []export.Sink{export.NewCSVSink(cfg.SnapshotDir)}}

	var closers []func()
	st.cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("Using in-memory store, submissions will not survive a restart")
		st.submissions = memory.NewSubmissionStore()
	default:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.PoolOptions{
			MaxConns:        int32(cfg.PostgresPool.MaxConns),
			MinConns:        int32(cfg.PostgresPool.MinConns),
			MaxConnLifetime: cfg.PostgresPool.MaxConnLifetime,
			MaxConnIdleTime: cfg.PostgresPool.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			st.cleanup()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		st.submissions = pgstore.NewSubmissionStore(pool)
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			st.cleanup()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		st.sinks = append(st.sinks, export.ClickHouseSink{Store: chstore.NewSnapshotStore(conn)})
	}

	return st, nil
}

// createNotifier returns the Kafka notifier when brokers are configured.
func createNotifier(cfg *config.Config) (notify.ClaimNotifier, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return notify.NopNotifier{}, func() {}
	}
	n := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaClaimsTopic)
	log.WithFields(log.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaClaimsTopic,
	}).Info("Claim notifications enabled")
	return n, func() {
		if err := n.Close(); err != nil {
			log.WithError(err).Warn("Failed to close Kafka writer")
		}
	}
}

// createLocker returns a Redis job lock when REDIS_ADDR is set.
func createLocker(ctx context.Context, cfg *config.Config) (scheduler.Locker, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	log.WithField("addr", cfg.RedisAddr).Info("Distributed job lock enabled")
	return scheduler.NewRedisLocker(client, "solana-airdrop:"), func() { client.Close() }
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.WithField("addr", addr).Info("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	return srv
}

// requiredMonths maps the configured value to eligibility.Options, where
// zero selects the default.
func requiredMonths(n int) int {
	if n == 0 {
		return -1
	}
	return n
}
