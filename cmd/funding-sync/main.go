// Command funding-sync is the entrypoint for the funding-rate
// synchronization engine. Grounded on sawpanic-cryptorun's
// cmd/cryptorun/main.go cobra root-command-plus-subcommands shape and
// zerolog bootstrap, trimmed from that teacher's TTY-menu-first command
// tree to this service's three operations: serve, sync, migrate.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/adapter"
	appconfig "github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/config"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/domain"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/httpapi"
	applog "github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/log"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/metrics"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence/postgres"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/scheduler"
	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/sync"
)

const appName = "funding-sync"

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Funding-rate synchronization engine",
		Long: `funding-sync ingests perpetual-futures funding-rate data from
Binance, Bybit, Hyperliquid, and MEXC, persists it to Postgres, and serves
it over a thin read-only HTTP API.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("funding-sync: fatal error")
	}
}

func loadConfig() *appconfig.Config {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("funding-sync: failed to load config")
	}
	applog.Init(applog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return cfg
}

// serveCmd runs the scheduler and the HTTP query API together until
// interrupted, matching spec.md §6.2's always-on scheduled service.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr, err := postgres.NewManager(postgres.Config{
				DSN:             cfg.Postgres.DSN,
				MaxOpenConns:    cfg.Postgres.MaxOpenConns,
				MaxIdleConns:    cfg.Postgres.MaxIdleConns,
				ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
				ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
				QueryTimeout:    cfg.Postgres.QueryTimeout,
			})
			if err != nil {
				return err
			}
			defer mgr.Close()

			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()

			reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

			sched := scheduler.New(cfg, mgr.Repository(), scheduler.NewRedisLocker(redisClient)).WithMetrics(reg)
			if err := sched.Register(); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop(context.Background())

			httpCfg := httpapi.DefaultConfig()
			httpCfg.Addr = cfg.HTTP.Addr
			server := httpapi.NewServer(httpCfg, mgr.Repository(), prometheus.DefaultGatherer)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case <-ctx.Done():
				log.Info().Msg("funding-sync: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
}

// syncCmd runs a single venue's history or online pipeline once, then
// exits — useful for ad-hoc backfills outside the scheduler's cadence.
func syncCmd() *cobra.Command {
	var venue, kind string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one venue's history or online pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			mgr, err := postgres.NewManager(postgres.Config{DSN: cfg.Postgres.DSN})
			if err != nil {
				return err
			}
			defer mgr.Close()

			a, err := adapterFor(venue, cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			switch kind {
			case "history":
				return sync.NewHistoryPipeline(a, mgr.Repository()).Run(ctx)
			case "online":
				return sync.NewOnlinePipeline(a, mgr.Repository()).Run(ctx)
			default:
				log.Fatal().Str("kind", kind).Msg("funding-sync: kind must be history or online")
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&venue, "venue", "", "venue code (BINANCE, BYBIT, HYPERLIQUID, MEXC)")
	cmd.Flags().StringVar(&kind, "kind", "history", "pipeline kind (history or online)")
	_ = cmd.MarkFlagRequired("venue")
	return cmd
}

// migrateCmd applies the engine's embedded schema.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			mgr, err := postgres.NewManager(postgres.Config{DSN: cfg.Postgres.DSN})
			if err != nil {
				return err
			}
			defer mgr.Close()
			return postgres.Migrate(cmd.Context(), mgr)
		},
	}
}

func adapterFor(venue string, cfg *appconfig.Config) (adapter.VenueAdapter, error) {
	baseURL := cfg.BaseURLFor(venue)
	switch venue {
	case string(domain.VenueBinance):
		return adapter.NewBinance(baseURL), nil
	case string(domain.VenueBybit):
		return adapter.NewBybit(baseURL), nil
	case string(domain.VenueHyperliquid):
		return adapter.NewHyperliquid(baseURL), nil
	case string(domain.VenueMEXC):
		return adapter.NewMEXC(baseURL), nil
	default:
		return nil, fmt.Errorf("funding-sync: unknown venue %q", venue)
	}
}
