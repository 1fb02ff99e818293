package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/coincore/internal/activity"
	"github.com/mtlprog/coincore/internal/api"
	"github.com/mtlprog/coincore/internal/asset"
	"github.com/mtlprog/coincore/internal/backend"
	"github.com/mtlprog/coincore/internal/balance"
	"github.com/mtlprog/coincore/internal/coincore"
	"github.com/mtlprog/coincore/internal/config"
	"github.com/mtlprog/coincore/internal/database"
	"github.com/mtlprog/coincore/internal/domain"
	"github.com/mtlprog/coincore/internal/export"
	"github.com/mtlprog/coincore/internal/external"
	"github.com/mtlprog/coincore/internal/horizon"
	"github.com/mtlprog/coincore/internal/prime"
	"github.com/mtlprog/coincore/internal/store"
	"github.com/mtlprog/coincore/internal/trending"
	"github.com/mtlprog/coincore/internal/txengine"
	"github.com/mtlprog/coincore/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	app := &cli.App{
		Name:  "coincore",
		Usage: "account and activity reconciliation engine",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background workers",
				Action: serve,
			},
			{
				Name:  "export",
				Usage: "write the reconciled activity report once and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "XLSX output path, defaults to EXPORT_PATH"},
				},
				Action: exportOnce,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("coincore failed", "error", err)
		os.Exit(1)
	}
}

// app is the wired object graph shared by the commands.
type app struct {
	cfg       config.Config
	pool      *pgxpool.Pool
	registry  *asset.Registry
	quotes    *external.Service
	fees      backend.FeeService
	core      *coincore.Coincore
	feed      *activity.Repository
	exporter  *export.Service
	hasWriter bool
}

// setup wires the object graph. An empty outPath falls back to EXPORT_PATH.
func setup(ctx context.Context, outPath string) (*app, error) {
	cfg := config.Load()
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := asset.LoadFile(cfg.AssetsFile)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("loading assets: %w", err)
	}
	fiat, err := registry.Currency(cfg.FiatCurrency)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("display currency: %w", err)
	}

	horizonClient := horizon.NewClient(cfg.HorizonURL, cfg.HorizonRetryMax, cfg.HorizonRetryBaseDelay)
	registry.BindChain(asset.EngineXLM, horizonClient)

	coingecko := external.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax)
	quotes := external.NewService(coingecko, external.NewPgQuoteRepository(pool), registry.CoingeckoIDs(), fiat, cfg.RatePollInterval)

	fees := backend.FeeRouter{
		Default:    registry,
		ByCurrency: map[string]backend.FeeService{"XLM": horizonClient},
	}

	ledger := store.NewLedger(pool, registry)
	svc := coincore.Services{
		Registry: registry,
		Balances: balance.NewFetcher(quotes, fiat, cfg.BalancePollInterval),
		Wallets:  store.NewPgWalletStore(pool),
		Identity: backend.FixedTier(domain.ParseKycTier(cfg.KycTier)),
		Trading:  ledger.Trading(),
		Interest: ledger.Interest(),
		Fiat:     ledger.Fiat(),
		Swaps:    ledger.Swaps(),
	}
	if cfg.PrimeEnabled() {
		creds := prime.Credentials(cfg.PrimeAccessKey, cfg.PrimePassphrase, cfg.PrimeSigningKey)
		transfers, err := prime.NewService(creds, cfg.PrimePortfolioID, registry.Networks())
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connecting to Prime: %w", err)
		}
		svc.Transfers = transfers
	} else {
		slog.Warn("Prime credentials not set, custodial transfers disabled")
	}

	core := coincore.New(svc)
	feed := activity.NewRepository(core, cfg.ActivityCacheTTL, cfg.ActivityFetchTimeout)

	if outPath == "" {
		outPath = cfg.ExportPath
	}
	var writers []export.Writer
	if outPath != "" {
		writers = append(writers, export.NewXLSXWriter(outPath))
	}
	if cfg.SheetsEnabled() {
		sheets, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheetID, cfg.GoogleCredentialsJSON)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating sheets writer: %w", err)
		}
		writers = append(writers, sheets)
	}

	return &app{
		cfg:       cfg,
		pool:      pool,
		registry:  registry,
		quotes:    quotes,
		fees:      fees,
		core:      core,
		feed:      feed,
		exporter:  export.NewService(feed, core, writers...),
		hasWriter: len(writers) > 0,
	}, nil
}

func (a *app) close() {
	a.feed.Clear()
	a.core.Reset()
	a.pool.Close()
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, "")
	if err != nil {
		return err
	}
	defer a.close()

	quoteWorker := worker.NewQuoteWorker(a.quotes, a.cfg.QuoteWorkerInterval)
	go quoteWorker.Run(ctx)

	var hook worker.AfterRefreshHook
	if a.hasWriter {
		hook = a.exporter
	}
	refreshWorker := worker.NewRefreshWorker(a.feed, a.core, a.cfg.RefreshWorkerInterval, hook)
	go refreshWorker.Run(ctx)

	candidates, err := trending.ParseCandidates(a.cfg.TrendingPairs)
	if err != nil {
		return fmt.Errorf("parsing TRENDING_PAIRS: %w", err)
	}
	advisor := trending.NewAdvisor(a.core, a.fees, candidates, a.cfg.CustodialMode, a.cfg.TrendingLimit)
	proposer := txengine.NewFactory(a.registry, a.fees, a.core)

	if a.cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, account edit endpoints are unprotected")
	}

	srv := api.NewServer(a.cfg.HTTPPort, api.NewHandler(a.core, a.feed, advisor, proposer), a.cfg.AdminAPIKey)
	go func() {
		slog.Info("HTTP server listening", "port", a.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("shutdown complete")
	return nil
}

func exportOnce(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, c.String("out"))
	if err != nil {
		return err
	}
	defer a.close()

	if !a.hasWriter {
		return errors.New("nothing to export to: pass --out or configure Google Sheets")
	}
	if err := a.exporter.Export(ctx); err != nil {
		return fmt.Errorf("exporting activity: %w", err)
	}
	slog.Info("export complete")
	return nil
}

func migrate(c *cli.Context) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	pool, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	pool.Close()
	return nil
}

// connect opens the pool and applies pending migrations.
func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}

func setupLogging(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
