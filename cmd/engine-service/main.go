package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/delivery/consumer"
	delivery "golang-cardflip-engine/internal/engine/delivery/http"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/service"
	"golang-cardflip-engine/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	batchLimit   int
	repriceMode  string
	repriceApply bool
	listingID    uint
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the engine service",
	Run:   runServe,
}

var scanOnceCmd = &cobra.Command{
	Use:   "scan-once",
	Short: "Runs one scan over the configured keywords",
	Run: func(cmd *cobra.Command, args []string) {
		runOnce(func(ctx context.Context, a *app) (interface{}, error) {
			return a.scanner.ScanOnce(ctx), nil
		})
	},
}

var monitorOnceCmd = &cobra.Command{
	Use:   "monitor-once",
	Short: "Runs one market monitor cycle",
	Run: func(cmd *cobra.Command, args []string) {
		runOnce(func(ctx context.Context, a *app) (interface{}, error) {
			return a.monitor.RunOnce(ctx)
		})
	},
}

var analyzeOpenCmd = &cobra.Command{
	Use:   "analyze-open",
	Short: "Analyses a batch of open listings",
	Run: func(cmd *cobra.Command, args []string) {
		runOnce(func(ctx context.Context, a *app) (interface{}, error) {
			return a.analysis.AnalyzeOpen(ctx, batchLimit)
		})
	},
}

var repriceCmd = &cobra.Command{
	Use:   "reprice",
	Short: "Builds pricing plans for open trades and optionally applies them",
	Run: func(cmd *cobra.Command, args []string) {
		runOnce(func(ctx context.Context, a *app) (interface{}, error) {
			mode, ok := dto.ParsePricingMode(repriceMode)
			if !ok {
				return nil, fmt.Errorf("unknown pricing mode %q", repriceMode)
			}
			return a.trades.RepriceOpen(ctx, mode, batchLimit, repriceApply)
		})
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue-analysis",
	Short: "Queues a listing on the analysis request stream",
	Run: func(cmd *cobra.Command, args []string) {
		runOnce(func(ctx context.Context, a *app) (interface{}, error) {
			if a.requests == nil {
				return nil, errors.New("redis is disabled")
			}
			id, err := a.requests.Enqueue(ctx, service.AnalysisRequest{ListingID: listingID, RequestedBy: "cli"})
			return echo.Map{"message_id": id}, err
		})
	},
}

func loadAndInit() (*config.Config, *logger.Logger) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return cfg, appLogger
}

// runOnce wires the engine, runs fn with the bus live so emitted events are
// handled, and prints the result as JSON.
func runOnce(fn func(ctx context.Context, a *app) (interface{}, error)) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger := loadAndInit()
	defer func() { _ = appLogger.Sync() }()

	a, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize engine", logger.ErrorField(err))
	}
	defer a.close()

	a.start()
	result, runErr := fn(ctx, a)
	a.stop()

	if runErr != nil {
		appLogger.Error("Command failed", logger.ErrorField(runErr))
		os.Exit(1)
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		appLogger.Fatal("Failed to encode result", logger.ErrorField(err))
	}
	fmt.Println(string(out))
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger := loadAndInit()
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Engine Service", logger.StringField("name", cfg.App.Name))

	a, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize engine", logger.ErrorField(err))
	}
	defer a.close()
	a.start()

	if cfg.Monitor.AutoStart {
		res := a.monitor.Start(ctx)
		appLogger.Info("Market monitor auto start", logger.BoolField("started", res.Started), logger.StringField("message", res.Message))
	}
	if cfg.Scanner.AutoStart {
		res := a.scanner.Start(ctx)
		appLogger.Info("Scan scheduler auto start", logger.BoolField("started", res.Started), logger.StringField("message", res.Message))
	}

	// Initialize and start the Redis consumer
	redisConsumer := consumer.NewRedisConsumer(cfg, a.requests, a.analysis, a.trades, appLogger)
	redisConsumer.Start(ctx)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	apiV1 := e.Group("/api/v1")
	monitorHandler := delivery.NewMonitorHandler(a.monitor, a.scanner, appLogger)
	monitorHandler.RegisterMonitorRoutes(apiV1.Group("/monitor"))
	monitorHandler.RegisterScannerRoutes(apiV1.Group("/scanner"))

	delivery.NewStrategyHandler(a.strategies, delivery.StatusSource{
		Bus:       a.bus,
		Monitor:   a.monitor,
		Scanner:   a.scanner,
		Orders:    a.simulator,
		Positions: a.portfolio,
	}, appLogger).RegisterRoutes(apiV1)

	delivery.NewOpportunityHandler(a.reviews, appLogger).RegisterRoutes(apiV1.Group("/opportunities"))
	delivery.NewTradeHandler(a.trades, appLogger).RegisterRoutes(apiV1.Group("/trades"))
	delivery.NewListingHandler(a.analysis, appLogger).RegisterRoutes(apiV1.Group("/listings"))

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.StringField("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down engine service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.ErrorField(err))
	}
	redisConsumer.Stop()
	a.scanner.Stop()
	a.monitor.Stop()
	a.stop()
	appLogger.Info("Engine service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "engine-service"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-engine.yaml", "Path to the configuration file")

	analyzeOpenCmd.Flags().IntVar(&batchLimit, "limit", 0, "Number of open listings to analyse (0 uses analysis.open_batch_limit)")
	repriceCmd.Flags().IntVar(&batchLimit, "limit", 0, "Number of open trades to reprice (0 uses the default)")
	repriceCmd.Flags().StringVar(&repriceMode, "mode", string(dto.PricingModeBalanced), "Pricing mode: balanced, fast_exit or profit_max")
	repriceCmd.Flags().BoolVar(&repriceApply, "apply", false, "Write recommended prices to the trades")
	enqueueCmd.Flags().UintVar(&listingID, "listing-id", 0, "Listing to analyse")
	_ = enqueueCmd.MarkFlagRequired("listing-id")

	rootCmd.AddCommand(serveCmd, scanOnceCmd, monitorOnceCmd, analyzeOpenCmd, repriceCmd, enqueueCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing engine-service CLI: %s\n", err)
		os.Exit(1)
	}
}
