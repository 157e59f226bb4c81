package main

import (
	"context"
	"fmt"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/delivery/stream"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/engine/service"
	"golang-cardflip-engine/internal/engine/strategy"
	"golang-cardflip-engine/pkg/common"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/postgres"
	"golang-cardflip-engine/pkg/redis"
	"golang-cardflip-engine/pkg/telegram"

	"google.golang.org/genai"
)

// app holds every wired component of the engine service.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db          *postgres.DB
	redisClient *redis.Client
	bus         *event.Bus

	analysis   service.AnalysisEngine
	requests   service.AnalysisRequestService
	monitor    service.MarketMonitorService
	scanner    service.ScanSchedulerService
	reviews    service.ReviewService
	trades     service.TradeService
	strategies *strategy.Engine
	simulator  *service.ExecutionSimulator
	portfolio  *service.Portfolio
}

func newApp(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: appLogger}

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db

	// Initialize Redis
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.redisClient = redisClient
		if err := redisClient.EnsureGroup(ctx, common.RedisStreamAnalysisRequest, common.RedisStreamGroup); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create consumer group: %w", err)
		}
	}

	// Initialize notifier
	var notifier telegram.Notifier = telegram.Nop{}
	if cfg.Telegram.Enabled {
		n, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
		notifier = n
	}

	// Initialize feature extraction provider
	var extractionRepo repository.FeatureExtractionRepository
	if cfg.Gemini.Enabled {
		genAiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Gemini.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		extractionRepo = repository.NewGeminiFeatureRepository(cfg.Gemini, appLogger, genAiClient)
	}

	// Initialize repositories
	listingRepo := repository.NewListingRepository(db.DB)
	featureRepo := repository.NewItemFeatureRepository(db.DB)
	saleRepo := repository.NewSaleRepository(db.DB)
	valuationRepo := repository.NewValuationRepository(db.DB)
	opportunityRepo := repository.NewOpportunityRepository(db.DB)
	tradeRepo := repository.NewTradeRepository(db.DB)
	marketplaceRepo := repository.NewMarketplaceRepository(cfg.Marketplace, appLogger)
	cookieRepo := repository.NewCookieRepository(cfg.Marketplace, appLogger)
	var proxyRepo repository.ProxyRepository
	if cfg.Marketplace.ProxyPoolURL != "" {
		proxyRepo = repository.NewProxyRepository(cfg.Marketplace.ProxyPoolURL, appLogger)
	}

	// Initialize bus and services
	a.bus = event.NewBus(appLogger, cfg.Bus.StopTimeout)
	search := service.NewItemSearchService(marketplaceRepo, cookieRepo, proxyRepo)

	a.analysis = service.NewAnalysisEngine(service.AnalysisDeps{
		Listings:      listingRepo,
		Features:      featureRepo,
		Sales:         saleRepo,
		Valuations:    valuationRepo,
		Opportunities: opportunityRepo,
		Extractor:     service.NewFeatureExtractor(extractionRepo, appLogger),
		Valuation:     service.NewValuationService(cfg.Trading),
		Risk:          service.NewRiskService(cfg.Risk),
		Scorer:        service.NewOpportunityScorer(cfg.Trading),
		Publisher:     a.bus,
	}, cfg.Analysis, appLogger)
	if a.redisClient != nil {
		a.requests = service.NewAnalysisRequestService(cfg.Analysis, a.redisClient.Client, a.analysis, appLogger)
	}

	a.monitor = service.NewMarketMonitorService(cfg.Monitor, search, listingRepo, a.bus, notifier, nil, appLogger)
	a.scanner = service.NewScanSchedulerService(cfg.Scanner, search, listingRepo, a.bus, appLogger)
	a.reviews = service.NewReviewService(opportunityRepo, tradeRepo, cfg.Risk, appLogger)
	a.trades = service.NewTradeService(tradeRepo, service.NewPricingPlanner(cfg.Pricing, cfg.Trading), cfg.Pricing, appLogger)
	a.simulator = service.NewExecutionSimulator(a.bus, nil, appLogger)
	a.portfolio = service.NewPortfolio(appLogger)

	a.strategies, err = strategy.NewEngine(a.bus, cfg.Strategy, appLogger)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.strategies.Add(strategy.NewBargainHunter(cfg.Strategy.Name, opportunityRepo, a.bus, appLogger)); err != nil {
		a.close()
		return nil, err
	}

	// Register bus handlers
	a.bus.Register(event.TypeItemFound, "analysis", a.analysis.HandleItemFound)
	a.bus.Register(event.TypeOrderSubmitted, "execution", a.simulator.HandleOrderSubmitted)
	a.bus.Register(event.TypeOrderTraded, "portfolio", a.portfolio.HandleOrderTraded)
	if cfg.Analysis.NotifyUnderpriced && cfg.Telegram.Enabled {
		a.bus.Register(event.TypeItemUnderpriced, "telegram", service.NewUnderpricedNotifier(notifier, appLogger).HandleItemUnderpriced)
	}
	if a.redisClient != nil {
		a.bus.AddObserver("redis-stream", stream.NewPublisher(a.redisClient.Client, cfg.Redis.StreamMaxLen, appLogger).Handle)
	}
	return a, nil
}

// start runs the bus and activates strategies when enabled.
func (a *app) start() {
	a.bus.Start()
	if a.cfg.Strategy.Enabled {
		a.strategies.StartAll()
	}
}

// stop deactivates strategies and drains the bus.
func (a *app) stop() {
	a.strategies.StopAll()
	a.bus.Stop()
}

func (a *app) close() {
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
