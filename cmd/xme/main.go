package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aktraiser/X-me/internal/api"
	"github.com/aktraiser/X-me/internal/config"
	"github.com/aktraiser/X-me/internal/llm"
	"github.com/aktraiser/X-me/internal/metrics"
	"github.com/aktraiser/X-me/internal/repository"
	"github.com/aktraiser/X-me/internal/search"
	"github.com/aktraiser/X-me/internal/sectors"
	"github.com/aktraiser/X-me/internal/service"
	"github.com/aktraiser/X-me/internal/uploads"
	"github.com/aktraiser/X-me/internal/vectorstore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database (chats, messages, experts)
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	chatRepo := repository.NewChatRepository(db)
	expertRepo := repository.NewExpertRepository(db)

	// Language model, falling back to canned answers without an API key
	var client llm.Client
	dimension := cfg.Qdrant.Dimension
	if cfg.HasLLM() {
		client = llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:        cfg.LLM.BaseURL,
			APIKey:         cfg.LLM.APIKey,
			ChatModel:      cfg.LLM.ChatModel,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			Temperature:    cfg.LLM.Temperature,
		}, logger)
	} else {
		logger.Warn("No LLM API key configured, answers are mocked")
		client = llm.NewMockClient()
		dimension = llm.MockDimension
	}
	budget := llm.NewBudget(cfg.LLM.Encoding)
	if !budget.Exact() {
		logger.Warn("Unknown token encoding, counting approximately", zap.String("encoding", cfg.LLM.Encoding))
	}

	// Sector documentation store
	var store vectorstore.Store
	if cfg.HasQdrant() {
		store, err = vectorstore.NewQdrant(vectorstore.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Qdrant", zap.Error(err))
		}
	} else {
		logger.Warn("No Qdrant host configured, sector documentation is kept in memory")
		store = vectorstore.NewMemory()
	}
	defer store.Close()

	catalog, err := sectors.LoadCatalog(cfg.Sectors.CatalogPath)
	if err != nil {
		logger.Fatal("Failed to load sector catalog", zap.Error(err))
	}
	library := sectors.NewLibrary(sectors.LibraryConfig{
		DocumentationDir: cfg.Sectors.DocumentationDir,
		ChunkSize:        cfg.Uploads.ChunkSize,
		ChunkOverlap:     cfg.Uploads.ChunkOverlap,
		Dimension:        dimension,
	}, catalog, store, client, logger)

	// Uploaded files
	uploadStore, err := uploads.NewStore(cfg.Uploads.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize upload store", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Uploads.Watch {
		watcher, err := uploads.NewWatcher(uploadStore, logger)
		if err != nil {
			logger.Warn("Failed to watch uploads, cached sidecars will not be reloaded", zap.Error(err))
		} else {
			defer watcher.Close()
			go watcher.Run(ctx, nil)
		}
	}

	// Web search
	searcher := newSearcher(cfg.Search, logger)
	fetcher := search.NewFetcher(time.Duration(cfg.Search.TimeoutSecs)*time.Second, cfg.Search.FetchMaxBytes)

	m := metrics.New()

	orchestrator := service.NewOrchestrator(cfg.Orchestra, service.Dependencies{
		LLM:      client,
		Budget:   budget,
		Searcher: searcher,
		Fetcher:  fetcher,
		Sectors:  library,
		Experts:  expertRepo,
		Uploads:  uploadStore,
		Metrics:  m,
		Logger:   logger,
	})

	// Initialize services
	services := api.Services{
		Chat:    service.NewChatService(chatRepo, orchestrator, logger),
		Uploads: service.NewUploadService(cfg.Uploads, uploadStore, client, logger),
		Catalog: service.NewCatalogService(cfg, catalog, client),
		Admin:   service.NewAdminService(chatRepo, expertRepo, uploadStore, library, logger),
	}

	// Setup router
	router := api.SetupRouter(services, m, logger, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: cfg.Server.AllowOrigins,
		MaxFileSize:  cfg.Uploads.MaxFileSize,
	})

	// Streams can last minutes, so there is no write timeout
	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		printBanner()
		logger.Info("Starting X-me server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
			zap.String("llm", cfg.LLM.Provider),
			zap.Bool("mock", !cfg.HasLLM()),
			zap.String("search", cfg.Search.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func newSearcher(cfg config.SearchConfig, logger *zap.Logger) search.Searcher {
	opts := search.Options{
		Engines:      cfg.Engines,
		ImageEngines: cfg.ImageEngines,
		Language:     cfg.Language,
		MaxResults:   cfg.MaxResults,
		Timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
	}
	switch cfg.Provider {
	case "searxng":
		opts.BaseURL = cfg.SearxngURL
		return search.NewSearxng(opts)
	case "serper":
		if cfg.SerperAPIKey == "" {
			logger.Warn("Serper selected without an API key, web search disabled")
			return search.Disabled{}
		}
		opts.BaseURL = cfg.SerperURL
		opts.APIKey = cfg.SerperAPIKey
		return search.NewSerper(opts)
	default:
		return search.Disabled{}
	}
}

func printBanner() {
	banner := `
__  __       __  __ _____
\ \/ /      |  \/  | ____|
 \  /  _____| |\/| |  _|
 /  \ |_____| |  | | |___
/_/\_\      |_|  |_|_____|
`

	fmt.Println(banner)
}
