package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/draftbox-io/stampline/internal/config"
	"github.com/draftbox-io/stampline/internal/detect"
	logpkg "github.com/draftbox-io/stampline/internal/logger"
	"github.com/draftbox-io/stampline/internal/metrics"
	"github.com/draftbox-io/stampline/internal/ocr/tesseract"
	"github.com/draftbox-io/stampline/internal/pipeline"
	"github.com/draftbox-io/stampline/internal/query"
	"github.com/draftbox-io/stampline/internal/resolve"
	"github.com/draftbox-io/stampline/internal/rules"
	"github.com/draftbox-io/stampline/internal/store"
	chiTransport "github.com/draftbox-io/stampline/internal/transport/chi"
	"github.com/draftbox-io/stampline/internal/version"
)

const usage = `usage: stampline <command>

commands:
  run    execute the extraction pipeline over the input directory
  serve  start the record query API
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting stampline",
		zap.String("command", cmd),
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
	)

	metrics.RegisterPipelineMetrics()

	st := newStore(cfg, logger)
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "run":
		runPipeline(ctx, cfg, st, logger)
	case "serve":
		serveAPI(ctx, cfg, st, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func newStore(cfg config.Config, logger *zap.Logger) store.Store {
	switch cfg.Database.Driver {
	case "memory":
		return store.NewMemoryStore()
	case "redis":
		st, err := store.NewRedisStore(store.RedisConfig{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create record store", zap.Error(err))
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := st.WaitForReady(context.Background(), timeout); err != nil {
			logger.Fatal("Record store not ready", zap.Error(err))
		}
		logger.Info("Connected to record store", zap.Strings("addrs", cfg.Database.Addrs))
		return st
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
		return nil
	}
}

func runPipeline(ctx context.Context, cfg config.Config, st store.Store, logger *zap.Logger) {
	catalog, err := rules.LoadCatalog(cfg.Pipeline.CatalogPath)
	if err != nil {
		logger.Fatal("Failed to load rule catalog",
			zap.String("path", cfg.Pipeline.CatalogPath),
			zap.Error(err))
	}

	engine := tesseract.New()
	detector := detect.NewClient(
		cfg.Detect.Endpoint,
		time.Duration(cfg.Detect.TimeoutSec)*time.Second,
		cfg.Detect.MinConfidence,
	)
	resolver := resolve.New(engine, cfg.Revision, cfg.OCR.Languages, logger)
	validator := rules.NewValidator(catalog, cfg.Validation.EmptyAllowed)

	p := pipeline.New(cfg, pipeline.Deps{
		Detector:  detector,
		Engine:    engine,
		Resolver:  resolver,
		Validator: validator,
		Store:     st,
		Logger:    logger,
	})

	if err := p.Run(ctx); err != nil {
		logger.Fatal("Pipeline failed", zap.Error(err))
	}
}

func serveAPI(ctx context.Context, cfg config.Config, st store.Store, logger *zap.Logger) {
	qs := query.NewService(st, logger)
	server := chiTransport.NewServer(qs, st, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
