package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flowerlab/config"
	"flowerlab/db"
	qhttp "flowerlab/http"
	"flowerlab/logging"
	"flowerlab/ml"
	"flowerlab/monitoring"
	"flowerlab/params"
	"flowerlab/pipeline"
	"flowerlab/registry"
)

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML configuration")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Initialize components
	runs, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open training database", zap.Error(err))
	}
	defer runs.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	doc, closeDoc, err := openParamsDocument(cfg.Params)
	if err != nil {
		logger.Fatal("failed to open parameter document", zap.Error(err))
	}
	defer closeDoc()

	predictor, err := ml.NewPredictor(cfg.Predictor.CacheSize, logger.Named("predictor"))
	if err != nil {
		logger.Fatal("failed to build predictor", zap.Error(err))
	}

	hub := monitoring.NewHub(logger.Named("events"))
	go hub.Run()
	defer hub.Stop()

	client := &http.Client{Timeout: cfg.Loader.Timeout}
	reg := registry.NewStore(cfg.Paths.Datasets, logger.Named("registry"))
	loader := pipeline.NewLoader(client, reg, cfg.Loader.Encoding, logger.Named("loader"))
	trainer := ml.NewTrainer(cfg.Paths.ModelParameters, cfg.Paths.Model, runs, logger.Named("trainer"))

	api := qhttp.NewAPI(qhttp.Dependencies{
		Registry:  reg,
		Loader:    loader,
		Kaggle:    pipeline.NewKaggleClient(cfg.Kaggle, cfg.Paths.DataDir, client, logger.Named("kaggle")),
		Runner:    pipeline.NewRunner(loader, trainer, cfg.Loader.DefaultURL, logger.Named("pipeline")),
		Trainer:   trainer,
		Predictor: predictor,
		Params:    params.NewStore(doc, logger.Named("params")),
		Runs:      runs,
		Hub:       hub,
		Metrics:   monitoring.NewMetricsCollector(),
		Logger:    logger,
	})

	// 3. Start HTTP server
	server := qhttp.NewServer(cfg.Http, api.Handler(cfg.Http), logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 4. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}

// openParamsDocument returns the configured parameter backend and a function
// releasing it.
func openParamsDocument(cfg config.ParamsConfig) (params.Document, func(), error) {
	if cfg.Backend != "redis" {
		return params.NewMemoryDocument(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Addr, err)
	}
	return params.NewRedisDocument(client, cfg.Collection, cfg.Document), func() { client.Close() }, nil
}
