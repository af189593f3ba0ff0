package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"flowerlab/config"
	"flowerlab/db"
	"flowerlab/logging"
	"flowerlab/ml"
	"flowerlab/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	source := flag.String("url", "", "dataset URL or path (defaults to loader.default_url)")
	modelPath := flag.String("model_path", "", "model output path (defaults to paths.model)")
	record := flag.Bool("record", true, "append the run to the training database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *modelPath != "" {
		cfg.Paths.Model = *modelPath
	}

	logger, err := logging.New(config.LogConfig{Level: cfg.Log.Level})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	var recorder ml.RunRecorder
	if *record {
		runs, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open training database", zap.Error(err))
		}
		defer runs.Close()
		recorder = runs
	}

	client := &http.Client{Timeout: cfg.Loader.Timeout}
	loader := pipeline.NewLoader(client, nil, cfg.Loader.Encoding, logger)
	trainer := ml.NewTrainer(cfg.Paths.ModelParameters, cfg.Paths.Model, recorder, logger)
	runner := pipeline.NewRunner(loader, trainer, cfg.Loader.DefaultURL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := runner.Run(ctx, *source)
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Fatal("failed to write result", zap.Error(err))
	}
	if result.Training.Status != ml.StatusTrained {
		os.Exit(1)
	}
}
