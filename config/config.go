// Package config loads the service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const defaultIrisURL = "https://archive.ics.uci.edu/ml/machine-learning-databases/iris/iris.data"

// Config is the full service configuration. Components receive the section
// they need at construction time.
type Config struct {
	Http      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Paths     PathsConfig     `yaml:"paths"`
	Loader    LoaderConfig    `yaml:"loader"`
	Kaggle    KaggleConfig    `yaml:"kaggle"`
	Params    ParamsConfig    `yaml:"params"`
	Database  DatabaseConfig  `yaml:"database"`
	Predictor PredictorConfig `yaml:"predictor"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// PathsConfig groups the files the service reads and writes.
type PathsConfig struct {
	Datasets        string `yaml:"datasets"`
	ModelParameters string `yaml:"model_parameters"`
	Model           string `yaml:"model"`
	DataDir         string `yaml:"data_dir"`
}

type LoaderConfig struct {
	DefaultURL string        `yaml:"default_url"`
	Encoding   string        `yaml:"encoding"`
	Timeout    time.Duration `yaml:"timeout"`
}

type KaggleConfig struct {
	BaseURL     string `yaml:"base_url"`
	Credentials string `yaml:"credentials"`
}

// ParamsConfig selects the backend of the parameter document.
type ParamsConfig struct {
	Backend    string      `yaml:"backend"`
	Collection string      `yaml:"collection"`
	Document   string      `yaml:"document"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type PredictorConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// Default returns a configuration usable without any file.
func Default() *Config {
	return &Config{
		Http: HTTPConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   5 * time.Minute,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			File:       "logs/flowerlab.log",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Paths: PathsConfig{
			Datasets:        "config/config.json",
			ModelParameters: "config/model_parameters.json",
			Model:           "models/random_forest_model.json",
			DataDir:         "data",
		},
		Loader: LoaderConfig{
			DefaultURL: defaultIrisURL,
			Encoding:   "utf-8",
			Timeout:    60 * time.Second,
		},
		Kaggle: KaggleConfig{
			BaseURL:     "https://www.kaggle.com/api/v1",
			Credentials: "config/kaggle.json",
		},
		Params: ParamsConfig{
			Backend:    "memory",
			Collection: "parameters",
			Document:   "parameters",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Database: DatabaseConfig{
			Path: "data/training.db",
		},
		Predictor: PredictorConfig{
			CacheSize: 4,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.Http.Port)
	}
	if c.Paths.Datasets == "" || c.Paths.ModelParameters == "" || c.Paths.Model == "" {
		return errors.New("paths.datasets, paths.model_parameters and paths.model are required")
	}
	switch c.Params.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported params backend %q", c.Params.Backend)
	}
	return nil
}
