package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Storage  StorageConfig  `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// AnalyzeTimeout bounds how long a synchronous analyze request waits on the pipeline.
	AnalyzeTimeout time.Duration `yaml:"analyze_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

type PipelineConfig struct {
	ValidationWorkers    int           `yaml:"validation_workers"`
	TranscriptionWorkers int           `yaml:"transcription_workers"`
	AnalysisWorkers      int           `yaml:"analysis_workers"`
	StorageWorkers       int           `yaml:"storage_workers"`
	QueueSize            int           `yaml:"queue_size"`
	ProcessingTimeout    time.Duration `yaml:"processing_timeout"`
	MaxAudioBytes        int           `yaml:"max_audio_bytes"`
}

type StorageConfig struct {
	Backend  string `yaml:"backend"` // badger, sqlite
	DataDir  string `yaml:"data_dir"`
	AudioDir string `yaml:"audio_dir"`
	DBPath   string `yaml:"db_path"`
}

// ProviderConfig carries the credentials for the transcription and summarization
// services. Nothing else in the process reads them from the environment.
type ProviderConfig struct {
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	TranscriptionModel string        `yaml:"transcription_model"`
	SummaryModel       string        `yaml:"summary_model"`
	Language           string        `yaml:"language"`
	Timeout            time.Duration `yaml:"timeout"`
	SummaryEnabled     bool          `yaml:"summary_enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   3 * time.Minute,
			AnalyzeTimeout: 150 * time.Second,
			MaxUploadBytes: 32 << 20,
		},
		Pipeline: PipelineConfig{
			ValidationWorkers:    2,
			TranscriptionWorkers: 4,
			AnalysisWorkers:      4,
			StorageWorkers:       2,
			QueueSize:            100,
			ProcessingTimeout:    2 * time.Minute,
			MaxAudioBytes:        25 << 20,
		},
		Storage: StorageConfig{
			Backend: BackendBadger,
			DataDir: "./data",
		},
		Provider: ProviderConfig{
			BaseURL:            "https://api.openai.com/v1",
			TranscriptionModel: "whisper-1",
			SummaryModel:       "gpt-4o-mini",
			Language:           "ko",
			Timeout:            60 * time.Second,
			SummaryEnabled:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file in the working directory and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("HEART_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.fillPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("HEART_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("HEART_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("HEART_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("HEART_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("HEART_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) fillPaths() {
	if c.Storage.AudioDir == "" {
		c.Storage.AudioDir = filepath.Join(c.Storage.DataDir, "audio")
	}
	if c.Storage.DBPath == "" {
		switch c.Storage.Backend {
		case BackendSQLite:
			c.Storage.DBPath = filepath.Join(c.Storage.DataDir, "app.db")
		default:
			c.Storage.DBPath = filepath.Join(c.Storage.DataDir, "badger")
		}
	}
	c.Provider.BaseURL = strings.TrimRight(c.Provider.BaseURL, "/")
}

func (c *Config) Validate() error {
	var errs []error
	p := c.Pipeline
	if p.ValidationWorkers <= 0 || p.TranscriptionWorkers <= 0 || p.AnalysisWorkers <= 0 || p.StorageWorkers <= 0 {
		errs = append(errs, errors.New("pipeline worker counts must be positive"))
	}
	if p.QueueSize <= 0 {
		errs = append(errs, errors.New("pipeline.queue_size must be positive"))
	}
	if p.MaxAudioBytes <= 0 {
		errs = append(errs, errors.New("pipeline.max_audio_bytes must be positive"))
	}
	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Provider.BaseURL == "" {
		errs = append(errs, errors.New("provider.base_url is required"))
	}
	return errors.Join(errs...)
}
