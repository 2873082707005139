// Package config loads service settings from config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no path is given.
const DefaultPath = "config.yaml"

const (
	BackendONNX   = "onnx"
	BackendStatic = "static"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Labels    []string        `yaml:"labels"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Cache     CacheConfig     `yaml:"cache"`
	Errors    ErrorsConfig    `yaml:"errors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ModelConfig struct {
	Backend           string        `yaml:"backend"` // onnx | static
	Path              string        `yaml:"path"`
	SharedLibraryPath string        `yaml:"shared_library_path"`
	InputName         string        `yaml:"input_name"`
	OutputName        string        `yaml:"output_name"`
	InputSize         int           `yaml:"input_size"`
	NumClasses        int           `yaml:"num_classes"`
	Candidates        int           `yaml:"candidates"`
	PoolSize          int           `yaml:"pool_size"`
	AcquireTimeout    time.Duration `yaml:"acquire_timeout"`
	IntraOpThreads    int           `yaml:"intra_op_threads"`
}

type DecoderConfig struct {
	BBoxSpace string `yaml:"bbox_space"` // model | image
}

type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`
}

type CacheConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	Namespace string        `yaml:"namespace"`
}

// ErrorsConfig を true にすると、失敗種別ごとに 400/502/500 を返します。
type ErrorsConfig struct {
	DistinctStatus bool `yaml:"distinct_status"`
}

// RateLimitConfig は RPS が 0 以下なら無効です。
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Backend:        BackendONNX,
			Path:           "model/best.onnx",
			InputName:      "images",
			OutputName:     "output0",
			InputSize:      640,
			NumClasses:     80,
			Candidates:     25200,
			PoolSize:       2,
			AcquireTimeout: 5 * time.Second,
		},
		Labels:  []string{"algal-leaf", "brown-blight", "grey-blight"},
		Decoder: DecoderConfig{BBoxSpace: "model"},
		Fetch:   FetchConfig{Timeout: 10 * time.Second, MaxBytes: 20 << 20},
		Cache:   CacheConfig{TTL: 10 * time.Minute, Namespace: "detections"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv は環境変数で設定を上書きします。
func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("MODEL_BACKEND"); v != "" {
		c.Model.Backend = v
	}
	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("ONNXRUNTIME_LIB"); v != "" {
		c.Model.SharedLibraryPath = v
	}
	if v := os.Getenv("MODEL_NUM_CLASSES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODEL_NUM_CLASSES: %w", err)
		}
		c.Model.NumClasses = n
	}
	if v := os.Getenv("LABELS"); v != "" {
		labels := make([]string, 0)
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
		c.Labels = labels
	}
	if v := os.Getenv("BBOX_SPACE"); v != "" {
		c.Decoder.BBoxSpace = v
	}
	if v := os.Getenv("DISTINCT_ERROR_STATUS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DISTINCT_ERROR_STATUS: %w", err)
		}
		c.Errors.DistinctStatus = b
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate fills zero values that have a safe default and rejects the rest.
func (c *Config) Validate() error {
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = d.Fetch.Timeout
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = d.Fetch.MaxBytes
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Decoder.BBoxSpace == "" {
		c.Decoder.BBoxSpace = d.Decoder.BBoxSpace
	}

	switch c.Model.Backend {
	case BackendONNX:
		if c.Model.Path == "" {
			return errors.New("model.path is required for the onnx backend")
		}
	case BackendStatic:
	default:
		return fmt.Errorf("unknown model.backend %q", c.Model.Backend)
	}
	if len(c.Labels) == 0 {
		return errors.New("labels must not be empty")
	}
	if c.Model.NumClasses <= 0 {
		return fmt.Errorf("model.num_classes must be positive, got %d", c.Model.NumClasses)
	}
	if c.Decoder.BBoxSpace != "model" && c.Decoder.BBoxSpace != "image" {
		return fmt.Errorf("decoder.bbox_space must be model or image, got %q", c.Decoder.BBoxSpace)
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}
	return nil
}
