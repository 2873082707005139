// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/adapters"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/adapters/fetch"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/adapters/onnx"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/adapters/static"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/pipeline"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/usecase"
	"github.com/Kyalo-Caleb/teabot/internal/platform/cache"
	"github.com/Kyalo-Caleb/teabot/internal/platform/config"
	infrahttp "github.com/Kyalo-Caleb/teabot/internal/platform/http"
)

// Engine is an inference backend that can report readiness and be released.
type Engine interface {
	pipeline.Engine
	Ready() bool
	Close() error
}

// NewEngine loads the backend selected by cfg.Model.Backend.
func NewEngine(cfg config.Config) (Engine, error) {
	switch cfg.Model.Backend {
	case config.BackendStatic:
		return static.NewEngine(cfg.Model.Candidates, cfg.Model.NumClasses), nil
	case config.BackendONNX:
		engine, err := onnx.Load(onnx.Config{
			ModelPath:         cfg.Model.Path,
			SharedLibraryPath: cfg.Model.SharedLibraryPath,
			InputName:         cfg.Model.InputName,
			OutputName:        cfg.Model.OutputName,
			InputSize:         cfg.Model.InputSize,
			Candidates:        cfg.Model.Candidates,
			NumClasses:        cfg.Model.NumClasses,
			PoolSize:          cfg.Model.PoolSize,
			AcquireTimeout:    cfg.Model.AcquireTimeout,
			IntraOpThreads:    cfg.Model.IntraOpThreads,
		})
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Model.Backend)
	}
}

// NewDetector builds the preprocess/infer/decode pipeline over engine.
// If Redis is available, the detector is wrapped with a result cache.
func NewDetector(cfg config.Config, engine pipeline.Engine, rdb *redis.Client) usecase.Detector {
	decoder := pipeline.NewDecoder(
		entity.LabelTable(cfg.Labels),
		pipeline.WithNumClasses(cfg.Model.NumClasses),
		pipeline.WithBBoxSpace(pipeline.BBoxSpace(cfg.Decoder.BBoxSpace)),
	)
	detector := pipeline.NewDetector(pipeline.NewPreprocessor(cfg.Model.InputSize), engine, decoder)
	if rdb == nil {
		return detector
	}
	return cache.NewCachingDetector(rdb, cfg.Cache.TTL, detector, cfg.Cache.Namespace)
}

// NewImageFetcher creates the URL image fetcher with a tuned HTTP client.
func NewImageFetcher(cfg config.Config) *fetch.ImageFetcher {
	httpClient := infrahttp.NewHTTPClient(cfg.Fetch.Timeout)
	return fetch.NewImageFetcher(fetch.Config{Timeout: cfg.Fetch.Timeout, MaxBytes: cfg.Fetch.MaxBytes}, httpClient)
}

// NewPredictionRepository returns a gorm-backed history store, or nil when
// no database is available so that history recording is skipped.
func NewPredictionRepository(db *gorm.DB) usecase.PredictionRepository {
	if db == nil {
		return nil
	}
	return adapters.NewPredictionRepository(db)
}
