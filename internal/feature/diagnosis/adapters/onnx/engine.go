// Package onnx runs the disease detection model with ONNX Runtime.
package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/pipeline"
)

// Config describes the model and how many sessions to keep loaded.
type Config struct {
	ModelPath         string
	SharedLibraryPath string // onnxruntime shared library; empty uses the loader default
	InputName         string
	OutputName        string
	InputSize         int
	Candidates        int // number of candidate blocks in the output
	NumClasses        int
	PoolSize          int
	AcquireTimeout    time.Duration
	IntraOpThreads    int
}

func (c Config) withDefaults() Config {
	if c.InputName == "" {
		c.InputName = "images"
	}
	if c.OutputName == "" {
		c.OutputName = "output0"
	}
	if c.InputSize <= 0 {
		c.InputSize = pipeline.DefaultInputSize
	}
	if c.Candidates <= 0 {
		c.Candidates = 25200
	}
	if c.NumClasses <= 0 {
		c.NumClasses = pipeline.DefaultNumClasses
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 2
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	return c
}

func (c Config) inputLen() int {
	return c.InputSize * c.InputSize * pipeline.Channels
}

func (c Config) outputLen() int {
	return c.Candidates * (pipeline.BoxFields + 1 + c.NumClasses)
}

// Engine is a pool of ONNX Runtime sessions over one model file.
type Engine struct {
	cfg     Config
	pool    *sessionPool
	ownsEnv bool
	once    sync.Once
}

var _ pipeline.Engine = (*Engine)(nil)

// ortEnv guards the process-wide ORT environment.
var ortEnv struct {
	sync.Mutex
	refs int
}

// Load initializes ONNX Runtime and loads cfg.PoolSize sessions.
func Load(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}

	if err := acquireEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	pool, err := newSessionPool(cfg.PoolSize, cfg.AcquireTimeout, func() (session, error) {
		return newORTSession(cfg)
	})
	if err != nil {
		releaseEnvironment()
		return nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}

	slog.Info("onnx model loaded",
		"path", cfg.ModelPath,
		"input", cfg.InputName,
		"output", cfg.OutputName,
		"output_len", cfg.outputLen(),
		"pool_size", cfg.PoolSize,
	)
	return &Engine{cfg: cfg, pool: pool, ownsEnv: true}, nil
}

// newEngine builds an Engine over an existing pool.
func newEngine(cfg Config, pool *sessionPool) *Engine {
	return &Engine{cfg: cfg.withDefaults(), pool: pool}
}

// Predict copies the tensor into a pooled session and runs it once.
func (e *Engine) Predict(ctx context.Context, tensor *pipeline.InputTensor) ([]float32, error) {
	if tensor == nil || len(tensor.Data) != e.cfg.inputLen() {
		got := 0
		if tensor != nil {
			got = len(tensor.Data)
		}
		return nil, fmt.Errorf("input tensor has %d values, model expects %d", got, e.cfg.inputLen())
	}

	s, err := e.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.pool.release(s)

	out, err := s.run(tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	return out, nil
}

// Ready reports whether the engine can serve requests.
func (e *Engine) Ready() bool {
	e.pool.mu.RLock()
	defer e.pool.mu.RUnlock()
	return !e.pool.closed
}

// Stats returns pool counters.
func (e *Engine) Stats() PoolStats { return e.pool.stats() }

// Close destroys all sessions and releases the ORT environment.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		e.pool.close()
		if e.ownsEnv {
			err = releaseEnvironment()
		}
	})
	return err
}

func acquireEnvironment(libPath string) error {
	ortEnv.Lock()
	defer ortEnv.Unlock()
	if ortEnv.refs == 0 && !ort.IsInitialized() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	ortEnv.refs++
	return nil
}

func releaseEnvironment() error {
	ortEnv.Lock()
	defer ortEnv.Unlock()
	if ortEnv.refs == 0 {
		return nil
	}
	ortEnv.refs--
	if ortEnv.refs == 0 && ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}

// ortSession binds one AdvancedSession to its preallocated tensors.
type ortSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newORTSession(cfg Config) (*ortSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer options.Destroy()
	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	// NHWC input
	inputShape := ort.NewShape(1, int64(cfg.InputSize), int64(cfg.InputSize), pipeline.Channels)
	outputShape := ort.NewShape(1, int64(cfg.Candidates), int64(pipeline.BoxFields+1+cfg.NumClasses))

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("output tensor: %w", err)
	}

	s, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("new session: %w", err)
	}
	return &ortSession{session: s, input: input, output: output}, nil
}

func (s *ortSession) run(in []float32) ([]float32, error) {
	copy(s.input.GetData(), in)
	if err := s.session.Run(); err != nil {
		return nil, err
	}
	src := s.output.GetData()
	out := make([]float32, len(src))
	copy(out, src)
	return out, nil
}

func (s *ortSession) destroy() {
	s.session.Destroy()
	s.input.Destroy()
	s.output.Destroy()
}
