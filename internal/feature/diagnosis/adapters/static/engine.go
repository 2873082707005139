// Package static は固定の出力を返す推論エンジンです。
// モデルファイルなしでのローカル開発とエンドツーエンドテストに使います。
package static

import (
	"context"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/pipeline"
)

// Engine は常に全要素0の生出力を返します。
type Engine struct {
	length int
}

var _ pipeline.Engine = (*Engine)(nil)

// NewEngine は candidates 個の候補ブロック（5+numClasses 要素）を返す Engine を生成します。
func NewEngine(candidates, numClasses int) *Engine {
	if candidates < 0 {
		candidates = 0
	}
	if numClasses <= 0 {
		numClasses = pipeline.DefaultNumClasses
	}
	return &Engine{length: candidates * (pipeline.BoxFields + 1 + numClasses)}
}

// Predict は全要素0の配列を返します。
func (e *Engine) Predict(ctx context.Context, _ *pipeline.InputTensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return make([]float32, e.length), nil
}

// Ready は常に true です。
func (e *Engine) Ready() bool { return true }

// Close は何もしません。
func (e *Engine) Close() error { return nil }
