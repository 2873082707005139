package pipeline

import (
	"context"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
)

// Engine は前処理済みテンソルから生の検出配列を返す推論エンジンです。
// Goの慣例に従い、インターフェースは利用者側で定義します。
type Engine interface {
	// Predict は1回の推論を行い、フラットな float32 配列を返します。
	Predict(ctx context.Context, tensor *InputTensor) ([]float32, error)
}

// Detector は前処理・推論・後処理を1リクエスト1回の推論で合成します。
type Detector struct {
	pre     *Preprocessor
	engine  Engine
	decoder *Decoder
}

// NewDetector は Detector を生成します。
func NewDetector(pre *Preprocessor, engine Engine, decoder *Decoder) *Detector {
	return &Detector{pre: pre, engine: engine, decoder: decoder}
}

// Detect は画像バイト列から最も信頼度の高い病害を検出します。
func (d *Detector) Detect(ctx context.Context, imageData []byte) (*entity.Detection, error) {
	tensor, err := d.pre.Preprocess(imageData)
	if err != nil {
		return nil, err
	}

	raw, err := d.engine.Predict(ctx, tensor)
	if err != nil {
		if domain.Tagged(err) {
			return nil, err
		}
		return nil, domain.NewError(domain.ErrModelInference, "predict", err)
	}

	det, err := d.decoder.DecodeTensor(raw, tensor.Geometry)
	if err != nil {
		return nil, err
	}
	return &det, nil
}
