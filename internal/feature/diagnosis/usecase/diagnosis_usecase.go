// Package usecase はdiagnosisフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
	"github.com/Kyalo-Caleb/teabot/internal/shared/imagedigest"
)

const (
	// DefaultHistoryLimit は履歴取得のデフォルト件数です。
	DefaultHistoryLimit = 20
	// MaxHistoryLimit は履歴取得の最大件数です。
	MaxHistoryLimit = 200
)

// Detector は画像バイト列から病害を検出するインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Detector interface {
	// Detect は画像から最も信頼度の高い検出結果を1件返します。
	Detect(ctx context.Context, imageData []byte) (*entity.Detection, error)
}

// ImageFetcher はURLから画像を取得するインターフェースです。
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PredictionRepository は推論履歴の永続化インターフェースです。
type PredictionRepository interface {
	Save(ctx context.Context, rec *entity.PredictionRecord) error
	ListRecent(ctx context.Context, limit int) ([]entity.PredictionRecord, error)
}

// Observer は推論結果をメトリクスなどへ通知します。
type Observer interface {
	ObservePrediction(label string, confidence float32, elapsed time.Duration)
	ObserveFailure(code string)
}

// diagnosisUsecase は画像の解決・検出・履歴記録を束ねます。
type diagnosisUsecase struct {
	detector Detector
	fetcher  ImageFetcher
	repo     PredictionRepository // nil の場合は履歴を記録しない
	observer Observer             // nil 可
	now      func() time.Time
}

// NewDiagnosisUsecase はdiagnosisUsecaseの新しいインスタンスを生成します。
// repo と observer は nil を許容します。
func NewDiagnosisUsecase(d Detector, f ImageFetcher, repo PredictionRepository, obs Observer) *diagnosisUsecase {
	return &diagnosisUsecase{
		detector: d,
		fetcher:  f,
		repo:     repo,
		observer: obs,
		now:      time.Now,
	}
}

// Diagnose は画像を取得（URL）またはデコード（base64）し、病害を検出します。
func (u *diagnosisUsecase) Diagnose(ctx context.Context, src entity.ImageSource) (*entity.Detection, error) {
	start := u.now()

	det, digest, err := u.diagnose(ctx, src)
	if err != nil {
		if u.observer != nil {
			u.observer.ObserveFailure(domain.CodeOf(err))
		}
		return nil, err
	}

	if u.observer != nil {
		u.observer.ObservePrediction(det.Label, det.Confidence, u.now().Sub(start))
	}
	u.record(ctx, det, src.Kind(), digest)
	return det, nil
}

func (u *diagnosisUsecase) diagnose(ctx context.Context, src entity.ImageSource) (*entity.Detection, string, error) {
	if src.Image == "" {
		return nil, "", domain.NewError(domain.ErrMissingInput, "diagnose", nil)
	}

	data, err := u.resolve(ctx, src)
	if err != nil {
		return nil, "", err
	}

	det, err := u.detector.Detect(ctx, data)
	if err != nil {
		return nil, "", err
	}
	return det, imagedigest.Sum(data), nil
}

// resolve は画像指定をバイト列にします。
func (u *diagnosisUsecase) resolve(ctx context.Context, src entity.ImageSource) ([]byte, error) {
	if src.IsURL {
		if u.fetcher == nil {
			return nil, domain.NewError(domain.ErrFetch, "fetch", fmt.Errorf("no image fetcher configured"))
		}
		data, err := u.fetcher.Fetch(ctx, src.Image)
		if err != nil {
			return nil, domain.NewError(domain.ErrFetch, "fetch", err)
		}
		return data, nil
	}

	data, err := decodeBase64Image(src.Image)
	if err != nil {
		return nil, domain.NewError(domain.ErrInvalidImage, "base64", err)
	}
	if len(data) > MaxImageSize {
		return nil, domain.NewError(domain.ErrInvalidImage, "base64",
			fmt.Errorf("image size exceeds maximum of %d bytes", MaxImageSize))
	}
	return data, nil
}

// record は履歴を保存します。失敗はログに残すだけでリクエストには影響させません。
func (u *diagnosisUsecase) record(ctx context.Context, det *entity.Detection, source, digest string) {
	if u.repo == nil {
		return
	}
	rec := &entity.PredictionRecord{
		ID:          uuid.NewString(),
		Disease:     det.Label,
		Confidence:  det.Confidence,
		BBox:        det.BBox,
		Source:      source,
		ImageDigest: digest,
		CreatedAt:   u.now().UTC(),
	}
	if err := u.repo.Save(ctx, rec); err != nil {
		slog.Warn("failed to save prediction record", "id", rec.ID, "error", err)
	}
}

// RecentPredictions は新しい順に推論履歴を返します。
func (u *diagnosisUsecase) RecentPredictions(ctx context.Context, limit int) ([]entity.PredictionRecord, error) {
	if u.repo == nil {
		return []entity.PredictionRecord{}, nil
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	recs, err := u.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent predictions: %w", err)
	}
	return recs, nil
}
