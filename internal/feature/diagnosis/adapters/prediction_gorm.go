package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/usecase"
)

type predictionGorm struct {
	db *gorm.DB
}

var _ usecase.PredictionRepository = (*predictionGorm)(nil)

func NewPredictionRepository(db *gorm.DB) *predictionGorm {
	return &predictionGorm{db: db}
}

type PredictionModel struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Disease     string    `gorm:"size:64;not null;index"`
	Confidence  float32   `gorm:"not null"`
	BoxCX       float32   `gorm:"not null;default:0"`
	BoxCY       float32   `gorm:"not null;default:0"`
	BoxW        float32   `gorm:"not null;default:0"`
	BoxH        float32   `gorm:"not null;default:0"`
	Source      string    `gorm:"size:16;not null"`
	ImageDigest string    `gorm:"size:64;index"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (PredictionModel) TableName() string {
	return "predictions"
}

func toModel(e *entity.PredictionRecord) PredictionModel {
	return PredictionModel{
		ID:          e.ID,
		Disease:     e.Disease,
		Confidence:  e.Confidence,
		BoxCX:       e.BBox[0],
		BoxCY:       e.BBox[1],
		BoxW:        e.BBox[2],
		BoxH:        e.BBox[3],
		Source:      e.Source,
		ImageDigest: e.ImageDigest,
		CreatedAt:   e.CreatedAt,
	}
}

func toEntity(m PredictionModel) entity.PredictionRecord {
	return entity.PredictionRecord{
		ID:          m.ID,
		Disease:     m.Disease,
		Confidence:  m.Confidence,
		BBox:        [4]float32{m.BoxCX, m.BoxCY, m.BoxW, m.BoxH},
		Source:      m.Source,
		ImageDigest: m.ImageDigest,
		CreatedAt:   m.CreatedAt,
	}
}

func (r *predictionGorm) Save(ctx context.Context, rec *entity.PredictionRecord) error {
	m := toModel(rec)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *predictionGorm) ListRecent(ctx context.Context, limit int) ([]entity.PredictionRecord, error) {
	var rows []PredictionModel
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.PredictionRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, toEntity(m))
	}
	return out, nil
}
