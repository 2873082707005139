package usecase_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/usecase"
	"github.com/Kyalo-Caleb/teabot/internal/shared/imagedigest"
)

// ErrBackend はモックと期待値の間で共有されるセンチネルエラーです。
var ErrBackend = errors.New("backend error")

// mockDetector はDetectorインターフェースのモック実装です。
type mockDetector struct {
	DetectFunc  func(ctx context.Context, imageData []byte) (*entity.Detection, error)
	DetectCalls int
	LastImage   []byte
}

func (m *mockDetector) Detect(ctx context.Context, imageData []byte) (*entity.Detection, error) {
	m.DetectCalls++
	m.LastImage = imageData
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, imageData)
	}
	return nil, errors.New("DetectFunc is not implemented")
}

// mockFetcher はImageFetcherインターフェースのモック実装です。
type mockFetcher struct {
	FetchFunc  func(ctx context.Context, url string) ([]byte, error)
	FetchCalls int
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.FetchCalls++
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url)
	}
	return nil, errors.New("FetchFunc is not implemented")
}

// mockRepo はPredictionRepositoryインターフェースのモック実装です。
type mockRepo struct {
	SaveFunc       func(ctx context.Context, rec *entity.PredictionRecord) error
	ListRecentFunc func(ctx context.Context, limit int) ([]entity.PredictionRecord, error)
	Saved          []*entity.PredictionRecord
	LastLimit      int
}

func (m *mockRepo) Save(ctx context.Context, rec *entity.PredictionRecord) error {
	m.Saved = append(m.Saved, rec)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, rec)
	}
	return nil
}

func (m *mockRepo) ListRecent(ctx context.Context, limit int) ([]entity.PredictionRecord, error) {
	m.LastLimit = limit
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit)
	}
	return nil, nil
}

// mockObserver はObserverインターフェースのモック実装です。
type mockObserver struct {
	Predictions []string
	Failures    []string
}

func (m *mockObserver) ObservePrediction(label string, confidence float32, elapsed time.Duration) {
	m.Predictions = append(m.Predictions, label)
}

func (m *mockObserver) ObserveFailure(code string) {
	m.Failures = append(m.Failures, code)
}

func TestDiagnosisUsecase_Diagnose(t *testing.T) {
	ctx := context.Background()
	imageBytes := []byte("png-bytes")
	detection := &entity.Detection{Label: "brown-blight", Confidence: 0.8, BBox: [4]float32{1, 2, 3, 4}, Block: 1}

	testCases := []struct {
		name         string
		src          entity.ImageSource
		fetchFunc    func(ctx context.Context, url string) ([]byte, error)
		detectFunc   func(ctx context.Context, imageData []byte) (*entity.Detection, error)
		wantFetch    int
		wantDetect   int
		wantSaved    int
		wantSource   string
		expectedErr  error
		expectedCode string
	}{
		{
			name: "success: base64 image",
			src:  entity.ImageSource{Image: base64.StdEncoding.EncodeToString(imageBytes)},
			detectFunc: func(ctx context.Context, data []byte) (*entity.Detection, error) {
				return detection, nil
			},
			wantDetect: 1,
			wantSaved:  1,
			wantSource: entity.SourceBase64,
		},
		{
			name: "success: url image",
			src:  entity.ImageSource{Image: "https://example.com/leaf.jpg", IsURL: true},
			fetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return imageBytes, nil
			},
			detectFunc: func(ctx context.Context, data []byte) (*entity.Detection, error) {
				return detection, nil
			},
			wantFetch:  1,
			wantDetect: 1,
			wantSaved:  1,
			wantSource: entity.SourceURL,
		},
		{
			name:         "error: empty image",
			src:          entity.ImageSource{},
			expectedErr:  domain.ErrMissingInput,
			expectedCode: domain.CodeMissingInput,
		},
		{
			name:         "error: bad base64",
			src:          entity.ImageSource{Image: "!!!"},
			expectedErr:  domain.ErrInvalidImage,
			expectedCode: domain.CodeInvalidImage,
		},
		{
			name: "error: fetch failure",
			src:  entity.ImageSource{Image: "http://unreachable.invalid/x.png", IsURL: true},
			fetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return nil, ErrBackend
			},
			wantFetch:    1,
			expectedErr:  domain.ErrFetch,
			expectedCode: domain.CodeFetchFailed,
		},
		{
			name: "error: detector failure propagates unchanged",
			src:  entity.ImageSource{Image: base64.StdEncoding.EncodeToString(imageBytes)},
			detectFunc: func(ctx context.Context, data []byte) (*entity.Detection, error) {
				return nil, domain.NewError(domain.ErrModelInference, "predict", ErrBackend)
			},
			wantDetect:   1,
			expectedErr:  ErrBackend,
			expectedCode: domain.CodeInferenceFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			det := &mockDetector{DetectFunc: tc.detectFunc}
			fetcher := &mockFetcher{FetchFunc: tc.fetchFunc}
			repo := &mockRepo{}
			obs := &mockObserver{}
			uc := usecase.NewDiagnosisUsecase(det, fetcher, repo, obs)

			got, err := uc.Diagnose(ctx, tc.src)

			assert.Equal(t, tc.wantFetch, fetcher.FetchCalls)
			assert.Equal(t, tc.wantDetect, det.DetectCalls)
			require.Len(t, repo.Saved, tc.wantSaved)

			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, got)
				assert.Equal(t, []string{tc.expectedCode}, obs.Failures)
				assert.Empty(t, obs.Predictions)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, detection, got)
			assert.Equal(t, imageBytes, det.LastImage)
			assert.Equal(t, []string{"brown-blight"}, obs.Predictions)

			rec := repo.Saved[0]
			assert.NotEmpty(t, rec.ID)
			assert.Equal(t, "brown-blight", rec.Disease)
			assert.Equal(t, tc.wantSource, rec.Source)
			assert.Equal(t, imagedigest.Sum(imageBytes), rec.ImageDigest)
			assert.Equal(t, [4]float32{1, 2, 3, 4}, rec.BBox)
		})
	}
}

func TestDiagnosisUsecase_SaveFailureIsNotSurfaced(t *testing.T) {
	det := &mockDetector{DetectFunc: func(ctx context.Context, data []byte) (*entity.Detection, error) {
		return &entity.Detection{Label: "algal-leaf"}, nil
	}}
	repo := &mockRepo{SaveFunc: func(ctx context.Context, rec *entity.PredictionRecord) error {
		return ErrBackend
	}}
	uc := usecase.NewDiagnosisUsecase(det, nil, repo, nil)

	got, err := uc.Diagnose(context.Background(), entity.ImageSource{Image: "bGVhZg=="})
	require.NoError(t, err)
	assert.Equal(t, "algal-leaf", got.Label)
	assert.Len(t, repo.Saved, 1)
}

func TestDiagnosisUsecase_URLWithoutFetcher(t *testing.T) {
	uc := usecase.NewDiagnosisUsecase(&mockDetector{}, nil, nil, nil)

	_, err := uc.Diagnose(context.Background(), entity.ImageSource{Image: "http://x", IsURL: true})
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestDiagnosisUsecase_RecentPredictions(t *testing.T) {
	records := []entity.PredictionRecord{{ID: "a"}, {ID: "b"}}

	testCases := []struct {
		name      string
		limit     int
		listFunc  func(ctx context.Context, limit int) ([]entity.PredictionRecord, error)
		wantLimit int
		wantErr   bool
	}{
		{"default limit", 0, nil, usecase.DefaultHistoryLimit, false},
		{"negative limit", -3, nil, usecase.DefaultHistoryLimit, false},
		{"capped limit", 10_000, nil, usecase.MaxHistoryLimit, false},
		{"explicit limit", 5, func(ctx context.Context, limit int) ([]entity.PredictionRecord, error) {
			return records, nil
		}, 5, false},
		{"repository error", 5, func(ctx context.Context, limit int) ([]entity.PredictionRecord, error) {
			return nil, ErrBackend
		}, 5, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockRepo{ListRecentFunc: tc.listFunc}
			uc := usecase.NewDiagnosisUsecase(&mockDetector{}, nil, repo, nil)

			got, err := uc.RecentPredictions(context.Background(), tc.limit)
			assert.Equal(t, tc.wantLimit, repo.LastLimit)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBackend)
				return
			}
			require.NoError(t, err)
			if tc.listFunc != nil {
				assert.Equal(t, records, got)
			}
		})
	}

	t.Run("no repository configured", func(t *testing.T) {
		uc := usecase.NewDiagnosisUsecase(&mockDetector{}, nil, nil, nil)
		got, err := uc.RecentPredictions(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
