package pipeline

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
)

// mockEngine は Engine インターフェースのモック実装です。
type mockEngine struct {
	PredictFunc  func(ctx context.Context, tensor *InputTensor) ([]float32, error)
	PredictCalls int
}

func (m *mockEngine) Predict(ctx context.Context, tensor *InputTensor) ([]float32, error) {
	m.PredictCalls++
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, tensor)
	}
	return nil, errors.New("PredictFunc is not implemented")
}

func TestDetector_Detect(t *testing.T) {
	black := color.NRGBA{A: 255}

	testCases := []struct {
		name        string
		image       func(t *testing.T) []byte
		predict     func(ctx context.Context, tensor *InputTensor) ([]float32, error)
		wantCalls   int
		wantLabel   string
		wantConf    float32
		expectedErr error
	}{
		{
			name:  "success: all-zero output yields first label",
			image: func(t *testing.T) []byte { return encodePNG(t, solid(640, 640, black)) },
			predict: func(ctx context.Context, tensor *InputTensor) ([]float32, error) {
				return make([]float32, 10*stride), nil
			},
			wantCalls: 1,
			wantLabel: "algal-leaf",
			wantConf:  0,
		},
		{
			name:  "success: picks grey-blight",
			image: func(t *testing.T) []byte { return encodePNG(t, solid(50, 20, black)) },
			predict: func(ctx context.Context, tensor *InputTensor) ([]float32, error) {
				raw := make([]float32, 3*stride)
				raw[2*stride+ObjectnessIndex] = 0.66
				return raw, nil
			},
			wantCalls: 1,
			wantLabel: "grey-blight",
			wantConf:  0.66,
		},
		{
			name:        "error: undecodable bytes never reach the engine",
			image:       func(*testing.T) []byte { return []byte("nope") },
			wantCalls:   0,
			expectedErr: domain.ErrInvalidImage,
		},
		{
			name:  "error: engine failure is tagged as inference error",
			image: func(t *testing.T) []byte { return encodePNG(t, solid(8, 8, black)) },
			predict: func(ctx context.Context, tensor *InputTensor) ([]float32, error) {
				return nil, errors.New("session run failed")
			},
			wantCalls:   1,
			expectedErr: domain.ErrModelInference,
		},
		{
			name:  "error: winning block beyond label table",
			image: func(t *testing.T) []byte { return encodePNG(t, solid(8, 8, black)) },
			predict: func(ctx context.Context, tensor *InputTensor) ([]float32, error) {
				raw := make([]float32, 5*stride)
				raw[4*stride+ObjectnessIndex] = 0.5
				return raw, nil
			},
			wantCalls:   1,
			expectedErr: domain.ErrLabelIndexOutOfRange,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &mockEngine{PredictFunc: tc.predict}
			d := NewDetector(NewPreprocessor(DefaultInputSize), engine, NewDecoder(entity.DefaultLabels))

			det, err := d.Detect(context.Background(), tc.image(t))

			assert.Equal(t, tc.wantCalls, engine.PredictCalls)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, det)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantLabel, det.Label)
			assert.InDelta(t, tc.wantConf, det.Confidence, 1e-6)
		})
	}
}

func TestDetector_PassesTensorToEngine(t *testing.T) {
	var got *InputTensor
	engine := &mockEngine{PredictFunc: func(ctx context.Context, tensor *InputTensor) ([]float32, error) {
		got = tensor
		return nil, nil
	}}
	d := NewDetector(NewPreprocessor(64), engine, NewDecoder(entity.DefaultLabels))

	det, err := d.Detect(context.Background(), encodePNG(t, solid(32, 16, color.NRGBA{A: 255})))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, [4]int64{1, 64, 64, 3}, got.Shape)
	assert.Equal(t, 16, got.Geometry.PadY)
	assert.Equal(t, "algal-leaf", det.Label)
}
