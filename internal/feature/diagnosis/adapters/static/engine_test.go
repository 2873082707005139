package static

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Predict(t *testing.T) {
	e := NewEngine(3, 80)

	out, err := e.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, out, 3*85)
	for _, v := range out {
		assert.Zero(t, v)
	}
	assert.True(t, e.Ready())
	assert.NoError(t, e.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Predict(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)

	out, err = NewEngine(0, 0).Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
