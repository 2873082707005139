package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		body     string
		expected bool
	}{
		{`{"isUrl":true}`, true},
		{`{"isUrl":false}`, false},
		{`{"isUrl":null}`, false},
		{`{}`, false},
		{`{"isUrl":1}`, true},
		{`{"isUrl":0}`, false},
		{`{"isUrl":-0.5}`, true},
		{`{"isUrl":"true"}`, true},
		{`{"isUrl":"false"}`, true},
		{`{"isUrl":""}`, false},
		{`{"isUrl":[]}`, true},
		{`{"isUrl":{}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req DetectRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.expected, bool(req.IsURL))
		})
	}
}

func TestFlag_MarshalsAsBool(t *testing.T) {
	b, err := json.Marshal(DetectRequest{Image: "x", IsURL: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"image":"x","isUrl":true}`, string(b))
}
