package usecase

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64Image(t *testing.T) {
	t.Parallel()

	payload := []byte{0xfb, 0xff, 0xfe, 0x00, 'l', 'e', 'a', 'f'}

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"standard", base64.StdEncoding.EncodeToString(payload), false},
		{"raw standard", base64.RawStdEncoding.EncodeToString(payload), false},
		{"url safe", base64.URLEncoding.EncodeToString(payload), false},
		{"raw url safe", base64.RawURLEncoding.EncodeToString(payload), false},
		{"data url", "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload), false},
		{"wrapped lines", "  +//+AGxl\r\nYWY=\n", false},
		{"empty", "", true},
		{"data url without payload", "data:image/png;base64,", true},
		{"garbage", "%%%not-base64%%%", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := decodeBase64Image(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}
