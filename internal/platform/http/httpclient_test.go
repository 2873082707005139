package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		expected time.Duration
	}{
		{"zero uses default", 0, 30 * time.Second},
		{"negative uses default", -time.Second, 30 * time.Second},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewHTTPClient(tt.timeout)

			assert.Equal(t, tt.expected, c.Timeout)
			tr, ok := c.Transport.(*http.Transport)
			require.True(t, ok, "transport must be *http.Transport")
			assert.Equal(t, tt.expected, tr.ResponseHeaderTimeout)
			assert.Equal(t, 64, tr.MaxIdleConns)
			assert.Equal(t, 8, tr.MaxIdleConnsPerHost)
			assert.Equal(t, 90*time.Second, tr.IdleConnTimeout)
			assert.Equal(t, 5*time.Second, tr.TLSHandshakeTimeout)
			assert.True(t, tr.ForceAttemptHTTP2)
			assert.NotNil(t, tr.Proxy)
			assert.NotNil(t, tr.DialContext)
		})
	}
}

func TestNewHTTPClient_NotShared(t *testing.T) {
	a, b := NewHTTPClient(0), NewHTTPClient(0)
	assert.NotSame(t, a, b)
	assert.NotSame(t, a.Transport, b.Transport)
	assert.NotSame(t, http.DefaultTransport, a.Transport)
}
