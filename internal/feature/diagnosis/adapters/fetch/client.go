// Package fetch はURLで指定された画像を取得するアダプタです。
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/usecase"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = int64(usecase.MaxImageSize)
	userAgent       = "teabot-image-fetcher/1.0"
)

// Config は画像取得の設定です。
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

// ImageFetcher は resty を使って画像をダウンロードします。
type ImageFetcher struct {
	client   *resty.Client
	maxBytes int64
}

var _ usecase.ImageFetcher = (*ImageFetcher)(nil)

// NewImageFetcher は ImageFetcher を生成します。hc が nil の場合は resty 既定のクライアントを使います。
func NewImageFetcher(cfg Config, hc *http.Client) *ImageFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	var c *resty.Client
	if hc != nil {
		c = resty.NewWithClient(hc)
	} else {
		c = resty.New()
	}
	c.SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "image/*")

	return &ImageFetcher{client: c, maxBytes: cfg.MaxBytes}
}

// Fetch は rawURL に GET し、2xx 応答のボディを返します。
// 転送エラー、2xx 以外、サイズ超過はすべてエラーです。
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	body := resp.RawBody()
	defer body.Close()

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", u.Redacted(), resp.Status())
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds maximum of %d bytes", f.maxBytes)
	}
	return data, nil
}
