package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient は画像取得など外向きリクエスト用のHTTPクライアントを作成します。
//
// 設定:
//   - Proxy: HTTP_PROXY などの環境変数に従う
//   - Dialer.Timeout: TCP接続は5秒で打ち切る
//   - MaxIdleConnsPerHost: 同一の画像ホストへの連続取得で接続を再利用する
//   - ResponseHeaderTimeout: ヘッダが返らないサーバーで待ち続けない
//   - Client.Timeout: リクエスト全体のタイムアウト（0以下なら30秒）
//
// http.DefaultClient はタイムアウトを持たないため使わないこと。
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
