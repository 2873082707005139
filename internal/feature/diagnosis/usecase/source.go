package usecase

import (
	"encoding/base64"
	"errors"
	"strings"
)

// MaxImageSize はデコード後の画像の最大サイズ（20MB）です。
const MaxImageSize = 20 * 1024 * 1024

var errEmptyPayload = errors.New("base64 payload is empty")

// decodeBase64Image は base64 文字列を画像バイト列に戻します。
// "data:image/png;base64," 形式のプレフィックスと、標準・URLセーフ・パディングなしの
// いずれのアルファベットも受け付けます。
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, errEmptyPayload
	}

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
