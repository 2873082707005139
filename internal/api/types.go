// Package api はHTTP APIのリクエスト・レスポンス型を定義します。
package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// ErrorResponse はJSONで返すエラーです。
type ErrorResponse struct {
	Error string `json:"error"`
}

// DetectRequest は病害検出リクエストのボディです。
type DetectRequest struct {
	Image string `json:"image"`
	IsURL Flag   `json:"isUrl"`
}

// Flag は JavaScript の真偽判定に合わせて解釈する真偽値です。
// null・false・0・"" は偽、それ以外（"false" を含む文字列、非0の数値、配列、オブジェクト）は真です。
type Flag bool

// UnmarshalJSON は任意のJSON値を Flag として解釈します。
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*f = false
	case bytes.Equal(data, []byte("true")):
		*f = true
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = s != ""
	case data[0] == '[' || data[0] == '{':
		*f = true
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = n != 0
	}
	return nil
}

// DetectResponse は病害検出の結果です。
type DetectResponse struct {
	Disease    string     `json:"disease"`
	Confidence float32    `json:"confidence"`
	BBox       [4]float32 `json:"bbox"`
}

// PredictionResponse は推論履歴の1件です。
type PredictionResponse struct {
	ID          string     `json:"id"`
	Disease     string     `json:"disease"`
	Confidence  float32    `json:"confidence"`
	BBox        [4]float32 `json:"bbox"`
	Source      string     `json:"source"`
	ImageDigest string     `json:"imageDigest"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// PredictionListResponse は推論履歴一覧です。
type PredictionListResponse struct {
	Items []PredictionResponse `json:"items"`
	Count int                  `json:"count"`
}

// HealthResponse はヘルスチェックの結果です。
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}
