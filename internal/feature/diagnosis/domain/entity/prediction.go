package entity

import "time"

const (
	// SourceURL はURLから取得した画像を表します。
	SourceURL = "url"
	// SourceBase64 はリクエストボディに埋め込まれた画像を表します。
	SourceBase64 = "base64"
)

// PredictionRecord は推論履歴の1件です。
type PredictionRecord struct {
	ID          string
	Disease     string
	Confidence  float32
	BBox        [4]float32
	Source      string // SourceURL または SourceBase64
	ImageDigest string // 画像バイト列のBLAKE2b-256（hex）
	CreatedAt   time.Time
}
