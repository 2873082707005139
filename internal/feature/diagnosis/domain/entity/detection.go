// Package entity はdiagnosisフィーチャーのドメインモデルを定義します。
package entity

// LabelTable は候補ブロック番号と病名を対応付ける順序付きの表です。
type LabelTable []string

// DefaultLabels は茶葉病害モデルのデフォルトラベルです。
var DefaultLabels = LabelTable{"algal-leaf", "brown-blight", "grey-blight"}

// Detection はモデル出力から選ばれた単一の検出結果を表します。
type Detection struct {
	Label      string     // 病名
	Confidence float32    // objectnessスコア（クランプも検証もしない）
	BBox       [4]float32 // 中心x, 中心y, 幅, 高さ
	Block      int        // 勝ち候補のブロック番号（ラベルインデックスと一致）
}

// ImageSource はリクエストで受け取った画像の指定です。
type ImageSource struct {
	Image string // URL または base64 文字列
	IsURL bool
}

// Kind は画像の取得方法を返します。
func (s ImageSource) Kind() string {
	if s.IsURL {
		return SourceURL
	}
	return SourceBase64
}
