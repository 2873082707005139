// Package pipeline はdiagnosisフィーチャーの検出パイプライン
// （前処理・推論・後処理）を実装します。
package pipeline

// DefaultInputSize はモデル入力の一辺のピクセル数です。
const DefaultInputSize = 640

// Channels はモデル入力のチャネル数（RGB）です。
const Channels = 3

// Letterbox はレターボックス変換のジオメトリです。
// モデル座標から元画像座標への逆変換に使います。
type Letterbox struct {
	Size      int     // 正方形キャンバスの一辺
	Scale     float64 // 元画像 → キャンバスの倍率
	PadX      int     // 左側パディング
	PadY      int     // 上側パディング
	SrcWidth  int
	SrcHeight int
}

// ToImageSpace は中心x, 中心y, 幅, 高さのボックスを元画像のピクセル座標に戻します。
func (g Letterbox) ToImageSpace(box [4]float32) [4]float32 {
	if g.Scale <= 0 {
		return box
	}
	s := float32(g.Scale)
	return [4]float32{
		(box[0] - float32(g.PadX)) / s,
		(box[1] - float32(g.PadY)) / s,
		box[2] / s,
		box[3] / s,
	}
}

// InputTensor はモデルに渡すNHWC float32 テンソルです。
type InputTensor struct {
	Data     []float32 // 行優先、チャネル最後。長さは 1*Size*Size*3
	Shape    [4]int64  // {1, Size, Size, 3}
	Geometry Letterbox
}
