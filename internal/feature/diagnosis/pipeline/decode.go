package pipeline

import (
	"fmt"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
)

const (
	// BoxFields は候補ブロック先頭のボックス要素数（cx, cy, w, h）です。
	BoxFields = 4
	// ObjectnessIndex は候補ブロック内の信頼度の位置です。
	ObjectnessIndex = 4
	// DefaultNumClasses はモデルのクラススコア数です。ストライドは 5+80=85。
	DefaultNumClasses = 80
)

// BBoxSpace はレスポンスのボックス座標系です。
type BBoxSpace string

const (
	// BBoxSpaceModel はモデル出力の座標をそのまま返します。
	BBoxSpaceModel BBoxSpace = "model"
	// BBoxSpaceImage はレターボックスの逆変換を適用し元画像の座標で返します。
	BBoxSpaceImage BBoxSpace = "image"
)

// Decoder はモデルの生出力から最も信頼度の高い候補を選びます。
type Decoder struct {
	labels    entity.LabelTable
	stride    int
	bboxSpace BBoxSpace
}

// DecoderOption は Decoder の設定を変更します。
type DecoderOption func(*Decoder)

// WithNumClasses はクラス数を指定します（ストライド = 5 + n）。
func WithNumClasses(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.stride = BoxFields + 1 + n
		}
	}
}

// WithBBoxSpace はボックスの座標系を指定します。
func WithBBoxSpace(space BBoxSpace) DecoderOption {
	return func(d *Decoder) {
		if space == BBoxSpaceImage {
			d.bboxSpace = BBoxSpaceImage
		}
	}
}

// NewDecoder はラベル表を明示的に受け取って Decoder を生成します。
func NewDecoder(labels entity.LabelTable, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		labels:    labels,
		stride:    BoxFields + 1 + DefaultNumClasses,
		bboxSpace: BBoxSpaceModel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stride は候補ブロックの長さを返します。
func (d *Decoder) Stride() int { return d.stride }

// candidate は勝ち候補の位置です。ラベルインデックスは Block であり、
// Offset から割り算で求め直すことはしません。
type candidate struct {
	Block      int
	Offset     int
	Confidence float32
}

// best は raw を stride ごとに走査し、信頼度が厳密に大きい候補で更新します。
// 同値は先勝ち、NaN は比較が偽になるため勝ちません。
func (d *Decoder) best(raw []float32) candidate {
	var c candidate
	for block, i := 0, 0; i+ObjectnessIndex < len(raw); block, i = block+1, i+d.stride {
		if conf := raw[i+ObjectnessIndex]; conf > c.Confidence {
			c = candidate{Block: block, Offset: i, Confidence: conf}
		}
	}
	return c
}

// Decode は生出力から単一の検出結果を返します。ボックスはモデル座標のままです。
func (d *Decoder) Decode(raw []float32) (entity.Detection, error) {
	c := d.best(raw)
	if c.Block >= len(d.labels) {
		return entity.Detection{}, domain.NewError(domain.ErrLabelIndexOutOfRange, "decode",
			fmt.Errorf("block %d has no label (table size %d)", c.Block, len(d.labels)))
	}

	var box [4]float32
	if c.Offset < len(raw) {
		copy(box[:], raw[c.Offset:min(len(raw), c.Offset+BoxFields)])
	}

	return entity.Detection{
		Label:      d.labels[c.Block],
		Confidence: c.Confidence,
		BBox:       box,
		Block:      c.Block,
	}, nil
}

// DecodeTensor は Decode に加え、設定に応じてボックスを元画像座標に戻します。
func (d *Decoder) DecodeTensor(raw []float32, geom Letterbox) (entity.Detection, error) {
	det, err := d.Decode(raw)
	if err != nil {
		return det, err
	}
	if d.bboxSpace == BBoxSpaceImage {
		det.BBox = geom.ToImageSpace(det.BBox)
	}
	return det, nil
}
