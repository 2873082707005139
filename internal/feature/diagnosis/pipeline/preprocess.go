package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // GIF デコーダ登録
	_ "image/jpeg" // JPEG デコーダ登録
	_ "image/png"  // PNG デコーダ登録
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP デコーダ登録
	_ "golang.org/x/image/tiff" // TIFF デコーダ登録
	_ "golang.org/x/image/webp" // WebP デコーダ登録

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain"
)

// Preprocessor は画像をレターボックス済みのモデル入力テンソルに変換します。
// 状態を持たないため並行に使用できます。
type Preprocessor struct {
	size   int
	filter imaging.ResampleFilter
}

// NewPreprocessor は一辺 size ピクセルの正方形入力を作る Preprocessor を生成します。
// size が 0 以下の場合は DefaultInputSize を使います。
func NewPreprocessor(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultInputSize
	}
	return &Preprocessor{size: size, filter: imaging.Lanczos}
}

// Size はキャンバスの一辺を返します。
func (p *Preprocessor) Size() int { return p.size }

// DecodeImage はエンコード済みバイト列を画像にデコードします。
// EXIF の向き補正は行いません。
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image buffer")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Preprocess はバイト列をデコードしてテンソルに変換します。
func (p *Preprocessor) Preprocess(data []byte) (*InputTensor, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, domain.NewError(domain.ErrInvalidImage, "preprocess", err)
	}
	return p.PreprocessImage(img)
}

// PreprocessImage は長辺がキャンバスに一致するよう等倍率でリサイズし、
// 黒背景の中央に配置して [0,1] に正規化します。アルファは捨てます。
func (p *Preprocessor) PreprocessImage(img image.Image) (*InputTensor, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, domain.NewError(domain.ErrInvalidImage, "preprocess",
			fmt.Errorf("image has zero size (%dx%d)", w, h))
	}

	size := p.size
	scale := float64(size) / float64(max(w, h))
	nw := clampDim(int(math.Round(float64(w)*scale)), size)
	nh := clampDim(int(math.Round(float64(h)*scale)), size)

	resized := imaging.Resize(img, nw, nh, p.filter)
	padX := (size - nw) / 2
	padY := (size - nh) / 2

	// Paste はブレンドせず画素をそのままコピーする
	canvas := imaging.New(size, size, color.NRGBA{A: 0xff})
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	data := make([]float32, size*size*Channels)
	for y := 0; y < size; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+size*4]
		base := y * size * Channels
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+3]
			o := base + x*Channels
			data[o] = float32(px[0]) / 255
			data[o+1] = float32(px[1]) / 255
			data[o+2] = float32(px[2]) / 255
		}
	}

	return &InputTensor{
		Data:  data,
		Shape: [4]int64{1, int64(size), int64(size), Channels},
		Geometry: Letterbox{
			Size:      size,
			Scale:     scale,
			PadX:      padX,
			PadY:      padY,
			SrcWidth:  w,
			SrcHeight: h,
		},
	}, nil
}

func clampDim(v, limit int) int {
	if v < 1 {
		return 1
	}
	if v > limit {
		return limit
	}
	return v
}
