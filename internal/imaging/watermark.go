package imaging

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/rshrestha/imagetools/internal/model"
)

// Watermark defaults applied when the caller leaves fields zero.
const (
	defaultWatermarkSize    = 24
	defaultWatermarkOpacity = 100
	watermarkMargin         = 20
)

var (
	fontOnce   sync.Once
	fontParsed *opentype.Font
	fontErr    error
)

func watermarkFace(size int) (font.Face, error) {
	fontOnce.Do(func() {
		fontParsed, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("parsing watermark font: %w", fontErr)
	}
	return opentype.NewFace(fontParsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Watermark overlays spec.Text on img with an outlined fill (dark
// stroke under a light fill, for legibility over arbitrary
// backgrounds). Long text is not wrapped.
func Watermark(img image.Image, spec model.WatermarkSpec) (image.Image, error) {
	if spec.Text == "" {
		return nil, fmt.Errorf("%w: watermark text is empty", ErrInvalidParameters)
	}

	size := spec.FontSize
	if size <= 0 {
		size = defaultWatermarkSize
	}
	opacity := spec.OpacityPercent
	if opacity <= 0 {
		opacity = defaultWatermarkOpacity
	}
	if opacity > 100 {
		opacity = 100
	}

	face, err := watermarkFace(size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	canvas := imaging.Clone(img)
	d := &font.Drawer{Dst: canvas, Face: face}
	textWidth := d.MeasureString(spec.Text).Ceil()

	w := canvas.Bounds().Dx()
	h := canvas.Bounds().Dy()

	// Baseline anchor per position.
	var x, y int
	switch spec.Position {
	case model.PositionTopLeft:
		x, y = watermarkMargin, size+watermarkMargin
	case model.PositionTopRight:
		x, y = w-textWidth-watermarkMargin, size+watermarkMargin
	case model.PositionBottomLeft:
		x, y = watermarkMargin, h-watermarkMargin
	case model.PositionBottomRight:
		x, y = w-textWidth-watermarkMargin, h-watermarkMargin
	default: // center
		x, y = (w-textWidth)/2, h/2
	}

	alpha := uint8(opacity * 255 / 100)
	stroke := image.NewUniform(color.NRGBA{A: alpha})
	fill := image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: alpha})

	// Stroke first: the text drawn in dark at surrounding offsets.
	d.Src = stroke
	for _, off := range [][2]int{{-2, 0}, {2, 0}, {0, -2}, {0, 2}, {-1, -1}, {1, -1}, {-1, 1}, {1, 1}} {
		d.Dot = fixed.P(x+off[0], y+off[1])
		d.DrawString(spec.Text)
	}

	d.Src = fill
	d.Dot = fixed.P(x, y)
	d.DrawString(spec.Text)

	return canvas, nil
}
