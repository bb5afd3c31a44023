package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshrestha/imagetools/internal/model"
)

// ---------------------------------------------------------------------------
// Helpers to create in-memory test images
// ---------------------------------------------------------------------------

func newTestImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// A gradient so resampling and watermarking have texture.
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func createTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, newTestImage(w, h)))
	return buf.Bytes()
}

func createTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, newTestImage(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// decodeSize decodes image bytes and returns the dimensions.
func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := Decode(data)
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

// ---------------------------------------------------------------------------
// Decode
// ---------------------------------------------------------------------------

func TestDecodeFormats(t *testing.T) {
	src := newTestImage(20, 10)
	for _, format := range []model.Format{
		model.FormatJPEG, model.FormatPNG, model.FormatGIF, model.FormatBMP, model.FormatWebP,
	} {
		data, err := Encode(src, format, 90)
		require.NoError(t, err, format)

		img, got, err := Decode(data)
		require.NoError(t, err, format)
		assert.Equal(t, format, got)
		assert.Equal(t, 20, img.Bounds().Dx())
		assert.Equal(t, 10, img.Bounds().Dy())
	}
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeCorruptData(t *testing.T) {
	// A valid PNG signature followed by garbage.
	data := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("garbage")...)
	_, _, err := Decode(data)
	assert.ErrorIs(t, err, ErrCorruptData)
}

// ---------------------------------------------------------------------------
// Convert / Compress
// ---------------------------------------------------------------------------

func TestConvertToWebP(t *testing.T) {
	img, _, err := Decode(createTestPNG(t, 64, 48))
	require.NoError(t, err)

	out, err := Convert(img, model.FormatWebP, 70, nil)
	require.NoError(t, err)
	assert.Equal(t, model.FormatWebP, DetectFormat(out))

	w, h := decodeSize(t, out)
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

func TestConvertWithResize(t *testing.T) {
	img, _, err := Decode(createTestPNG(t, 100, 50))
	require.NoError(t, err)

	out, err := Convert(img, model.FormatJPEG, 85, &model.ResizeSpec{ScalePercent: 50})
	require.NoError(t, err)
	assert.Equal(t, model.FormatJPEG, DetectFormat(out))

	w, h := decodeSize(t, out)
	assert.Equal(t, 50, w)
	assert.Equal(t, 25, h)
}

func TestPNGRoundTripPixelIdentical(t *testing.T) {
	data := createTestPNG(t, 30, 20)
	img, _, err := Decode(data)
	require.NoError(t, err)

	// Quality is ignored for lossless formats.
	out, err := Encode(img, model.FormatPNG, 100)
	require.NoError(t, err)

	again, _, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), again.Bounds())

	// Compare channel values; the decoder may pick a different color
	// model for opaque images.
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			r1, g1, b1, a1 := img.At(x, y).RGBA()
			r2, g2, b2, a2 := again.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				t.Fatalf("pixel (%d,%d) differs after round trip", x, y)
			}
		}
	}
}

func TestCompressProducesJPEG(t *testing.T) {
	img, _, err := Decode(createTestPNG(t, 40, 40))
	require.NoError(t, err)

	out, err := Compress(img, 80)
	require.NoError(t, err)
	assert.Equal(t, model.FormatJPEG, DetectFormat(out))

	w, h := decodeSize(t, out)
	assert.Equal(t, 40, w)
	assert.Equal(t, 40, h)
}

// Compress makes no promise that output is smaller than the input; a
// tiny, already-minimal JPEG can grow. The caller owns the clamping.
func TestCompressMayGrow(t *testing.T) {
	tiny := createTestJPEG(t, 2, 2)
	img, _, err := Decode(tiny)
	require.NoError(t, err)

	out, err := Compress(img, 100)
	require.NoError(t, err)
	assert.Equal(t, model.FormatJPEG, DetectFormat(out))
	// No assertion on size relation; both directions are valid.
}

// ---------------------------------------------------------------------------
// Resize
// ---------------------------------------------------------------------------

func TestResizeAspectRatioDerivation(t *testing.T) {
	img := newTestImage(800, 600)

	out, err := Resize(img, model.ResizeSpec{Width: 400})
	require.NoError(t, err)
	assert.Equal(t, 400, out.Bounds().Dx())
	assert.Equal(t, 300, out.Bounds().Dy()) // round(400 / (800/600))

	// Re-running with the derived target must not change the result.
	again, err := Resize(out, model.ResizeSpec{Width: 400, Height: 300})
	require.NoError(t, err)
	assert.Equal(t, out.Bounds(), again.Bounds())
}

func TestResizeHeightOnly(t *testing.T) {
	img := newTestImage(800, 600)

	out, err := Resize(img, model.ResizeSpec{Height: 150})
	require.NoError(t, err)
	assert.Equal(t, 200, out.Bounds().Dx()) // round(150 * (800/600))
	assert.Equal(t, 150, out.Bounds().Dy())
}

func TestResizeIgnoreAspectRatio(t *testing.T) {
	img := newTestImage(100, 100)

	out, err := Resize(img, model.ResizeSpec{Width: 50, Height: 10, IgnoreAspectRatio: true})
	require.NoError(t, err)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 10, out.Bounds().Dy())

	// Missing dimension stays original when aspect is ignored.
	out, err = Resize(img, model.ResizeSpec{Width: 50, IgnoreAspectRatio: true})
	require.NoError(t, err)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())
}

func TestResizeScalePercent(t *testing.T) {
	img := newTestImage(101, 51)

	out, err := Resize(img, model.ResizeSpec{ScalePercent: 50})
	require.NoError(t, err)
	assert.Equal(t, 51, out.Bounds().Dx()) // round(50.5)
	assert.Equal(t, 26, out.Bounds().Dy()) // round(25.5)
}

func TestResizePreset(t *testing.T) {
	img := newTestImage(4000, 3000)

	out, err := Resize(img, model.ResizeSpec{Preset: "hd"})
	require.NoError(t, err)
	assert.Equal(t, 1280, out.Bounds().Dx())
	assert.Equal(t, 720, out.Bounds().Dy())
}

func TestResizeInvalidParameters(t *testing.T) {
	img := newTestImage(10, 10)

	// Nothing supplied.
	_, err := Resize(img, model.ResizeSpec{})
	assert.ErrorIs(t, err, ErrInvalidParameters)

	// More than one mode supplied.
	_, err = Resize(img, model.ResizeSpec{Width: 50, ScalePercent: 50})
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = Resize(img, model.ResizeSpec{ScalePercent: 50, Preset: "hd"})
	assert.ErrorIs(t, err, ErrInvalidParameters)

	// Unknown preset.
	_, err = Resize(img, model.ResizeSpec{Preset: "imax"})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

// ---------------------------------------------------------------------------
// Crop
// ---------------------------------------------------------------------------

func TestCrop(t *testing.T) {
	img := newTestImage(100, 80)

	out, err := Crop(img, model.CropRect{X: 10, Y: 20, Width: 30, Height: 40})
	require.NoError(t, err)
	assert.Equal(t, 30, out.Bounds().Dx())
	assert.Equal(t, 40, out.Bounds().Dy())
}

func TestCropOutOfBounds(t *testing.T) {
	img := newTestImage(100, 80)

	cases := []model.CropRect{
		{X: -1, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: -1, Width: 10, Height: 10},
		{X: 95, Y: 0, Width: 10, Height: 10}, // x+w > width
		{X: 0, Y: 75, Width: 10, Height: 10}, // y+h > height
		{X: 0, Y: 0, Width: 101, Height: 10},
	}
	for _, rect := range cases {
		out, err := Crop(img, rect)
		assert.ErrorIs(t, err, ErrOutOfBounds, "rect %+v", rect)
		assert.Nil(t, out)
	}
}

func TestCropExactFit(t *testing.T) {
	img := newTestImage(100, 80)

	out, err := Crop(img, model.CropRect{X: 0, Y: 0, Width: 100, Height: 80})
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 80, out.Bounds().Dy())
}

// ---------------------------------------------------------------------------
// Rotate
// ---------------------------------------------------------------------------

func TestRotateRightAngles(t *testing.T) {
	img := newTestImage(100, 50)

	out := Rotate(img, 90)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())

	out = Rotate(img, 180)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())
}

func TestRotateBoundingBox(t *testing.T) {
	img := newTestImage(100, 50)

	for _, degrees := range []float64{15, 45, 77, 133, 250, 359} {
		out := Rotate(img, degrees)
		w := out.Bounds().Dx()
		h := out.Bounds().Dy()
		// The bounding box must never clip content: for angles that are
		// not multiples of 180 it exceeds both original dimensions.
		assert.GreaterOrEqual(t, w, 100, "width at %v degrees", degrees)
		assert.GreaterOrEqual(t, h, 50, "height at %v degrees", degrees)
	}
}

// ---------------------------------------------------------------------------
// Watermark
// ---------------------------------------------------------------------------

func TestWatermarkKeepsDimensions(t *testing.T) {
	img := newTestImage(200, 100)

	out, err := Watermark(img, model.WatermarkSpec{
		Text:           "sample",
		Position:       model.PositionBottomRight,
		OpacityPercent: 80,
		FontSize:       16,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())
}

func TestWatermarkModifiesPixels(t *testing.T) {
	img := newTestImage(200, 100)

	out, err := Watermark(img, model.WatermarkSpec{
		Text:           "WATERMARK",
		Position:       model.PositionCenter,
		OpacityPercent: 100,
		FontSize:       24,
	})
	require.NoError(t, err)

	changed := false
	for y := 0; y < 100 && !changed; y++ {
		for x := 0; x < 200; x++ {
			if out.At(x, y) != img.At(x, y) {
				changed = true
				break
			}
		}
	}
	assert.True(t, changed, "watermark should alter pixels")
}

func TestWatermarkEmptyText(t *testing.T) {
	_, err := Watermark(newTestImage(10, 10), model.WatermarkSpec{})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

// ---------------------------------------------------------------------------
// Engine.Apply
// ---------------------------------------------------------------------------

func TestApplyConvertDefaults(t *testing.T) {
	// No output format and no quality: defaults to JPEG at 85.
	out, format, err := Engine{}.Apply(createTestPNG(t, 32, 32), model.TransformRequest{
		Operation: model.OpConvert,
	})
	require.NoError(t, err)
	assert.Equal(t, model.FormatJPEG, format)
	assert.Equal(t, model.FormatJPEG, DetectFormat(out))
}

func TestApplyKeepsSourceFormat(t *testing.T) {
	// Resize/crop/rotate/watermark re-encode in the source format.
	src := createTestPNG(t, 64, 64)

	out, format, err := Engine{}.Apply(src, model.TransformRequest{
		Operation: model.OpResize,
		Resize:    &model.ResizeSpec{ScalePercent: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, model.FormatPNG, format)

	w, h := decodeSize(t, out)
	assert.Equal(t, 32, w)
	assert.Equal(t, 32, h)
}

func TestApplyMissingSpec(t *testing.T) {
	src := createTestPNG(t, 16, 16)

	for _, op := range []model.Operation{model.OpResize, model.OpCrop, model.OpWatermark} {
		_, _, err := Engine{}.Apply(src, model.TransformRequest{Operation: op})
		assert.ErrorIs(t, err, ErrInvalidParameters, op)
	}

	_, _, err := Engine{}.Apply(src, model.TransformRequest{Operation: "sharpen"})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestApplyPropagatesDecodeErrors(t *testing.T) {
	_, _, err := Engine{}.Apply([]byte("not an image"), model.TransformRequest{
		Operation: model.OpCompress,
	})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
