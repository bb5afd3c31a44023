package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/rshrestha/imagetools/internal/model"
)

// DefaultQuality is used when a request does not specify one.
const DefaultQuality = 85

// Engine applies transform requests to raster images. It is stateless;
// the zero value is ready to use.
type Engine struct{}

// Apply decodes data, runs the requested operation and re-encodes the
// result. It returns the encoded bytes and the output format.
func (Engine) Apply(data []byte, req model.TransformRequest) ([]byte, model.Format, error) {
	img, srcFormat, err := Decode(data)
	if err != nil {
		return nil, "", err
	}

	quality := req.Quality
	if quality == 0 {
		quality = DefaultQuality
	}

	switch req.Operation {
	case model.OpConvert:
		format := req.OutputFormat
		if format == "" {
			format = model.FormatJPEG
		}
		out, err := Convert(img, format, quality, req.Resize)
		return out, format, err

	case model.OpCompress:
		out, err := Compress(img, quality)
		return out, model.FormatJPEG, err

	case model.OpResize:
		if req.Resize == nil {
			return nil, "", fmt.Errorf("%w: resize spec required", ErrInvalidParameters)
		}
		resized, err := Resize(img, *req.Resize)
		if err != nil {
			return nil, "", err
		}
		out, err := Encode(resized, srcFormat, quality)
		return out, srcFormat, err

	case model.OpCrop:
		if req.Crop == nil {
			return nil, "", fmt.Errorf("%w: crop rectangle required", ErrInvalidParameters)
		}
		cropped, err := Crop(img, *req.Crop)
		if err != nil {
			return nil, "", err
		}
		out, err := Encode(cropped, srcFormat, quality)
		return out, srcFormat, err

	case model.OpRotate:
		rotated := Rotate(img, req.RotationDegrees)
		out, err := Encode(rotated, srcFormat, quality)
		return out, srcFormat, err

	case model.OpWatermark:
		if req.Watermark == nil {
			return nil, "", fmt.Errorf("%w: watermark spec required", ErrInvalidParameters)
		}
		marked, err := Watermark(img, *req.Watermark)
		if err != nil {
			return nil, "", err
		}
		out, err := Encode(marked, srcFormat, quality)
		return out, srcFormat, err

	default:
		return nil, "", fmt.Errorf("%w: unknown operation %q", ErrInvalidParameters, req.Operation)
	}
}

// Convert re-encodes img into format at the given quality, resampling
// first when spec is non-nil.
func Convert(img image.Image, format model.Format, quality int, spec *model.ResizeSpec) ([]byte, error) {
	if spec != nil {
		resized, err := Resize(img, *spec)
		if err != nil {
			return nil, err
		}
		img = resized
	}
	return Encode(img, format, quality)
}

// Compress re-encodes img as JPEG at the given quality. Dimensions are
// unchanged. The output is not guaranteed to be smaller than the input;
// callers must treat a negative byte delta as zero savings.
func Compress(img image.Image, quality int) ([]byte, error) {
	return Encode(img, model.FormatJPEG, quality)
}

// Resize resamples img per spec using Lanczos interpolation. Exactly one
// of the width/height pair, ScalePercent, or Preset must be supplied.
func Resize(img image.Image, spec model.ResizeSpec) (image.Image, error) {
	w, h, err := targetSize(img.Bounds().Dx(), img.Bounds().Dy(), spec)
	if err != nil {
		return nil, err
	}
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}

// targetSize resolves a resize spec against the original dimensions.
func targetSize(origW, origH int, spec model.ResizeSpec) (int, int, error) {
	hasDims := spec.Width > 0 || spec.Height > 0
	hasScale := spec.ScalePercent > 0
	hasPreset := spec.Preset != ""

	modes := 0
	for _, set := range []bool{hasDims, hasScale, hasPreset} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return 0, 0, fmt.Errorf("%w: exactly one of dimensions, scale or preset must be set", ErrInvalidParameters)
	}
	if spec.Width < 0 || spec.Height < 0 {
		return 0, 0, fmt.Errorf("%w: dimensions must be positive", ErrInvalidParameters)
	}

	switch {
	case hasScale:
		factor := float64(spec.ScalePercent) / 100
		return atLeastOne(round(float64(origW) * factor)), atLeastOne(round(float64(origH) * factor)), nil

	case hasPreset:
		preset, ok := model.ResizePresets[spec.Preset]
		if !ok {
			return 0, 0, fmt.Errorf("%w: unknown preset %q", ErrInvalidParameters, spec.Preset)
		}
		return preset.Width, preset.Height, nil

	default:
		w, h := spec.Width, spec.Height
		if spec.IgnoreAspectRatio {
			// Take dimensions literally; missing ones stay original.
			if w == 0 {
				w = origW
			}
			if h == 0 {
				h = origH
			}
			return w, h, nil
		}
		aspect := float64(origW) / float64(origH)
		switch {
		case w > 0 && h > 0:
			return w, h, nil
		case w > 0:
			return w, atLeastOne(round(float64(w) / aspect)), nil
		default:
			return atLeastOne(round(float64(h) * aspect)), h, nil
		}
	}
}

// Crop cuts rect out of img. The result is exactly rect.Width x
// rect.Height; a rectangle extending past any edge fails with
// ErrOutOfBounds.
func Crop(img image.Image, rect model.CropRect) (image.Image, error) {
	if rect.Width <= 0 || rect.Height <= 0 {
		return nil, fmt.Errorf("%w: crop dimensions must be positive", ErrInvalidParameters)
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if rect.X < 0 || rect.Y < 0 || rect.X+rect.Width > w || rect.Y+rect.Height > h {
		return nil, fmt.Errorf("%w: rect %dx%d+%d+%d exceeds image %dx%d",
			ErrOutOfBounds, rect.Width, rect.Height, rect.X, rect.Y, w, h)
	}
	return imaging.Crop(img, image.Rect(rect.X, rect.Y, rect.X+rect.Width, rect.Y+rect.Height)), nil
}

// Rotate rotates img clockwise about its center by an arbitrary angle.
// The output canvas is the bounding box of the rotated image
// (h*|sin| + w*|cos| wide and w*|sin| + h*|cos| high) so no content is
// clipped; exposed corners are transparent.
func Rotate(img image.Image, degrees float64) image.Image {
	// imaging rotates counter-clockwise for positive angles.
	return imaging.Rotate(img, -degrees, color.Transparent)
}

func round(v float64) int {
	return int(math.Round(v))
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
