package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	xwebp "golang.org/x/image/webp"

	"github.com/rshrestha/imagetools/internal/model"
)

// DetectFormat inspects the raw bytes and returns the image format, or
// "" if the bytes match no supported format.
func DetectFormat(data []byte) model.Format {
	// JPEG: starts with FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return model.FormatJPEG
	}
	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return model.FormatPNG
	}
	// GIF: starts with GIF87a or GIF89a
	if len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F' {
		return model.FormatGIF
	}
	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 && data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return model.FormatWebP
	}
	// BMP: starts with BM
	if len(data) >= 2 && data[0] == 'B' && data[1] == 'M' {
		return model.FormatBMP
	}
	return ""
}

// MIMEType returns the media type for a format, defaulting to JPEG.
func MIMEType(f model.Format) string {
	switch f {
	case model.FormatPNG:
		return "image/png"
	case model.FormatGIF:
		return "image/gif"
	case model.FormatBMP:
		return "image/bmp"
	case model.FormatWebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Ext returns the file extension for a format, without the dot.
func Ext(f model.Format) string {
	if f == model.FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// Decode sniffs the format and decodes the raster. It returns
// ErrUnsupportedFormat for unrecognized bytes and ErrCorruptData when a
// recognized stream fails to decode.
func Decode(data []byte) (image.Image, model.Format, error) {
	format := DetectFormat(data)
	if format == "" {
		return nil, "", ErrUnsupportedFormat
	}

	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(data)
	switch format {
	case model.FormatJPEG:
		img, err = jpeg.Decode(r)
	case model.FormatPNG:
		img, err = png.Decode(r)
	case model.FormatGIF:
		img, err = gif.Decode(r)
	case model.FormatBMP:
		img, err = bmp.Decode(r)
	case model.FormatWebP:
		img, err = xwebp.Decode(r)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: decoding %s: %v", ErrCorruptData, format, err)
	}
	return img, format, nil
}

// Encode serializes img into the given format. Quality applies to lossy
// formats only and is clamped to [1, 100].
func Encode(img image.Image, format model.Format, quality int) ([]byte, error) {
	quality = clampQuality(quality)

	var buf bytes.Buffer
	switch format {
	case model.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	case model.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	case model.FormatGIF:
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("encoding gif: %w", err)
		}
	case model.FormatBMP:
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding bmp: %w", err)
		}
	case model.FormatWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, fmt.Errorf("encoding webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", ErrInvalidParameters, format)
	}
	return buf.Bytes(), nil
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
