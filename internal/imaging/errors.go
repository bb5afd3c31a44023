package imaging

import "errors"

// Transform errors are fatal to the file being processed, never to the
// batch; callers match with errors.Is.
var (
	// ErrUnsupportedFormat means the input bytes are not a decodable
	// raster format.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrCorruptData means the format was recognized but decoding failed.
	ErrCorruptData = errors.New("corrupt image data")

	// ErrInvalidParameters means the transform request is malformed.
	ErrInvalidParameters = errors.New("invalid transform parameters")

	// ErrOutOfBounds means a crop rectangle falls outside the image.
	ErrOutOfBounds = errors.New("crop rectangle out of bounds")
)
