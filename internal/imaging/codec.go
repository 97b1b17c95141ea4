package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrNoImage is returned when Apply is called without image bytes.
var ErrNoImage = errors.New("no image data")

// ErrImageTooLarge is returned when an input or output image would exceed
// the configured pixel budget.
var ErrImageTooLarge = errors.New("image too large")

// fallbackFormat is used for inputs disintegration/imaging cannot encode.
const fallbackFormat = "png"

// Decode parses raw image bytes and reports the registered format name.
//
// The header is read first with image.DecodeConfig, so an image claiming
// more than maxPixels pixels is rejected before any pixel buffer is
// allocated. A small compressed payload can declare enormous dimensions;
// decoding it unchecked would exhaust memory.
//
// Parameters:
//   - data: The encoded image. Supported formats are JPEG, PNG, GIF, BMP,
//     TIFF and WebP.
//   - maxPixels: Upper bound on width*height. Zero or negative disables the
//     check.
//
// Returns:
//   - image.Image: The decoded image.
//   - string: The lowercase format name ("jpeg", "png", "gif", "bmp",
//     "tiff" or "webp").
//   - error: ErrNoImage for empty input, ErrImageTooLarge when the header
//     exceeds maxPixels, or a wrapped decoder error.
func Decode(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrNoImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// checkPixels reports ErrImageTooLarge when a width x height image exceeds
// maxPixels. The product is computed in int64 so it cannot overflow.
func checkPixels(width, height, maxPixels int) error {
	if maxPixels <= 0 {
		return nil
	}
	if width < 0 || height < 0 || int64(width)*int64(height) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, width, height, maxPixels)
	}
	return nil
}

// Encode writes img in the requested format, falling back to png when the
// format has no encoder. It returns the encoded bytes and the format that was
// actually used.
//
// jpegQuality only applies to jpeg output; values outside 1-100 are clamped
// by the encoder.
func Encode(img image.Image, format string, jpegQuality int) ([]byte, string, error) {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		format = fallbackFormat
		f = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, "", fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return buf.Bytes(), format, nil
}
