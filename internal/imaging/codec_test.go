package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// encodePNG encodes img as PNG bytes, failing the test on error.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	data := encodePNG(t, createPatternImage(20, 10))

	img, format, err := Decode(data, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if format != "png" {
		t.Errorf("format: got %s, want png", format)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("dimensions: got %dx%d, want 20x10", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestDecode_Empty(t *testing.T) {
	_, _, err := Decode(nil, 0)
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("Decode(nil, 0): got %v, want ErrNoImage", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"), 0)
	if err == nil {
		t.Error("Decode should fail for non-image bytes")
	}
}

func TestEncode_KeepsFormat(t *testing.T) {
	img := createInMemoryImage(8, 8, color.RGBA{10, 20, 30, 255})

	tests := []struct {
		in, want string
	}{
		{"png", "png"},
		{"jpeg", "jpeg"},
		{"gif", "gif"},
		{"bmp", "bmp"},
		{"tiff", "tiff"},
		{"webp", "png"},
		{"", "png"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			data, format, err := Encode(img, tt.in, 90)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if format != tt.want {
				t.Errorf("format: got %s, want %s", format, tt.want)
			}
			if _, got, err := Decode(data, 0); err != nil || got != tt.want {
				t.Errorf("round trip: got format %q err %v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestEncode_JPEGDecodable(t *testing.T) {
	data, _, err := Encode(createPatternImage(16, 16), "jpeg", 80)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("jpeg output not decodable: %v", err)
	}
}

// headerOnlyPNG returns a PNG signature and IHDR chunk declaring an 8-bit
// RGBA image of the given size, with no pixel data behind it.
func headerOnlyPNG(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolour with alpha

	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecode_OversizedHeader(t *testing.T) {
	data := headerOnlyPNG(60000, 60000)

	_, _, err := Decode(data, DefaultMaxPixels)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("Decode: got %v, want ErrImageTooLarge", err)
	}
}

func TestDecode_WithinBudget(t *testing.T) {
	data := encodePNG(t, createPatternImage(20, 10))

	if _, _, err := Decode(data, 200); err != nil {
		t.Errorf("exactly at the budget: %v", err)
	}
	if _, _, err := Decode(data, 199); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("one pixel over: got %v, want ErrImageTooLarge", err)
	}
}

func TestCheckPixels(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		max           int
		wantErr       bool
	}{
		{"unbounded", 1 << 20, 1 << 20, 0, false},
		{"within", 100, 100, 10000, false},
		{"over", 101, 100, 10000, true},
		{"large product", 1 << 30, 1 << 30, 1 << 30, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPixels(tt.width, tt.height, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkPixels(%d, %d, %d): got %v, wantErr %v", tt.width, tt.height, tt.max, err, tt.wantErr)
			}
		})
	}
}
