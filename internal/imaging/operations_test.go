package imaging

import (
	"errors"
	"image"
	"image/color"
	"reflect"
	"testing"
)

func newTestOperations(t *testing.T) *Operations {
	t.Helper()
	ops, err := NewOperations(DefaultOptions())
	if err != nil {
		t.Fatalf("NewOperations failed: %v", err)
	}
	return ops
}

func mustLookup(t *testing.T, ops *Operations, name string) Operation {
	t.Helper()
	op, ok := ops.Lookup(name)
	if !ok {
		t.Fatalf("operation %q not registered", name)
	}
	return op
}

func applyAndDecode(t *testing.T, op Operation, param string, src []byte) (image.Image, string) {
	t.Helper()
	out, format, err := op.Apply(param, src)
	if err != nil {
		t.Fatalf("%s(%q) failed: %v", op.Name(), param, err)
	}
	img, _, err := Decode(out, 0)
	if err != nil {
		t.Fatalf("%s output not decodable: %v", op.Name(), err)
	}
	return img, format
}

func TestNewOperations_Names(t *testing.T) {
	ops := newTestOperations(t)
	want := []string{"crop", "edge", "grayscale", "grid", "resize", "rotate"}
	if got := ops.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names: got %v, want %v", got, want)
	}
}

func TestNewOperations_BadColour(t *testing.T) {
	opts := DefaultOptions()
	opts.Background = "black"
	if _, err := NewOperations(opts); err == nil {
		t.Error("NewOperations should reject a non-hex background")
	}
}

func TestLookup_CaseSensitive(t *testing.T) {
	ops := newTestOperations(t)
	if _, ok := ops.Lookup("Resize"); ok {
		t.Error("Lookup should be case-sensitive")
	}
	if _, ok := ops.Lookup("bogus"); ok {
		t.Error("Lookup of unknown operation should miss")
	}
}

func TestValidate_NoImageNeeded(t *testing.T) {
	ops := newTestOperations(t)
	if err := mustLookup(t, ops, "resize").Validate("10x10"); err != nil {
		t.Errorf("Validate(10x10): %v", err)
	}
	if err := mustLookup(t, ops, "resize").Validate("10"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Validate(10): got %v, want ErrInvalidParameter", err)
	}
	if err := mustLookup(t, ops, "grayscale").Validate(""); err != nil {
		t.Errorf("grayscale Validate: %v", err)
	}
}

func TestApply_NoImage(t *testing.T) {
	ops := newTestOperations(t)
	_, _, err := mustLookup(t, ops, "resize").Apply("10x10", nil)
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("Apply without image: got %v, want ErrNoImage", err)
	}
}

func TestApply_Resize(t *testing.T) {
	ops := newTestOperations(t)
	src := encodePNG(t, createPatternImage(100, 50))

	img, format := applyAndDecode(t, mustLookup(t, ops, "resize"), "40x20", src)
	if format != "png" {
		t.Errorf("format: got %s, want png", format)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Errorf("dimensions: got %dx%d, want 40x20", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestApply_ResizeKeepAspect(t *testing.T) {
	ops := newTestOperations(t)
	src := encodePNG(t, createPatternImage(100, 50))

	img, _ := applyAndDecode(t, mustLookup(t, ops, "resize"), "50x0", src)
	if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 25 {
		t.Errorf("dimensions: got %dx%d, want 50x25", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestApply_Rotate(t *testing.T) {
	ops := newTestOperations(t)
	src := encodePNG(t, createPatternImage(40, 20))

	img, _ := applyAndDecode(t, mustLookup(t, ops, "rotate"), "90", src)
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 40 {
		t.Fatalf("dimensions: got %dx%d, want 20x40", img.Bounds().Dx(), img.Bounds().Dy())
	}

	// Clockwise: the red top-left quadrant ends up top-right.
	r, g, b, _ := img.At(15, 5).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("pixel (15,5): got (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}
}

func TestApply_Grayscale(t *testing.T) {
	ops := newTestOperations(t)
	src := encodePNG(t, createPatternImage(10, 10))

	img, _ := applyAndDecode(t, mustLookup(t, ops, "grayscale"), "anything", src)
	for _, p := range []image.Point{{1, 1}, {8, 1}, {1, 8}, {8, 8}} {
		r, g, b, _ := img.At(p.X, p.Y).RGBA()
		if r != g || g != b {
			t.Errorf("pixel %v not gray: (%d,%d,%d)", p, r>>8, g>>8, b>>8)
		}
	}
}

func TestApply_Crop(t *testing.T) {
	ops := newTestOperations(t)
	src := encodePNG(t, createPatternImage(100, 100))

	img, _ := applyAndDecode(t, mustLookup(t, ops, "crop"), "50x0_50x50", src)
	if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 50 {
		t.Fatalf("dimensions: got %dx%d, want 50x50", img.Bounds().Dx(), img.Bounds().Dy())
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("cropped top-right quadrant should be green, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestApply_CropClipped(t *testing.T) {
	ops := newTestOperations(t)
	src := encodePNG(t, createPatternImage(100, 100))

	img, _ := applyAndDecode(t, mustLookup(t, ops, "crop"), "80x80_50x50", src)
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 20 {
		t.Errorf("dimensions: got %dx%d, want 20x20", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestApply_CropOutside(t *testing.T) {
	ops := newTestOperations(t)
	src := encodePNG(t, createPatternImage(100, 100))

	if _, _, err := mustLookup(t, ops, "crop").Apply("200x200_10x10", src); err == nil {
		t.Error("crop entirely outside the image should fail")
	}
}

func TestApply_EdgeAndGrid(t *testing.T) {
	ops := newTestOperations(t)
	src := encodePNG(t, createInMemoryImage(60, 60, color.RGBA{128, 128, 128, 255}))

	img, _ := applyAndDecode(t, mustLookup(t, ops, "edge"), "50x150", src)
	if img.Bounds().Dx() != 60 {
		t.Errorf("edge width: got %d, want 60", img.Bounds().Dx())
	}

	img, _ = applyAndDecode(t, mustLookup(t, ops, "grid"), "20", src)
	if img.Bounds().Dy() != 60 {
		t.Errorf("grid height: got %d, want 60", img.Bounds().Dy())
	}
}

func TestApply_OversizedInput(t *testing.T) {
	ops := newTestOperations(t)
	src := headerOnlyPNG(60000, 60000)

	for _, name := range []string{"grayscale", "resize", "edge"} {
		param := map[string]string{"grayscale": "", "resize": "10x10", "edge": "50x150"}[name]
		_, _, err := mustLookup(t, ops, name).Apply(param, src)
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("%s: got %v, want ErrImageTooLarge", name, err)
		}
	}
}

func TestApply_OutputBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxPixels = 10000
	ops, err := NewOperations(opts)
	if err != nil {
		t.Fatalf("NewOperations failed: %v", err)
	}
	src := encodePNG(t, createPatternImage(50, 50))

	if _, _, err := mustLookup(t, ops, "resize").Apply("1000x1000", src); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("resize 1000x1000: got %v, want ErrImageTooLarge", err)
	}
	// The zero side is derived from the aspect ratio before the check.
	if _, _, err := mustLookup(t, ops, "resize").Apply("200x0", src); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("resize 200x0: got %v, want ErrImageTooLarge", err)
	}
	img, _ := applyAndDecode(t, mustLookup(t, ops, "resize"), "100x0", src)
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("resize 100x0: got %dx%d, want 100x100", b.Dx(), b.Dy())
	}
	if _, _, err := mustLookup(t, ops, "rotate").Apply("0", src); err != nil {
		t.Errorf("rotate 0 within budget: %v", err)
	}
}

func TestResizedAndRotatedSize(t *testing.T) {
	b := image.Rect(0, 0, 200, 100)

	if w, h := resizedSize(b, resizeArgs{width: 50}); w != 50 || h != 25 {
		t.Errorf("resizedSize 50x0: got %dx%d, want 50x25", w, h)
	}
	if w, h := resizedSize(b, resizeArgs{height: 50}); w != 100 || h != 50 {
		t.Errorf("resizedSize 0x50: got %dx%d, want 100x50", w, h)
	}
	if w, h := rotatedSize(b, 90); w < 100 || w > 102 || h < 200 || h > 202 {
		t.Errorf("rotatedSize 90: got %dx%d, want about 100x200", w, h)
	}
	if w, h := rotatedSize(b, 45); w < 212 || h < 212 {
		t.Errorf("rotatedSize 45: got %dx%d, want at least 213x213", w, h)
	}
}
