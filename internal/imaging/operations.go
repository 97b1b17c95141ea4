package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// Operation is one named image transform.
//
// Validate runs the same parameter parser as Apply without touching any
// image data. Apply decodes src, transforms it and re-encodes the result,
// returning the output bytes and their lowercase format name.
type Operation interface {
	Name() string
	Validate(parameter string) error
	Apply(parameter string, src []byte) ([]byte, string, error)
}

// Options tune how operations render their output.
type Options struct {
	// JPEGQuality is used when the output format is jpeg (1-100).
	JPEGQuality int

	// Background fills pixels uncovered by rotate, as "#RRGGBB".
	Background string

	// GridColor is the line colour drawn by grid, as "#RRGGBB".
	GridColor string

	// MaxPixels bounds the width*height of every decoded input and every
	// resized or rotated output. Zero disables the bound.
	MaxPixels int
}

// DefaultMaxPixels is the pixel budget used by DefaultOptions.
const DefaultMaxPixels = 25_000_000

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		JPEGQuality: 95,
		Background:  "#000000",
		GridColor:   "#FF0000",
		MaxPixels:   DefaultMaxPixels,
	}
}

// Operations is a read-only table of transforms keyed by exact name.
type Operations struct {
	ops map[string]Operation
}

// NewOperations builds the table of every supported transform.
//
// The table registers resize, rotate, grayscale, crop, edge and grid. Names
// are unique and matched exactly; registering a duplicate panics, so a
// broken table is caught at start-up rather than on the first request.
//
// Parameters:
//   - opts: Rendering options. Background and GridColor must be "#RRGGBB"
//     hex colours; MaxPixels bounds inputs and outputs of every operation.
//
// Returns:
//   - *Operations: The read-only table, safe for concurrent use.
//   - error: Non-nil when a colour in opts cannot be parsed.
//
// # Example Usage
//
//	ops, err := imaging.NewOperations(imaging.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	op, _ := ops.Lookup("resize")
//	out, format, err := op.Apply("100x100", data)
func NewOperations(opts Options) (*Operations, error) {
	bg, err := colorful.Hex(opts.Background)
	if err != nil {
		return nil, fmt.Errorf("invalid background colour %q: %w", opts.Background, err)
	}
	grid, err := colorful.Hex(opts.GridColor)
	if err != nil {
		return nil, fmt.Errorf("invalid grid colour %q: %w", opts.GridColor, err)
	}
	q := opts.JPEGQuality
	limit := opts.MaxPixels

	t := &Operations{ops: make(map[string]Operation)}
	t.register(&operation[resizeArgs]{name: "resize", quality: q, maxPixels: limit, parse: parseResize,
		run: func(img image.Image, a resizeArgs) (image.Image, error) {
			w, h := resizedSize(img.Bounds(), a)
			if err := checkPixels(w, h, limit); err != nil {
				return nil, err
			}
			return imaging.Resize(img, a.width, a.height, imaging.Box), nil
		}})
	t.register(&operation[rotateArgs]{name: "rotate", quality: q, maxPixels: limit, parse: parseRotate,
		run: func(img image.Image, a rotateArgs) (image.Image, error) {
			w, h := rotatedSize(img.Bounds(), a.degrees)
			if err := checkPixels(w, h, limit); err != nil {
				return nil, err
			}
			// imaging rotates counter-clockwise; degrees are clockwise on the wire.
			return imaging.Rotate(img, float64(-a.degrees), bg), nil
		}})
	t.register(&operation[struct{}]{name: "grayscale", quality: q, maxPixels: limit, parse: parseNothing,
		run: func(img image.Image, _ struct{}) (image.Image, error) {
			return effect.Grayscale(img), nil
		}})
	t.register(&operation[cropArgs]{name: "crop", quality: q, maxPixels: limit, parse: parseCrop, run: cropImage})
	t.register(&operation[edgeArgs]{name: "edge", quality: q, maxPixels: limit, parse: parseEdge,
		run: func(img image.Image, a edgeArgs) (image.Image, error) {
			return EdgeDetect(img, a.low, a.high), nil
		}})
	t.register(&operation[gridArgs]{name: "grid", quality: q, maxPixels: limit, parse: parseGrid,
		run: func(img image.Image, a gridArgs) (image.Image, error) {
			return GridOverlay(img, a.spacing, grid), nil
		}})
	return t, nil
}

func (t *Operations) register(op Operation) {
	if _, dup := t.ops[op.Name()]; dup {
		panic("imaging: duplicate operation " + op.Name())
	}
	t.ops[op.Name()] = op
}

// Lookup returns the operation registered under name.
func (t *Operations) Lookup(name string) (Operation, bool) {
	op, ok := t.ops[name]
	return op, ok
}

// Names lists the registered operation names in sorted order.
func (t *Operations) Names() []string {
	names := make([]string, 0, len(t.ops))
	for n := range t.ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// operation adapts a typed parser and image function to Operation.
type operation[A any] struct {
	name      string
	quality   int
	maxPixels int
	parse     func(string) (A, error)
	run       func(image.Image, A) (image.Image, error)
}

func (o *operation[A]) Name() string { return o.name }

func (o *operation[A]) Validate(parameter string) error {
	_, err := o.parse(parameter)
	return err
}

func (o *operation[A]) Apply(parameter string, src []byte) ([]byte, string, error) {
	args, err := o.parse(parameter)
	if err != nil {
		return nil, "", err
	}
	img, format, err := Decode(src, o.maxPixels)
	if err != nil {
		return nil, "", err
	}
	out, err := o.run(img, args)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", o.name, err)
	}
	return Encode(out, format, o.quality)
}

// cropImage cuts the requested rectangle, clipped to the image bounds.
func cropImage(img image.Image, a cropArgs) (image.Image, error) {
	bounds := img.Bounds()
	origin := bounds.Min.Add(image.Pt(a.x, a.y))
	rect := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(a.width, a.height))}.Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("crop region %dx%d_%dx%d outside image bounds %dx%d",
			a.x, a.y, a.width, a.height, bounds.Dx(), bounds.Dy())
	}
	return imaging.Crop(img, rect), nil
}

// resizedSize predicts the output of imaging.Resize, including the aspect
// fill for a zero side.
func resizedSize(b image.Rectangle, a resizeArgs) (int, int) {
	w, h := a.width, a.height
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return w, h
	}
	if w == 0 {
		w = int(math.Max(1, math.Floor(float64(h)*float64(srcW)/float64(srcH)+0.5)))
	}
	if h == 0 {
		h = int(math.Max(1, math.Floor(float64(w)*float64(srcH)/float64(srcW)+0.5)))
	}
	return w, h
}

// rotatedSize bounds the canvas imaging.Rotate allocates for degrees.
func rotatedSize(b image.Rectangle, degrees int) (int, int) {
	w, h := float64(b.Dx()), float64(b.Dy())
	rad := float64(degrees) * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	return int(math.Ceil(w*cos+h*sin)) + 1, int(math.Ceil(w*sin+h*cos)) + 1
}
