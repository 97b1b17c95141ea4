package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// edgeBlurRadius is the Gaussian radius applied before taking gradients.
const edgeBlurRadius = 1.4

// EdgeDetect produces a Canny edge map of img.
//
// Edge pixels are white (255) and everything else is black, which makes the
// structure of a diagram or photo visible without its colour fills.
//
// Parameters:
//   - img: Source image, colour or grayscale, with any bounds origin.
//   - thresholdLow: Hysteresis low threshold (0-255). Gradients below it are
//     discarded.
//   - thresholdHigh: Hysteresis high threshold (0-255). Gradients at or above
//     it are always kept.
//
// Returns:
//   - *image.Gray: Edge map the same size as img with its origin at (0,0).
//
// # Algorithm
//
//  1. Gaussian blur (bild, radius 1.4) to suppress noise.
//  2. Grayscale conversion (bild). bild returns RGBA with equal channels, so
//     the red byte of each pixel is its luminance.
//  3. Sobel gradients: magnitude = sqrt(Gx² + Gy²), direction = atan2(Gy, Gx).
//  4. Non-maximum suppression along the quantized gradient direction.
//  5. Hysteresis: pixels between the thresholds survive only next to a
//     strong pixel.
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) *image.Gray {
	gray := effect.Grayscale(blur.Gaussian(img, edgeBlurRadius))
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			lum[y*w+x] = float64(row[4*x]) / 255.0
		}
	}

	mag, dir := sobel(lum, w, h)
	thin := suppress(mag, dir, w, h)

	out := image.NewGray(image.Rect(0, 0, w, h))
	low := float64(thresholdLow) / 255.0
	high := float64(thresholdHigh) / 255.0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := thin[y*w+x]
			if v >= high || (v >= low && strongNeighbour(thin, w, h, x, y, high)) {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// sobel returns per-pixel gradient magnitude and direction (radians).
func sobel(lum []float64, w, h int) ([]float64, []float64) {
	at := func(x, y int) float64 {
		return lum[clamp(y, 0, h-1)*w+clamp(x, 0, w-1)]
	}

	mag := make([]float64, w*h)
	dir := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			mag[y*w+x] = math.Hypot(gx, gy)
			dir[y*w+x] = math.Atan2(gy, gx)
		}
	}
	return mag, dir
}

// suppress keeps only gradient maxima along the gradient direction.
// Border pixels are always dropped.
func suppress(mag, dir []float64, w, h int) []float64 {
	thin := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			dx, dy := neighbourStep(dir[i])
			a := mag[(y+dy)*w+x+dx]
			b := mag[(y-dy)*w+x-dx]
			if mag[i] >= a && mag[i] >= b {
				thin[i] = mag[i]
			}
		}
	}
	return thin
}

// neighbourStep quantizes a gradient angle to one of four pixel directions.
func neighbourStep(angle float64) (int, int) {
	a := math.Mod(angle+math.Pi, math.Pi) // fold into [0, pi)
	switch {
	case a < math.Pi/8 || a >= 7*math.Pi/8:
		return 1, 0
	case a < 3*math.Pi/8:
		return 1, 1
	case a < 5*math.Pi/8:
		return 0, 1
	default:
		return -1, 1
	}
}

func strongNeighbour(thin []float64, w, h, x, y int, high float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if thin[clamp(y+dy, 0, h-1)*w+clamp(x+dx, 0, w-1)] >= high {
				return true
			}
		}
	}
	return false
}

// clamp constrains val to [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
