package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	labelInk   = color.RGBA{255, 255, 255, 255}
	labelPaper = color.RGBA{0, 0, 0, 180}
)

// GridOverlay draws a labelled coordinate grid over a copy of img.
//
// Lines of colour c are drawn every spacing pixels in both directions and
// each intersection gets an "x,y" label on a translucent box, so positions
// in the image can be read off directly.
//
// Parameters:
//   - img: Source image with any bounds origin. It is not modified.
//   - spacing: Distance between grid lines in pixels. Values <= 0 return
//     an unmodified copy.
//   - c: Line colour.
//
// Returns:
//   - *image.RGBA: The annotated copy, same size as img, origin at (0,0).
func GridOverlay(img image.Image, spacing int, c color.Color) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	if spacing <= 0 {
		return out
	}
	line := image.NewUniform(c)
	for x := spacing; x < w; x += spacing {
		draw.Draw(out, image.Rect(x, 0, x+1, h), line, image.Point{}, draw.Over)
	}
	for y := spacing; y < h; y += spacing {
		draw.Draw(out, image.Rect(0, y, w, y+1), line, image.Point{}, draw.Over)
	}
	for y := spacing; y < h; y += spacing {
		for x := spacing; x < w; x += spacing {
			drawLabel(out, x+2, y+2, strconv.Itoa(x)+","+strconv.Itoa(y))
		}
	}
	return out
}

// drawLabel writes text with its top-left corner at (x,y) on a translucent
// backing box. The font drawer clips to img.
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelInk),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}

	box := image.Rect(x-1, y-1, x+d.MeasureString(text).Ceil()+1, y+face.Height)
	draw.Draw(img, box.Intersect(img.Bounds()), image.NewUniform(labelPaper), image.Point{}, draw.Over)
	d.DrawString(text)
}
