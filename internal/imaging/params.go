package imaging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidParameter marks a parameter string an operation cannot parse.
// Callers test for it with errors.Is.
var ErrInvalidParameter = errors.New("invalid parameter")

// MaxDimension bounds every size or offset parsed from a parameter.
const MaxDimension = 16384

func invalidParameter(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// leadingUint parses the run of decimal digits at the start of s, after
// optional leading blanks. Trailing text is ignored, so "100x20" yields 100.
func leadingUint(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 || end > 9 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// pair parses "AxB" where both sides start with an unsigned integer.
func pair(s string) (int, int, bool) {
	i := strings.IndexByte(s, 'x')
	if i < 0 {
		return 0, 0, false
	}
	a, ok := leadingUint(s)
	if !ok {
		return 0, 0, false
	}
	b, ok := leadingUint(s[i+1:])
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}

type resizeArgs struct {
	width, height int
}

func parseResize(p string) (resizeArgs, error) {
	w, h, ok := pair(p)
	if !ok {
		return resizeArgs{}, invalidParameter("resize wants WxH, got %q", p)
	}
	if w > MaxDimension || h > MaxDimension {
		return resizeArgs{}, invalidParameter("resize %dx%d exceeds %d", w, h, MaxDimension)
	}
	if w == 0 && h == 0 {
		return resizeArgs{}, invalidParameter("resize needs a non-zero side")
	}
	return resizeArgs{width: w, height: h}, nil
}

type rotateArgs struct {
	degrees int
}

func parseRotate(p string) (rotateArgs, error) {
	d, ok := leadingUint(p)
	if !ok {
		return rotateArgs{}, invalidParameter("rotate wants degrees, got %q", p)
	}
	return rotateArgs{degrees: d % 360}, nil
}

type cropArgs struct {
	x, y, width, height int
}

// parseCrop parses XxY_WxH. The first 'x' must come before the '_' and the
// size part needs its own 'x'.
func parseCrop(p string) (cropArgs, error) {
	bad := invalidParameter("crop wants XxY_WxH, got %q", p)

	sep := strings.IndexByte(p, '_')
	if sep < 0 {
		return cropArgs{}, bad
	}
	if x := strings.IndexByte(p, 'x'); x < 0 || x > sep {
		return cropArgs{}, bad
	}
	x, y, ok := pair(p[:sep])
	if !ok {
		return cropArgs{}, bad
	}
	w, h, ok := pair(p[sep+1:])
	if !ok {
		return cropArgs{}, bad
	}
	for _, v := range []int{x, y, w, h} {
		if v > MaxDimension {
			return cropArgs{}, invalidParameter("crop value %d exceeds %d", v, MaxDimension)
		}
	}
	if w == 0 || h == 0 {
		return cropArgs{}, invalidParameter("crop size must be non-zero")
	}
	return cropArgs{x: x, y: y, width: w, height: h}, nil
}

type edgeArgs struct {
	low, high int
}

func parseEdge(p string) (edgeArgs, error) {
	lo, hi, ok := pair(p)
	if !ok {
		return edgeArgs{}, invalidParameter("edge wants LOWxHIGH, got %q", p)
	}
	if hi > 255 || lo > hi {
		return edgeArgs{}, invalidParameter("edge thresholds must satisfy 0 <= low <= high <= 255")
	}
	return edgeArgs{low: lo, high: hi}, nil
}

type gridArgs struct {
	spacing int
}

func parseGrid(p string) (gridArgs, error) {
	s, ok := leadingUint(p)
	if !ok || s < 2 || s > MaxDimension {
		return gridArgs{}, invalidParameter("grid wants a spacing between 2 and %d, got %q", MaxDimension, p)
	}
	return gridArgs{spacing: s}, nil
}

func parseNothing(string) (struct{}, error) {
	return struct{}{}, nil
}
