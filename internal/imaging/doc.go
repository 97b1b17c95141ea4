// Package imaging implements the image transforms served by the proxy.
//
// Each transform is an Operation registered under a case-sensitive name in an
// Operations table. An Operation parses its own parameter string; the same
// parser backs both Validate and Apply so a request can be checked for a
// well-formed parameter before any image bytes are downloaded.
//
// # Operations
//
//   - resize WxH: scale to W by H pixels (Box filter). One side may be 0 to
//     keep the aspect ratio.
//   - rotate DEG: rotate clockwise by DEG degrees, filling uncovered pixels
//     with the configured background colour.
//   - grayscale: convert to 8-bit gray. The parameter is ignored.
//   - crop XxY_WxH: cut the W by H rectangle whose top-left corner is (X,Y).
//   - edge LOWxHIGH: Canny edge map with the given hysteresis thresholds.
//   - grid SPACING: overlay a coordinate grid every SPACING pixels.
//
// # Formats
//
// Input is decoded with the standard library registry plus the BMP, TIFF and
// WebP decoders from golang.org/x/image. Output is re-encoded in the input
// format when disintegration/imaging can write it (jpeg, png, gif, bmp, tiff);
// anything else is written as png. The returned format name is always
// lowercase and is what the server puts after "image/" in Content-Type.
//
// # Thread Safety
//
// Operations hold no mutable state and may be applied concurrently.
package imaging
