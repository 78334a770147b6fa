// Package texture turns ripper-exported raw texel payloads into images and
// writes the exported PNGs. Only uncompressed formats are handled here;
// compressed formats are the ripping tool's job and are reported as skipped.
package texture

import (
	"errors"
	"fmt"
	"image"

	"github.com/vk/bundlescope/internal/rip"
)

// ErrUnsupportedFormat marks a texture whose format needs a codec this
// tool deliberately does not carry. Callers count these as skips.
var ErrUnsupportedFormat = errors.New("unsupported texture format")

// bytesPerPixel maps the supported raw formats to their texel width.
var bytesPerPixel = map[string]int{
	"RGBA32": 4,
	"ARGB32": 4,
	"BGRA32": 4,
	"RGB24":  3,
	"Alpha8": 1,
}

// Decode converts a raw texel payload into an NRGBA image. Unity stores
// rows bottom-up, so the result is flipped into the usual top-down order.
func Decode(o *rip.Object, payload []byte) (*image.NRGBA, error) {
	bpp, ok := bytesPerPixel[o.Format]
	if !ok {
		return nil, fmt.Errorf("texture %q: format %s: %w", o.Name, o.Format, ErrUnsupportedFormat)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("texture %q: invalid dimensions %dx%d", o.Name, o.Width, o.Height)
	}
	need := o.Width * o.Height * bpp
	if len(payload) < need {
		return nil, fmt.Errorf("texture %q: payload too short: have %d bytes, need %d", o.Name, len(payload), need)
	}

	img := image.NewNRGBA(image.Rect(0, 0, o.Width, o.Height))
	for y := 0; y < o.Height; y++ {
		// Source row y lands on destination row height-1-y.
		src := payload[y*o.Width*bpp:]
		dst := img.Pix[(o.Height-1-y)*img.Stride:]
		for x := 0; x < o.Width; x++ {
			s := src[x*bpp : x*bpp+bpp]
			d := dst[x*4 : x*4+4]
			switch o.Format {
			case "RGBA32":
				copy(d, s[:4])
			case "ARGB32":
				d[0], d[1], d[2], d[3] = s[1], s[2], s[3], s[0]
			case "BGRA32":
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
			case "RGB24":
				d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xFF
			case "Alpha8":
				d[0], d[1], d[2], d[3] = 0xFF, 0xFF, 0xFF, s[0]
			}
		}
	}
	return img, nil
}

// SliceRect cuts a sprite frame out of a decoded atlas. The rect uses
// Unity's bottom-left origin; the decoded image is already top-down, so the
// Y axis is translated here.
func SliceRect(atlas *image.NRGBA, r rip.Rect) (*image.NRGBA, error) {
	bounds := atlas.Bounds()
	if r.W <= 0 || r.H <= 0 {
		return nil, fmt.Errorf("sprite rect has no area: %dx%d", r.W, r.H)
	}
	top := bounds.Dy() - (r.Y + r.H)
	if r.X < 0 || top < 0 || r.X+r.W > bounds.Dx() || top+r.H > bounds.Dy() {
		return nil, fmt.Errorf("sprite rect (%d,%d %dx%d) outside atlas %dx%d",
			r.X, r.Y, r.W, r.H, bounds.Dx(), bounds.Dy())
	}
	return atlas.SubImage(image.Rect(r.X, top, r.X+r.W, top+r.H)).(*image.NRGBA), nil
}
