package texture

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Exporter writes decoded sprites and atlases as PNG files, with optional
// downscaled thumbnails for the gallery.
type Exporter struct {
	OutDir     string
	Thumbnails bool
	ThumbSize  int
}

// NewExporter creates the output directory tree up front.
func NewExporter(outDir string, thumbnails bool, thumbSize int) (*Exporter, error) {
	for _, sub := range []string{"sprites", "atlases", "thumbs"} {
		if err := os.MkdirAll(filepath.Join(outDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create export dir: %w", err)
		}
	}
	return &Exporter{OutDir: outDir, Thumbnails: thumbnails, ThumbSize: thumbSize}, nil
}

// WriteSprite writes one sprite PNG and, when enabled, its thumbnail.
// Returned paths are relative to OutDir so they can be served directly.
func (e *Exporter) WriteSprite(name string, img image.Image) (file, thumb string, err error) {
	file = filepath.ToSlash(filepath.Join("sprites", SafeName(name)+".png"))
	if err := writePNG(filepath.Join(e.OutDir, filepath.FromSlash(file)), img); err != nil {
		return "", "", err
	}
	if !e.Thumbnails {
		return file, "", nil
	}
	thumb = filepath.ToSlash(filepath.Join("thumbs", SafeName(name)+".png"))
	if err := writePNG(filepath.Join(e.OutDir, filepath.FromSlash(thumb)), e.scale(img)); err != nil {
		return "", "", err
	}
	return file, thumb, nil
}

// WriteAtlas writes a full decoded atlas texture.
func (e *Exporter) WriteAtlas(name string, img image.Image) (string, error) {
	file := filepath.ToSlash(filepath.Join("atlases", SafeName(name)+".png"))
	if err := writePNG(filepath.Join(e.OutDir, filepath.FromSlash(file)), img); err != nil {
		return "", err
	}
	return file, nil
}

// scale fits the image inside a ThumbSize square, preserving aspect.
// Images already small enough pass through untouched.
func (e *Exporter) scale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= e.ThumbSize && h <= e.ThumbSize {
		return img
	}
	if w >= h {
		h = h * e.ThumbSize / w
		w = e.ThumbSize
	} else {
		w = w * e.ThumbSize / h
		h = e.ThumbSize
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// writePNG encodes to a temp file first so a crash never leaves a truncated
// PNG where the gallery expects a valid one.
func writePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// SafeName maps an arbitrary asset name onto a filesystem-safe file stem.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
