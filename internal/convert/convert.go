// Package convert turns HEIC/HEIF images into JPEG files.
package convert

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/heic"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// sourceExtensions lists the extensions accepted as convertible input.
var sourceExtensions = map[string]bool{
	".heic": true,
	".heif": true,
}

// Converter produces a JPEG at dst from the image at src.
type Converter interface {
	Convert(src, dst string) error
}

// IsSource reports whether path has a convertible extension (case-insensitive).
func IsSource(path string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(path))]
}

// TargetPath returns the JPEG path for src: same directory and base name,
// extension replaced with .jpg.
func TargetPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".jpg"
}

// JPEGConverter decodes HEIC/HEIF images and encodes them as JPEG.
type JPEGConverter struct {
	Quality int // JPEG quality, 1-100
}

func NewJPEGConverter() *JPEGConverter {
	return &JPEGConverter{Quality: DefaultQuality}
}

// Convert decodes the image at src and writes a JPEG to dst. The JPEG is
// encoded to a temp file in the destination directory and renamed into
// place, so dst never holds a partial file. An existing dst is replaced.
func (c *JPEGConverter) Convert(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", src, err)
	}
	defer f.Close()

	img, err := heic.Decode(f)
	if err != nil {
		return fmt.Errorf("could not decode %s: %w", src, err)
	}

	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "*.jpg")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: quality}); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("could not encode %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not encode %s: %w", dst, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not move %s into place: %w", dst, err)
	}
	return nil
}
