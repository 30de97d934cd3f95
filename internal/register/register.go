// Package register derives the frame-to-frame translation of a movie from
// ROI tracking CSVs and turns it into the valid-pixel bounding box the
// pairing engine needs for its border filter.
//
// Pixel data never enters this package: image codec handling is out of
// scope, so the bounding box is computed from the translation matrix and the
// image dimensions, or supplied directly by the caller.
package register

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

// Translation is one frame's (dx, dy) shift relative to the movie's first
// frame, in pixels.
type Translation struct {
	Dx int
	Dy int
}

// TranslationsFromROI reads one ROI CSV (header plus X,Y columns, one row
// per frame) and returns the per-frame translation relative to the first
// row, rounded to whole pixels. The first frame is always (0, 0).
func TranslationsFromROI(r io.Reader) ([]Translation, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read roi header: %w", err)
	}
	colX, colY := -1, -1
	for k, name := range header {
		switch name {
		case "X":
			colX = k
		case "Y":
			colY = k
		}
	}
	if colX < 0 || colY < 0 {
		return nil, fmt.Errorf("roi csv is missing X/Y columns")
	}

	var ts []Translation
	var x0, y0 float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roi line %d: %w", line, err)
		}
		x, err := strconv.ParseFloat(rec[colX], 64)
		if err != nil {
			return nil, fmt.Errorf("roi line %d: bad X %q", line, rec[colX])
		}
		y, err := strconv.ParseFloat(rec[colY], 64)
		if err != nil {
			return nil, fmt.Errorf("roi line %d: bad Y %q", line, rec[colY])
		}
		if len(ts) == 0 {
			x0, y0 = x, y
			ts = append(ts, Translation{})
			continue
		}
		ts = append(ts, Translation{
			Dx: int(math.Round(x - x0)),
			Dy: int(math.Round(y - y0)),
		})
	}
	if len(ts) == 0 {
		return nil, fmt.Errorf("roi csv has no data rows")
	}
	return ts, nil
}

// ReadROIFile is TranslationsFromROI over a file on disk.
func ReadROIFile(path string) ([]Translation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roi csv: %w", err)
	}
	defer f.Close()
	return TranslationsFromROI(f)
}

// Combine chains several consecutive ROI segments into one translation
// matrix. Each segment after the first is relative to its own first frame,
// which coincides with the previous segment's last frame; the duplicate
// joint frame is dropped.
func Combine(segments ...[]Translation) []Translation {
	var out []Translation
	for _, seg := range segments {
		if len(out) == 0 {
			out = append(out, seg...)
			continue
		}
		last := out[len(out)-1]
		for _, t := range seg[1:] {
			out = append(out, Translation{Dx: t.Dx + last.Dx, Dy: t.Dy + last.Dy})
		}
	}
	return out
}

// CroppedBounds computes the valid-pixel bounding box of a registered
// movie: the intersection of every frame's rectangle after applying its
// translation. Dimensions and the result are in physical units; pixelWidth
// scales the pixel translations.
func CroppedBounds(width, height, pixelWidth float64, ts []Translation) (spindle.Bounds, error) {
	if width <= 0 || height <= 0 || pixelWidth <= 0 {
		return spindle.Bounds{}, fmt.Errorf("invalid image geometry %gx%g (pixel width %g)", width, height, pixelWidth)
	}
	b := spindle.Bounds{Top: 0, Bottom: height, Left: 0, Right: width}
	for _, t := range ts {
		dx := float64(t.Dx) * pixelWidth
		dy := float64(t.Dy) * pixelWidth
		b.Left = math.Max(b.Left, dx)
		b.Right = math.Min(b.Right, width+dx)
		b.Top = math.Max(b.Top, dy)
		b.Bottom = math.Min(b.Bottom, height+dy)
	}
	if err := b.Validate(); err != nil {
		return spindle.Bounds{}, fmt.Errorf("movie drifts too far, no common region: %w", err)
	}
	return b, nil
}
