package volume

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"

	"golang.org/x/image/tiff"
)

// LoadRaw reads a flat grayscale scan of exactly depth*length*width bytes.
//
// Parameters:
//   - r: the source of intensity bytes in linear index order
//   - depth, length, width: the grid extents
//
// Returns:
//   - *Volume: the expanded volume
//   - error: ErrSizeMismatch if the stream is shorter or longer than the extents need
func LoadRaw(r io.Reader, depth, length, width uint32) (*Volume, error) {
	n := int64(depth) * int64(length) * int64(width)
	gray := make([]byte, n)
	if _, err := io.ReadFull(r, gray); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("scan shorter than %d bytes: %w", n, ErrSizeMismatch)
		}
		return nil, err
	}
	var extra [1]byte
	if k, _ := r.Read(extra[:]); k > 0 {
		return nil, fmt.Errorf("scan longer than %d bytes: %w", n, ErrSizeMismatch)
	}
	return New(depth, length, width, gray)
}

// LoadRawFile opens path and reads it with LoadRaw. The intensity statistics are logged.
//
// Parameters:
//   - path: the scan file
//   - depth, length, width: the grid extents
//
// Returns:
//   - *Volume: the expanded volume
//   - error: an open, read or size error
func LoadRawFile(path string, depth, length, width uint32) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v, err := LoadRaw(f, depth, length, width)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logLoaded(path, v)
	return v, nil
}

// LoadTIFFStack reads one TIFF page per width slice. Image rows run along depth and
// columns along length; every page must share the first page's size. Color pages are
// reduced to luminance.
//
// Parameters:
//   - paths: the slice files in width order
//
// Returns:
//   - *Volume: the expanded volume
//   - error: a decode error or ErrSizeMismatch for pages of differing size
func LoadTIFFStack(paths []string) (*Volume, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("empty TIFF stack: %w", ErrSizeMismatch)
	}

	var depth, length int
	var gray []byte
	for z, path := range paths {
		img, err := decodeTIFF(path)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if z == 0 {
			depth, length = b.Dy(), b.Dx()
			gray = make([]byte, 0, depth*length*len(paths))
		} else if b.Dy() != depth || b.Dx() != length {
			return nil, fmt.Errorf("%s is %dx%d, want %dx%d: %w", path, b.Dx(), b.Dy(), length, depth, ErrSizeMismatch)
		}
		for y := range length {
			for x := range depth {
				g := color.GrayModel.Convert(img.At(b.Min.X+y, b.Min.Y+x)).(color.Gray)
				gray = append(gray, g.Y)
			}
		}
	}

	v, err := New(uint32(depth), uint32(length), uint32(len(paths)), gray)
	if err != nil {
		return nil, err
	}
	logLoaded(fmt.Sprintf("%s (+%d pages)", paths[0], len(paths)-1), v)
	return v, nil
}

func decodeTIFF(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func logLoaded(source string, v *Volume) {
	gray := make([]byte, v.Voxels())
	for i := range gray {
		gray[i] = v.Raw[i*4]
	}
	mean, std := Stats(gray)
	log.Printf("[Volume] Loaded %s: %dx%dx%d, range [%.0f, %.0f], mean %.1f, std %.1f",
		source, v.Depth, v.Length, v.Width, v.Min, v.Max, mean, std)
}
