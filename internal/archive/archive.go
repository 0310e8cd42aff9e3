package archive

import (
	"context"
	"fmt"
	"strings"
)

// TargetPixelSuffix marks two-minute cadence target pixel files.
const TargetPixelSuffix = "_tp.fits"

// Product is one downloadable pixel file.
type Product struct {
	Target   int64
	Sector   int
	Key      string
	FileName string
	Size     int64
	URL      string
}

// Archive describes the remote source consulted when a pixel file is not on
// disk.
type Archive interface {
	// Search returns the products for target in sector, sorted by key.
	// An empty result is not an error.
	Search(ctx context.Context, target int64, sector int) ([]Product, error)

	// Download stores p at dst, replacing any existing file, and returns
	// the number of bytes written.
	Download(ctx context.Context, p Product, dst string) (int64, error)
}

// KeyPrefix returns the archive prefix under which the pixel files of target
// in sector are stored.
func KeyPrefix(target int64, sector int) string {
	tic := fmt.Sprintf("%016d", target)
	return fmt.Sprintf("tess/public/tid/s%04d/%s/%s/%s/%s/",
		sector, tic[0:4], tic[4:8], tic[8:12], tic[12:16])
}

// ObjectURL joins the public base URL and an object key.
func ObjectURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// Stem is the file name without the pixel file suffix. Downloaded files are
// placed in a directory named after it.
func Stem(fileName string) string {
	if s, ok := strings.CutSuffix(fileName, TargetPixelSuffix); ok {
		return s
	}
	return strings.TrimSuffix(fileName, ".fits")
}
