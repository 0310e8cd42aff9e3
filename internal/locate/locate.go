// Package locate finds target pixel files that are already on disk.
//
// Two layouts are supported:
//
//	<dir>/sector001/tess*s0001*<tic>*/*.fits   per-sector subdirectories
//	<dir>/tess*s0001*<tic>*/*.fits             everything in one directory
//
// With LayoutAuto the per-sector layout is chosen when the cleaned download
// directory contains the configured marker substring.
package locate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/tessplot/internal/archive"
	"github.com/dmitrijs2005/tessplot/internal/config"
	"github.com/dmitrijs2005/tessplot/internal/filex"
)

type Finder struct {
	layout string
	marker string
}

// NewFinder returns a Finder for layout (config.LayoutAuto, LayoutSector or
// LayoutFlat). marker is only consulted in auto mode.
func NewFinder(layout, marker string) *Finder {
	if layout == "" {
		layout = config.LayoutAuto
	}
	return &Finder{layout: layout, marker: marker}
}

// Normalize cleans a download directory path.
func Normalize(dir string) string {
	return filepath.Clean(dir)
}

// PerSector reports whether dir uses per-sector subdirectories.
func (f *Finder) PerSector(dir string) bool {
	switch f.layout {
	case config.LayoutSector:
		return true
	case config.LayoutFlat:
		return false
	}
	return f.marker != "" && strings.Contains(Normalize(dir), f.marker)
}

// SectorDir is the directory that holds a sector's product directories.
func (f *Finder) SectorDir(dir string, sector int) string {
	dir = Normalize(dir)
	if f.PerSector(dir) {
		return filepath.Join(dir, fmt.Sprintf("sector%03d", sector))
	}
	return dir
}

// Pattern builds the glob for target in sector under dir.
func (f *Finder) Pattern(dir string, target int64, sector int) string {
	product := fmt.Sprintf("tess*s0%03d*%d*", sector, target)
	return filepath.Join(f.SectorDir(dir, sector), product, "*.fits")
}

// Find returns matching files in lexicographic order. No match yields an
// empty slice and a nil error.
func (f *Finder) Find(dir string, target int64, sector int) ([]string, error) {
	return filex.SortedGlob(f.Pattern(dir, target, sector))
}

// Dest returns where a downloaded file must be stored so that Find locates
// it on the next call.
func (f *Finder) Dest(dir string, sector int, fileName string) string {
	return filepath.Join(f.SectorDir(dir, sector), archive.Stem(fileName), fileName)
}
