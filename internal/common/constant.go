// Package common holds values shared by several tessplot packages.
package common

import "fmt"

// DefaultSectors are the observation periods processed when the caller does
// not supply any.
var DefaultSectors = []int{1, 2, 3, 4, 5, 6, 7}

// SeriesFileName is the name of the persisted light curve for a target,
// relative to the working directory.
func SeriesFileName(target int64) string {
	return fmt.Sprintf("%dNorm.fits", target)
}

// Sectors returns a fresh copy of DefaultSectors.
func Sectors() []int {
	out := make([]int, len(DefaultSectors))
	copy(out, DefaultSectors)
	return out
}
