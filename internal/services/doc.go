// Package services implements the light-curve pipeline: resolving a pixel
// file per sector (disk first, then the remote archive), deriving and
// normalizing light curves, merging them in sector order and drawing the
// result onto a caller-owned figure.
package services
