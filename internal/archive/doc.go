// Package archive finds and fetches target pixel files from the remote
// mission archive.
//
// # Overview
//
// The package defines the Archive contract used by the resolution policy:
// Search lists products for one (target, sector) pair and Download stores a
// product at a caller chosen path. S3Archive implements it on top of the
// public TESS bucket: listing goes through the S3 API (aws-sdk-go-v2) and
// objects are fetched over plain HTTPS with netx.Download.
//
// Object layout
//
//	tess/public/tid/s0001/0000/0000/2515/5310/tess2018206045859-s0001-0000000025155310-0120-s_tp.fits
//
// The 16 digit zero padded TIC id is split into four groups of four.
// Only two-minute cadence target pixel files (suffix "_tp.fits") are returned.
package archive
