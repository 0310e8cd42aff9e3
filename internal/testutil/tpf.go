// Package testutil builds synthetic target pixel files for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/require"
)

// Cadence is one row of the PIXELS table. Flux and FluxErr hold one value
// per pixel.
type Cadence struct {
	Time    float64
	Flux    []float32
	FluxErr []float32
	Quality int32
}

// TPF describes a synthetic target pixel file. Every cadence must have the
// same number of pixels; a single pixel is written as a scalar column. When
// Aperture is nil no APERTURE extension is written.
type TPF struct {
	TICID    int64
	Sector   int
	Object   string
	Cadences []Cadence
	Aperture []int32
}

// ConstantTPF returns n single-pixel cadences of constant flux starting at
// t0 with a two minute step.
func ConstantTPF(ticid int64, sector int, n int, flux float32, t0 float64) TPF {
	fx := TPF{
		TICID:    ticid,
		Sector:   sector,
		Object:   fmt.Sprintf("TIC %d", ticid),
		Aperture: []int32{3},
	}
	for i := 0; i < n; i++ {
		fx.Cadences = append(fx.Cadences, Cadence{
			Time:    t0 + float64(i)*2.0/60/24,
			Flux:    []float32{flux},
			FluxErr: []float32{1},
		})
	}
	return fx
}

// FileName follows the mission naming convention for two-minute pixel files.
func FileName(ticid int64, sector int) string {
	return fmt.Sprintf("tess2018206045859-s%04d-%016d-0120-s_tp.fits", sector, ticid)
}

// ProductDir is the directory a pixel file lives in, named after the file
// without its suffix.
func ProductDir(ticid int64, sector int) string {
	return fmt.Sprintf("tess2018206045859-s%04d-%016d-0120-s", sector, ticid)
}

// WriteTPF writes fx to path, creating parent directories.
func WriteTPF(t testing.TB, path string, fx TPF) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	fh, err := os.Create(path)
	require.NoError(t, err)
	defer fh.Close()

	f, err := fitsio.Create(fh)
	require.NoError(t, err)
	defer f.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	require.NoError(t, err)
	require.NoError(t, phdu.Header().Append(
		fitsio.Card{Name: "TELESCOP", Value: "TESS"},
		fitsio.Card{Name: "OBJECT", Value: fx.Object},
		fitsio.Card{Name: "TICID", Value: int(fx.TICID)},
		fitsio.Card{Name: "SECTOR", Value: fx.Sector},
		fitsio.Card{Name: "CAMERA", Value: 1},
		fitsio.Card{Name: "CCD", Value: 2},
	))
	require.NoError(t, f.Write(phdu))

	npix := 1
	if len(fx.Cadences) > 0 {
		npix = len(fx.Cadences[0].Flux)
	}
	pixFormat := "E"
	if npix > 1 {
		pixFormat = fmt.Sprintf("%dE", npix)
	}

	cols := []fitsio.Column{
		{Name: "TIME", Format: "D", Unit: "BJD - 2457000, days"},
		{Name: "FLUX", Format: pixFormat, Unit: "e-/s"},
		{Name: "FLUX_ERR", Format: pixFormat, Unit: "e-/s"},
		{Name: "QUALITY", Format: "J"},
	}
	tbl, err := fitsio.NewTable("PIXELS", cols, fitsio.BINARY_TBL)
	require.NoError(t, err)
	defer tbl.Close()

	for _, c := range fx.Cadences {
		require.Len(t, c.Flux, npix)
		require.Len(t, c.FluxErr, npix)
		tm, quality := c.Time, c.Quality
		flux, fluxErr := pixels(c.Flux), pixels(c.FluxErr)
		require.NoError(t, tbl.Write(&tm, flux, fluxErr, &quality))
	}
	require.NoError(t, f.Write(tbl))

	if fx.Aperture != nil {
		img := fitsio.NewImage(32, []int{len(fx.Aperture), 1})
		defer img.Close()
		require.NoError(t, img.Header().Append(fitsio.Card{Name: "EXTNAME", Value: "APERTURE"}))
		mask := append([]int32(nil), fx.Aperture...)
		require.NoError(t, img.Write(&mask))
		require.NoError(t, f.Write(img))
	}
}

// pixels returns a pointer to a float32 for one value and to a [n]float32
// array otherwise, matching the "E" and "nE" column formats.
func pixels(v []float32) interface{} {
	if len(v) == 1 {
		x := v[0]
		return &x
	}
	arr := reflect.New(reflect.ArrayOf(len(v), reflect.TypeOf(float32(0))))
	reflect.Copy(arr.Elem(), reflect.ValueOf(v))
	return arr.Interface()
}
