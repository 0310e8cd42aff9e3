// Package tpf reads TESS target pixel files and turns them into light
// curves by simple aperture photometry.
package tpf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/dmitrijs2005/tessplot/internal/fitsx"
	"github.com/dmitrijs2005/tessplot/internal/lightcurve"
)

// Quality flags carried by the QUALITY column.
const (
	QualityAttitudeTweak   = 1 << 0
	QualitySafeMode        = 1 << 1
	QualityCoarsePoint     = 1 << 2
	QualityEarthPoint      = 1 << 3
	QualityArgabrightening = 1 << 4
	QualityDesat           = 1 << 5
	QualityManualExclude   = 1 << 7
)

// DefaultBitmask is the set of flags whose cadences are dropped by default.
const DefaultBitmask = QualityAttitudeTweak | QualitySafeMode | QualityCoarsePoint |
	QualityEarthPoint | QualityDesat | QualityManualExclude

// optimalAperture is the APERTURE bit marking pixels used by the pipeline.
const optimalAperture = 2

var ErrNoPixels = errors.New("pixel file has no flux data")

type Meta struct {
	Object string
	TICID  int64
	Sector int
	Camera int
	CCD    int
}

// TargetPixelFile is the decoded content of one pixel file. Flux and FluxErr
// are indexed [cadence][pixel].
type TargetPixelFile struct {
	Path     string
	Meta     Meta
	Time     []float64
	Flux     [][]float64
	FluxErr  [][]float64
	Quality  []int32
	Aperture []bool
}

// Open reads the pixel file at path.
func Open(path string) (*TargetPixelFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	tpf, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("read pixel file %s: %w", path, err)
	}
	tpf.Path = path
	return tpf, nil
}

func Decode(r io.Reader) (*TargetPixelFile, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hdr := f.HDU(0).Header()
	tpf := &TargetPixelFile{Meta: readMeta(hdr)}

	tbl, err := fitsx.FindTable(f, "PIXELS")
	if err != nil {
		return nil, err
	}
	if !fitsx.HasColumn(tbl, "TIME") || !fitsx.HasColumn(tbl, "FLUX") {
		return nil, fmt.Errorf("%w: missing TIME or FLUX column", ErrNoPixels)
	}
	hasErr := fitsx.HasColumn(tbl, "FLUX_ERR")

	err = fitsx.ScanTable(tbl, []string{"TIME", "FLUX", "FLUX_ERR", "QUALITY"}, func(row map[string]interface{}) error {
		t, err := fitsx.Float(row["TIME"])
		if err != nil {
			return fmt.Errorf("TIME: %w", err)
		}
		flux, err := fitsx.Floats(row["FLUX"])
		if err != nil {
			return fmt.Errorf("FLUX: %w", err)
		}
		quality, err := fitsx.Int32(row["QUALITY"])
		if err != nil {
			return fmt.Errorf("QUALITY: %w", err)
		}

		tpf.Time = append(tpf.Time, t)
		tpf.Flux = append(tpf.Flux, flux)
		tpf.Quality = append(tpf.Quality, quality)

		if hasErr {
			fluxErr, err := fitsx.Floats(row["FLUX_ERR"])
			if err != nil {
				return fmt.Errorf("FLUX_ERR: %w", err)
			}
			tpf.FluxErr = append(tpf.FluxErr, fluxErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(tpf.Flux) == 0 || len(tpf.Flux[0]) == 0 {
		return nil, ErrNoPixels
	}

	tpf.Aperture = readAperture(f, len(tpf.Flux[0]))
	return tpf, nil
}

func readMeta(hdr *fitsio.Header) Meta {
	m := Meta{Object: fitsx.CardString(hdr, "OBJECT")}
	if v, ok := fitsx.CardInt(hdr, "TICID"); ok {
		m.TICID = v
	}
	if v, ok := fitsx.CardInt(hdr, "SECTOR"); ok {
		m.Sector = int(v)
	}
	if v, ok := fitsx.CardInt(hdr, "CAMERA"); ok {
		m.Camera = int(v)
	}
	if v, ok := fitsx.CardInt(hdr, "CCD"); ok {
		m.CCD = int(v)
	}
	return m
}

// readAperture returns the optimal aperture mask. A missing, mismatched or
// empty mask selects every pixel.
func readAperture(f *fitsio.File, npix int) []bool {
	all := make([]bool, npix)
	for i := range all {
		all[i] = true
	}

	img, err := fitsx.FindImage(f, "APERTURE")
	if err != nil {
		return all
	}
	raw, err := fitsx.Ints(img)
	if err != nil || len(raw) != npix {
		return all
	}

	mask := make([]bool, npix)
	found := false
	for i, v := range raw {
		if v&optimalAperture != 0 {
			mask[i] = true
			found = true
		}
	}
	if !found {
		return all
	}
	return mask
}

// Cadences returns the number of rows read from the file.
func (t *TargetPixelFile) Cadences() int {
	return len(t.Time)
}

// ToLightCurve sums the aperture pixels of each cadence. Cadences with a
// non-finite time or with any bitmask flag set are dropped; a bitmask of 0
// keeps every cadence. Non-finite pixels are skipped and errors are summed
// in quadrature.
func (t *TargetPixelFile) ToLightCurve(target int64, sector int, bitmask int) *lightcurve.LightCurve {
	object := t.Meta.Object
	if object == "" {
		object = fmt.Sprintf("TIC %d", target)
	}
	lc := lightcurve.New(target, object, sector, len(t.Time))

	for i, tm := range t.Time {
		if math.IsNaN(tm) || math.IsInf(tm, 0) {
			continue
		}
		if bitmask != 0 && int(t.Quality[i])&bitmask != 0 {
			continue
		}

		var flux, variance float64
		var n int
		for p, v := range t.Flux[i] {
			if p >= len(t.Aperture) || !t.Aperture[p] {
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			flux += v
			n++
			if i < len(t.FluxErr) && p < len(t.FluxErr[i]) {
				e := t.FluxErr[i][p]
				if !math.IsNaN(e) {
					variance += e * e
				}
			}
		}

		if n == 0 {
			lc.Add(tm, math.NaN(), math.NaN(), t.Quality[i])
			continue
		}
		lc.Add(tm, flux, math.Sqrt(variance), t.Quality[i])
	}
	return lc
}
