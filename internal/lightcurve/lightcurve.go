// Package lightcurve holds the brightness-versus-time series derived from
// target pixel files, its normalization, concatenation across sectors and
// FITS persistence.
package lightcurve

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrCannotNormalize = errors.New("cannot normalize light curve")

// LightCurve is a set of parallel per-sample slices. Samples keep the order
// they were appended in; nothing is sorted or deduplicated.
type LightCurve struct {
	Target  int64
	Object  string
	Sectors []int

	Time    []float64
	Flux    []float64
	FluxErr []float64
	Quality []int32
	Sector  []int32
}

// New returns an empty curve with capacity n for one sector.
func New(target int64, object string, sector int, n int) *LightCurve {
	return &LightCurve{
		Target:  target,
		Object:  object,
		Sectors: []int{sector},
		Time:    make([]float64, 0, n),
		Flux:    make([]float64, 0, n),
		FluxErr: make([]float64, 0, n),
		Quality: make([]int32, 0, n),
		Sector:  make([]int32, 0, n),
	}
}

// Add appends one sample tagged with the curve's last sector.
func (lc *LightCurve) Add(t, flux, fluxErr float64, quality int32) {
	var sector int32
	if len(lc.Sectors) > 0 {
		sector = int32(lc.Sectors[len(lc.Sectors)-1])
	}
	lc.Time = append(lc.Time, t)
	lc.Flux = append(lc.Flux, flux)
	lc.FluxErr = append(lc.FluxErr, fluxErr)
	lc.Quality = append(lc.Quality, quality)
	lc.Sector = append(lc.Sector, sector)
}

func (lc *LightCurve) Len() int {
	return len(lc.Time)
}

// Clone returns a deep copy.
func (lc *LightCurve) Clone() *LightCurve {
	return &LightCurve{
		Target:  lc.Target,
		Object:  lc.Object,
		Sectors: append([]int(nil), lc.Sectors...),
		Time:    append([]float64(nil), lc.Time...),
		Flux:    append([]float64(nil), lc.Flux...),
		FluxErr: append([]float64(nil), lc.FluxErr...),
		Quality: append([]int32(nil), lc.Quality...),
		Sector:  append([]int32(nil), lc.Sector...),
	}
}

// Median is the median of the finite flux values. It returns NaN when there
// are none.
func (lc *LightCurve) Median() float64 {
	finite := make([]float64, 0, len(lc.Flux))
	for _, f := range lc.Flux {
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			finite = append(finite, f)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	mid := len(finite) / 2
	if len(finite)%2 == 1 {
		return finite[mid]
	}
	return (finite[mid-1] + finite[mid]) / 2
}

// Normalize returns a copy with flux and flux errors divided by the median
// flux, so the curve is centered on 1.0.
func (lc *LightCurve) Normalize() (*LightCurve, error) {
	m := lc.Median()
	if math.IsNaN(m) {
		return nil, fmt.Errorf("%w: no finite flux values", ErrCannotNormalize)
	}
	if m == 0 {
		return nil, fmt.Errorf("%w: median flux is zero", ErrCannotNormalize)
	}

	out := lc.Clone()
	for i := range out.Flux {
		out.Flux[i] /= m
	}
	for i := range out.FluxErr {
		out.FluxErr[i] /= m
	}
	return out, nil
}

// Append returns a new curve holding lc's samples followed by other's.
func (lc *LightCurve) Append(other *LightCurve) *LightCurve {
	out := lc.Clone()
	if other == nil {
		return out
	}
	if out.Object == "" {
		out.Object = other.Object
	}
	out.Sectors = append(out.Sectors, other.Sectors...)
	out.Time = append(out.Time, other.Time...)
	out.Flux = append(out.Flux, other.Flux...)
	out.FluxErr = append(out.FluxErr, other.FluxErr...)
	out.Quality = append(out.Quality, other.Quality...)
	out.Sector = append(out.Sector, other.Sector...)
	return out
}

// TimeSpan returns the smallest and largest finite time. ok is false for an
// empty curve.
func (lc *LightCurve) TimeSpan() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, t := range lc.Time {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			continue
		}
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}
