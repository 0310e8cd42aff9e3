// Package fitsx wraps the few astrogo/fitsio operations the pixel file and
// light curve codecs share: HDU lookup, header card access, table scanning
// and numeric conversion of decoded cells.
package fitsx

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

var ErrMissingHDU = errors.New("hdu not found")

// FindHDU returns the HDU named name (EXTNAME, case-insensitive).
func FindHDU(f *fitsio.File, name string) (fitsio.HDU, error) {
	for _, hdu := range f.HDUs() {
		if strings.EqualFold(hdu.Name(), name) {
			return hdu, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingHDU, name)
}

// FindTable returns the binary table named name, falling back to the first
// table extension in the file.
func FindTable(f *fitsio.File, name string) (*fitsio.Table, error) {
	if hdu, err := FindHDU(f, name); err == nil {
		if tbl, ok := hdu.(*fitsio.Table); ok {
			return tbl, nil
		}
	}
	for _, hdu := range f.HDUs() {
		if tbl, ok := hdu.(*fitsio.Table); ok {
			return tbl, nil
		}
	}
	return nil, fmt.Errorf("%w: %s table", ErrMissingHDU, name)
}

// FindImage returns the image extension named name, falling back to the
// first image extension after the primary HDU.
func FindImage(f *fitsio.File, name string) (fitsio.Image, error) {
	if hdu, err := FindHDU(f, name); err == nil {
		if img, ok := hdu.(fitsio.Image); ok {
			return img, nil
		}
	}
	for i, hdu := range f.HDUs() {
		if i == 0 {
			continue
		}
		if img, ok := hdu.(fitsio.Image); ok {
			return img, nil
		}
	}
	return nil, fmt.Errorf("%w: %s image", ErrMissingHDU, name)
}

// CardString returns the string value of a header card, or "" when absent.
func CardString(hdr *fitsio.Header, name string) string {
	card := hdr.Get(name)
	if card == nil || card.Value == nil {
		return ""
	}
	if s, ok := card.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(card.Value)
}

// CardInt returns the integer value of a header card. ok is false when the
// card is absent or not numeric.
func CardInt(hdr *fitsio.Header, name string) (int64, bool) {
	card := hdr.Get(name)
	if card == nil || card.Value == nil {
		return 0, false
	}
	if s, isString := card.Value.(string); isString {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return n, err == nil
	}
	f, err := Float(card.Value)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return int64(f), true
}

// ScanTable reads every row of tbl, decoding only the listed columns that
// exist in the table, and hands each row to fn.
func ScanTable(tbl *fitsio.Table, columns []string, fn func(row map[string]interface{}) error) error {
	var present []string
	for _, c := range columns {
		if tbl.Index(c) >= 0 {
			present = append(present, c)
		}
	}

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return fmt.Errorf("read table %s: %w", tbl.Name(), err)
	}
	defer rows.Close()

	for rows.Next() {
		row := make(map[string]interface{}, len(present))
		for _, c := range present {
			row[c] = nil
		}
		if err := rows.Scan(&row); err != nil {
			return fmt.Errorf("scan table %s: %w", tbl.Name(), err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// HasColumn reports whether tbl has a column called name.
func HasColumn(tbl *fitsio.Table, name string) bool {
	return tbl.Index(name) >= 0
}

// Float converts a decoded scalar cell to float64.
func Float(v interface{}) (float64, error) {
	return scalar(reflect.ValueOf(v))
}

// Floats converts a decoded cell (scalar, fixed array or slice) to a flat
// []float64.
func Floats(v interface{}) ([]float64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array, reflect.Slice:
		out := make([]float64, rv.Len())
		for i := range out {
			f, err := scalar(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	default:
		f, err := scalar(rv)
		if err != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
}

func scalar(rv reflect.Value) (float64, error) {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return math.NaN(), nil
		}
		return scalar(rv.Elem())
	case reflect.Invalid:
		return math.NaN(), nil
	}
	return 0, fmt.Errorf("unsupported cell type %s", rv.Type())
}

// Int32 converts a decoded scalar cell to int32.
func Int32(v interface{}) (int32, error) {
	f, err := Float(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, nil
	}
	return int32(f), nil
}

// Ints reads an integer image (BITPIX 8, 16, 32 or 64) as a flat []int64.
func Ints(img fitsio.Image) ([]int64, error) {
	n := 1
	for _, axis := range img.Header().Axes() {
		n *= axis
	}
	if n <= 0 {
		return []int64{}, nil
	}

	// Read sets the length of the destination slice, so it needs capacity n.
	switch bitpix := img.Header().Bitpix(); bitpix {
	case 8:
		raw := make([]byte, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return widen(raw), nil
	case 16:
		raw := make([]int16, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return widen(raw), nil
	case 32:
		raw := make([]int32, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return widen(raw), nil
	case 64:
		raw := make([]int64, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported image bitpix %d", bitpix)
	}
}

func widen[T byte | int16 | int32](raw []T) []int64 {
	out := make([]int64, len(raw))
	for i, v := range raw {
		out[i] = int64(v)
	}
	return out
}
