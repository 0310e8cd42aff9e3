package lightcurve

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/dmitrijs2005/tessplot/internal/filex"
	"github.com/dmitrijs2005/tessplot/internal/fitsx"
)

// TableName is the EXTNAME of the binary table holding the samples.
const TableName = "LIGHTCURVE"

var columns = []fitsio.Column{
	{Name: "TIME", Format: "D", Unit: "BJD - 2457000, days"},
	{Name: "FLUX", Format: "E"},
	{Name: "FLUX_ERR", Format: "E"},
	{Name: "QUALITY", Format: "J"},
	{Name: "SECTOR", Format: "J"},
}

// WriteFITS stores the curve at path, replacing any existing file.
func (lc *LightCurve) WriteFITS(path string) error {
	err := filex.WriteAtomic(path, lc.Encode)
	if err != nil {
		return fmt.Errorf("write light curve %s: %w", path, err)
	}
	return nil
}

// Encode writes a primary HDU with target metadata followed by the
// LIGHTCURVE binary table.
func (lc *LightCurve) Encode(w io.Writer) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return err
	}
	err = phdu.Header().Append(
		fitsio.Card{Name: "ORIGIN", Value: "tessplot", Comment: "program that wrote this file"},
		fitsio.Card{Name: "OBJECT", Value: lc.Object, Comment: "target name"},
		fitsio.Card{Name: "TICID", Value: int(lc.Target), Comment: "TESS Input Catalog id"},
		fitsio.Card{Name: "SECTORS", Value: joinSectors(lc.Sectors), Comment: "sectors in append order"},
	)
	if err != nil {
		return err
	}
	if err := f.Write(phdu); err != nil {
		return err
	}

	tbl, err := fitsio.NewTable(TableName, columns, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()

	for i := range lc.Time {
		t := lc.Time[i]
		flux := float32(lc.Flux[i])
		fluxErr := float32(at(lc.FluxErr, i))
		quality := int32(0)
		if i < len(lc.Quality) {
			quality = lc.Quality[i]
		}
		sector := int32(0)
		if i < len(lc.Sector) {
			sector = lc.Sector[i]
		}
		if err := tbl.Write(&t, &flux, &fluxErr, &quality, &sector); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	return f.Write(tbl)
}

// ReadFITS loads a curve written by WriteFITS.
func ReadFITS(path string) (*LightCurve, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	lc, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("read light curve %s: %w", path, err)
	}
	return lc, nil
}

func Decode(r io.Reader) (*LightCurve, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hdr := f.HDU(0).Header()
	target, _ := fitsx.CardInt(hdr, "TICID")
	lc := &LightCurve{
		Target:  target,
		Object:  fitsx.CardString(hdr, "OBJECT"),
		Sectors: splitSectors(fitsx.CardString(hdr, "SECTORS")),
	}

	tbl, err := fitsx.FindTable(f, TableName)
	if err != nil {
		return nil, err
	}

	names := []string{"TIME", "FLUX", "FLUX_ERR", "QUALITY", "SECTOR"}
	err = fitsx.ScanTable(tbl, names, func(row map[string]interface{}) error {
		t, err := fitsx.Float(row["TIME"])
		if err != nil {
			return err
		}
		flux, err := fitsx.Float(row["FLUX"])
		if err != nil {
			return err
		}
		fluxErr, err := fitsx.Float(row["FLUX_ERR"])
		if err != nil {
			return err
		}
		quality, err := fitsx.Int32(row["QUALITY"])
		if err != nil {
			return err
		}
		sector, err := fitsx.Int32(row["SECTOR"])
		if err != nil {
			return err
		}
		lc.Time = append(lc.Time, t)
		lc.Flux = append(lc.Flux, flux)
		lc.FluxErr = append(lc.FluxErr, fluxErr)
		lc.Quality = append(lc.Quality, quality)
		lc.Sector = append(lc.Sector, sector)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lc, nil
}

func at(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func joinSectors(sectors []int) string {
	parts := make([]string, len(sectors))
	for i, s := range sectors {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

func splitSectors(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}
