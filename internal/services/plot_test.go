package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/tessplot/internal/archive"
	"github.com/dmitrijs2005/tessplot/internal/common"
	"github.com/dmitrijs2005/tessplot/internal/config"
	"github.com/dmitrijs2005/tessplot/internal/figure"
	"github.com/dmitrijs2005/tessplot/internal/journal"
	"github.com/dmitrijs2005/tessplot/internal/lightcurve"
	"github.com/dmitrijs2005/tessplot/internal/locate"
	"github.com/dmitrijs2005/tessplot/internal/logging"
	"github.com/dmitrijs2005/tessplot/internal/testutil"
	"github.com/dmitrijs2005/tessplot/internal/tpf"
)

const tic int64 = 25155310

var _ Recorder = (*journal.Journal)(nil)

type fakeArchive struct {
	t         testing.TB
	products  map[int][]archive.Product
	files     map[string]testutil.TPF
	searchErr error
	searches  []int
	fetched   []string
}

func (f *fakeArchive) Search(ctx context.Context, target int64, sector int) ([]archive.Product, error) {
	f.searches = append(f.searches, sector)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.products[sector], nil
}

func (f *fakeArchive) Download(ctx context.Context, p archive.Product, dst string) (int64, error) {
	f.fetched = append(f.fetched, dst)
	testutil.WriteTPF(f.t, dst, f.files[p.Key])
	st, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// remote registers fx as the only archive product of its sector.
func (f *fakeArchive) remote(fx testutil.TPF) archive.Product {
	name := testutil.FileName(fx.TICID, fx.Sector)
	p := archive.Product{
		Target:   fx.TICID,
		Sector:   fx.Sector,
		Key:      archive.KeyPrefix(fx.TICID, fx.Sector) + name,
		FileName: name,
	}
	if f.products == nil {
		f.products = map[int][]archive.Product{}
		f.files = map[string]testutil.TPF{}
	}
	f.products[fx.Sector] = []archive.Product{p}
	f.files[p.Key] = fx
	return p
}

type fakeRecorder struct {
	runs      []journal.Run
	downloads [][]journal.Download
	err       error
}

func (r *fakeRecorder) RecordRun(ctx context.Context, run journal.Run, downloads []journal.Download) error {
	r.runs = append(r.runs, run)
	r.downloads = append(r.downloads, downloads)
	return r.err
}

type harness struct {
	svc    LightcurveService
	finder *locate.Finder
	logs   *bytes.Buffer
}

func newHarness(t *testing.T, layout string, arch archive.Archive, rec Recorder) *harness {
	t.Helper()
	buf := &bytes.Buffer{}
	log, err := logging.New(buf, "json", "debug")
	require.NoError(t, err)

	finder := locate.NewFinder(layout, "epyc")
	svc := NewLightcurveService(NewResolver(finder, arch, log), tpf.DefaultBitmask, rec, log)
	svc.(*lightcurveService).newID = func() string { return "run-1" }
	return &harness{svc: svc, finder: finder, logs: buf}
}

// writeLocal stores fx where the finder looks for it and returns the path.
func (h *harness) writeLocal(t *testing.T, dir string, fx testutil.TPF) string {
	t.Helper()
	path := h.finder.Dest(dir, fx.Sector, testutil.FileName(fx.TICID, fx.Sector))
	testutil.WriteTPF(t, path, fx)
	return path
}

func TestPlot_AllLocal_MergesInSectorOrder(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, nil)

	counts := map[int]int{1: 5, 2: 7, 3: 3}
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 1, counts[1], 100, 1000))
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 2, counts[2], 200, 1030))
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 3, counts[3], 50, 1060))

	fig := figure.New()
	res, err := h.svc.Plot(context.Background(), fig, Request{
		Target:      tic,
		DownloadDir: dir,
		Sectors:     []int{1, 2, 3},
	})
	require.NoError(t, err)
	require.NotNil(t, res.LightCurve)

	lc := res.LightCurve
	assert.Equal(t, 15, lc.Len())
	assert.Equal(t, []int{1, 2, 3}, lc.Sectors)
	assert.Equal(t, []int{1, 2, 3}, res.Found())
	assert.Equal(t, "run-1", res.RunID)

	var order []int32
	for i, s := range lc.Sector {
		if i == 0 || lc.Sector[i-1] != s {
			order = append(order, s)
		}
	}
	assert.Equal(t, []int32{1, 2, 3}, order)
	assert.Less(t, lc.Time[0], lc.Time[5])
	assert.Less(t, lc.Time[11], lc.Time[12])

	for _, sr := range res.Sectors {
		assert.Equal(t, SourceLocal, sr.Source)
		assert.Equal(t, counts[sr.Sector], sr.Samples)
	}

	assert.Equal(t, 1, fig.Series())
	assert.Equal(t, 0, res.SeriesIndex)
	assert.Equal(t, []string{"25155310"}, fig.Labels())
	assert.Len(t, fig.Points(0), 15)
}

func TestPlot_NothingFound_WarnsAndAddsNoSeries(t *testing.T) {
	arch := &fakeArchive{t: t}
	h := newHarness(t, config.LayoutAuto, arch, nil)

	fig := figure.New()
	res, err := h.svc.Plot(context.Background(), fig, Request{
		Target:      tic,
		DownloadDir: t.TempDir(),
		Sectors:     []int{1, 2},
	})
	require.NoError(t, err)

	assert.Nil(t, res.LightCurve)
	assert.Equal(t, -1, res.SeriesIndex)
	assert.Empty(t, res.Found())
	assert.Equal(t, 0, fig.Series())
	assert.Equal(t, []int{1, 2}, arch.searches)
	assert.Empty(t, arch.fetched)
	assert.Contains(t, h.logs.String(), "25155310 No LC found for any sector")
	assert.Contains(t, h.logs.String(), `"level":"WARN"`)

	lo, hi := fig.YRange()
	assert.Equal(t, figure.DefaultYMin, lo)
	assert.Equal(t, figure.DefaultYMax, hi)
}

func TestPlot_DefaultSectors(t *testing.T) {
	arch := &fakeArchive{t: t}
	h := newHarness(t, config.LayoutAuto, arch, nil)

	res, err := h.svc.Plot(context.Background(), figure.New(), Request{Target: tic, DownloadDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, common.DefaultSectors, arch.searches)
	assert.Len(t, res.Sectors, len(common.DefaultSectors))
}

func TestPlot_OffsetShiftsPlotOnly(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, nil)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 1, 6, 300, 1000))

	const offset = 0.3
	fig := figure.New()
	res, err := h.svc.Plot(context.Background(), fig, Request{
		Target:      tic,
		DownloadDir: dir,
		Sectors:     []int{1},
		Offset:      offset,
	})
	require.NoError(t, err)

	lc := res.LightCurve
	pts := fig.Points(res.SeriesIndex)
	require.Len(t, pts, lc.Len())
	for i, p := range pts {
		assert.Equal(t, lc.Time[i], p.X)
		assert.InDelta(t, lc.Flux[i]-offset, p.Y, 1e-12)
		assert.Equal(t, 1.0, lc.Flux[i], "returned data must not carry the offset")
	}
}

func TestPlot_ConstantFluxNormalizesToOne(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, nil)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 4, 8, 250, 1100))

	res, err := h.svc.Plot(context.Background(), figure.New(), Request{
		Target:      tic,
		DownloadDir: dir,
		Sectors:     []int{4},
	})
	require.NoError(t, err)

	for i := range res.LightCurve.Flux {
		assert.Equal(t, 1.0, res.LightCurve.Flux[i])
		assert.InDelta(t, 1.0/250, res.LightCurve.FluxErr[i], 1e-9)
	}
}

func TestPlot_SaveSeriesWritesAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	chdir(t, t.TempDir())
	h := newHarness(t, config.LayoutAuto, nil, nil)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 1, 5, 100, 1000))
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 2, 4, 100, 1030))

	req := Request{Target: tic, DownloadDir: dir, Sectors: []int{1, 2}, SaveSeries: true}
	res, err := h.svc.Plot(context.Background(), figure.New(), req)
	require.NoError(t, err)
	assert.Equal(t, "25155310Norm.fits", res.SeriesFile)

	saved, err := lightcurve.ReadFITS(res.SeriesFile)
	require.NoError(t, err)
	assert.Equal(t, 9, saved.Len())
	assert.Equal(t, res.LightCurve.Time, saved.Time)
	assert.Equal(t, []int{1, 2}, saved.Sectors)

	req.Sectors = []int{2}
	_, err = h.svc.Plot(context.Background(), figure.New(), req)
	require.NoError(t, err)

	saved, err = lightcurve.ReadFITS(common.SeriesFileName(tic))
	require.NoError(t, err)
	assert.Equal(t, 4, saved.Len())
}

func TestPlot_NoSeriesFileWithoutData(t *testing.T) {
	chdir(t, t.TempDir())
	h := newHarness(t, config.LayoutAuto, nil, nil)

	res, err := h.svc.Plot(context.Background(), figure.New(), Request{
		Target:      tic,
		DownloadDir: t.TempDir(),
		Sectors:     []int{1},
		SaveSeries:  true,
	})
	require.NoError(t, err)
	assert.Empty(t, res.SeriesFile)
	assert.NoFileExists(t, common.SeriesFileName(tic))
}

func TestPlot_RepeatedCallsOverlay(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, nil)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 1, 5, 100, 1000))
	h.writeLocal(t, dir, testutil.ConstantTPF(42, 1, 3, 100, 1000))

	fig := figure.New()
	first, err := h.svc.Plot(context.Background(), fig, Request{Target: tic, DownloadDir: dir, Sectors: []int{1}})
	require.NoError(t, err)
	second, err := h.svc.Plot(context.Background(), fig, Request{Target: 42, DownloadDir: dir, Sectors: []int{1}, Offset: 0.05})
	require.NoError(t, err)

	assert.Equal(t, 2, fig.Series())
	assert.Equal(t, []string{"25155310", "42"}, fig.Labels())
	assert.Equal(t, 0, first.SeriesIndex)
	assert.Equal(t, 1, second.SeriesIndex)
	assert.Len(t, fig.Points(0), 5)
	assert.Len(t, fig.Points(1), 3)
}

func TestPlot_BothLayouts(t *testing.T) {
	tests := []struct {
		name      string
		layout    string
		subdir    string
		perSector bool
	}{
		{name: "flat", layout: config.LayoutAuto, subdir: "data", perSector: false},
		{name: "marker selects per-sector", layout: config.LayoutAuto, subdir: "epyc/data/tess", perSector: true},
		{name: "forced per-sector", layout: config.LayoutSector, subdir: "tess", perSector: true},
		{name: "forced flat", layout: config.LayoutFlat, subdir: "epyc", perSector: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), tt.subdir)
			h := newHarness(t, tt.layout, nil, nil)
			path := h.writeLocal(t, dir, testutil.ConstantTPF(tic, 3, 4, 100, 1000))
			assert.Equal(t, tt.perSector, strings.Contains(path, "sector003"))

			res, err := h.svc.Plot(context.Background(), figure.New(), Request{
				Target:      tic,
				DownloadDir: dir + string(filepath.Separator),
				Sectors:     []int{3},
			})
			require.NoError(t, err)
			require.NotNil(t, res.LightCurve)
			assert.Equal(t, 4, res.LightCurve.Len())
			assert.Equal(t, path, res.Sectors[0].Path)
		})
	}
}

func TestPlot_DownloadsMissingSectorIntoLocalLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "epyc")
	arch := &fakeArchive{t: t}
	p := arch.remote(testutil.ConstantTPF(tic, 2, 6, 400, 1030))
	rec := &fakeRecorder{}
	h := newHarness(t, config.LayoutAuto, arch, rec)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 1, 5, 100, 1000))

	res, err := h.svc.Plot(context.Background(), figure.New(), Request{
		Target:      tic,
		DownloadDir: dir,
		Sectors:     []int{1, 2},
	})
	require.NoError(t, err)

	dst := h.finder.Dest(dir, 2, p.FileName)
	assert.Equal(t, []string{dst}, arch.fetched)
	assert.Equal(t, []int{2}, arch.searches, "sector 1 is local and never searched")
	assert.Equal(t, SourceLocal, res.Sectors[0].Source)
	assert.Equal(t, SourceRemote, res.Sectors[1].Source)
	assert.Equal(t, 11, res.LightCurve.Len())
	assert.Contains(t, h.logs.String(), "Downloading sector 2 for star 25155310")

	require.Len(t, rec.runs, 1)
	assert.Equal(t, []int{1, 2}, rec.runs[0].Requested)
	assert.Equal(t, []int{1, 2}, rec.runs[0].Found)
	assert.Equal(t, 11, rec.runs[0].Samples)
	require.Len(t, rec.downloads[0], 1)
	assert.Equal(t, p.Key, rec.downloads[0][0].Key)
	assert.Equal(t, dst, rec.downloads[0][0].Path)
	assert.Positive(t, rec.downloads[0][0].Bytes)

	// the downloaded file is found locally next time
	_, err = h.svc.Plot(context.Background(), figure.New(), Request{
		Target:      tic,
		DownloadDir: dir,
		Sectors:     []int{1, 2},
	})
	require.NoError(t, err)
	assert.Len(t, arch.fetched, 1)
	assert.Equal(t, []int{2}, arch.searches)
	assert.Empty(t, rec.downloads[1])
}

func TestPlot_QualityFiltering(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, nil)

	fx := testutil.ConstantTPF(tic, 1, 6, 100, 1000)
	fx.Cadences[1].Quality = tpf.QualityDesat
	fx.Cadences[4].Quality = tpf.QualityCoarsePoint
	h.writeLocal(t, dir, fx)

	allFlagged := testutil.ConstantTPF(tic, 2, 3, 100, 1030)
	for i := range allFlagged.Cadences {
		allFlagged.Cadences[i].Quality = tpf.QualityManualExclude
	}
	h.writeLocal(t, dir, allFlagged)

	res, err := h.svc.Plot(context.Background(), figure.New(), Request{
		Target:      tic,
		DownloadDir: dir,
		Sectors:     []int{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.LightCurve.Len())
	assert.Equal(t, []int{1}, res.Found())
	assert.Equal(t, 0, res.Sectors[1].Samples)
	assert.Contains(t, h.logs.String(), "no usable cadences in sector")
}

func TestPlot_UnnormalizableSectorIsSkipped(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, nil)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 1, 3, 0, 1000))
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 2, 4, 80, 1030))

	fig := figure.New()
	res, err := h.svc.Plot(context.Background(), fig, Request{Target: tic, DownloadDir: dir, Sectors: []int{1, 2}})
	require.NoError(t, err)

	require.NotNil(t, res.LightCurve)
	assert.Equal(t, 4, res.LightCurve.Len())
	assert.Equal(t, []int{2}, res.Found())
	assert.Equal(t, SourceLocal, res.Sectors[0].Source)
	assert.Equal(t, 0, res.Sectors[0].Samples)
	assert.Contains(t, h.logs.String(), "sector skipped, flux cannot be normalized")
	assert.Equal(t, 1, fig.Series())
}

func TestPlot_OnlyUnnormalizableSectorsMeansNoData(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, nil)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 1, 3, 0, 1000))

	fig := figure.New()
	res, err := h.svc.Plot(context.Background(), fig, Request{Target: tic, DownloadDir: dir, Sectors: []int{1}})
	require.NoError(t, err)
	assert.Nil(t, res.LightCurve)
	assert.Equal(t, 0, fig.Series())
	assert.Contains(t, h.logs.String(), "25155310 No LC found for any sector")
}

func TestPlot_Errors(t *testing.T) {
	t.Run("nil figure", func(t *testing.T) {
		h := newHarness(t, config.LayoutAuto, nil, nil)
		_, err := h.svc.Plot(context.Background(), nil, Request{Target: tic})
		require.Error(t, err)
	})

	t.Run("unreadable file", func(t *testing.T) {
		dir := t.TempDir()
		h := newHarness(t, config.LayoutAuto, nil, nil)
		path := h.finder.Dest(dir, 1, testutil.FileName(tic, 1))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("not a fits file"), 0o600))

		_, err := h.svc.Plot(context.Background(), figure.New(), Request{Target: tic, DownloadDir: dir, Sectors: []int{1}})
		require.Error(t, err)
	})

	t.Run("archive failure", func(t *testing.T) {
		boom := errors.New("boom")
		arch := &fakeArchive{t: t, searchErr: boom}
		h := newHarness(t, config.LayoutAuto, arch, nil)

		_, err := h.svc.Plot(context.Background(), figure.New(), Request{Target: tic, DownloadDir: t.TempDir(), Sectors: []int{1}})
		require.ErrorIs(t, err, boom)
	})

	t.Run("canceled", func(t *testing.T) {
		h := newHarness(t, config.LayoutAuto, nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.svc.Plot(ctx, figure.New(), Request{Target: tic, DownloadDir: t.TempDir()})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestPlot_SavePlot(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, nil)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 1, 5, 100, 1000))

	out := filepath.Join(t.TempDir(), "lc.png")

	res, err := h.svc.Plot(context.Background(), figure.New(), Request{
		Target: tic, DownloadDir: dir, Sectors: []int{1}, PlotFile: out,
	})
	require.NoError(t, err)
	assert.Empty(t, res.PlotFile)
	assert.NoFileExists(t, out, "SavePlot not set")

	res, err = h.svc.Plot(context.Background(), figure.New(), Request{
		Target: tic, DownloadDir: dir, Sectors: []int{1}, PlotFile: out, SavePlot: true,
	})
	require.NoError(t, err)
	assert.Equal(t, out, res.PlotFile)
	assert.FileExists(t, out)
}

func TestPlot_RecorderFailureIsLogged(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	h := newHarness(t, config.LayoutAuto, nil, rec)

	_, err := h.svc.Plot(context.Background(), figure.New(), Request{Target: tic, DownloadDir: t.TempDir(), Sectors: []int{1}})
	require.NoError(t, err)
	require.Len(t, rec.runs, 1)
	assert.Empty(t, rec.runs[0].Found)
	assert.Contains(t, h.logs.String(), "failed to record run")
}

func TestPlot_WithJournal(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(ctx, filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	dir := t.TempDir()
	h := newHarness(t, config.LayoutAuto, nil, j)
	h.writeLocal(t, dir, testutil.ConstantTPF(tic, 5, 5, 100, 1000))

	_, err = h.svc.Plot(ctx, figure.New(), Request{Target: tic, DownloadDir: dir, Sectors: []int{4, 5}})
	require.NoError(t, err)

	runs, err := j.ListRuns(ctx, tic, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, []int{4, 5}, runs[0].Requested)
	assert.Equal(t, []int{5}, runs[0].Found)
	assert.Equal(t, 5, runs[0].Samples)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
