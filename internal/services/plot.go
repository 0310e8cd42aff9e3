package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/tessplot/internal/common"
	"github.com/dmitrijs2005/tessplot/internal/figure"
	"github.com/dmitrijs2005/tessplot/internal/journal"
	"github.com/dmitrijs2005/tessplot/internal/lightcurve"
	"github.com/dmitrijs2005/tessplot/internal/logging"
	"github.com/dmitrijs2005/tessplot/internal/tpf"
)

// Request describes one plot call.
type Request struct {
	Target      int64
	DownloadDir string
	// Sectors are processed in order; nil means common.DefaultSectors.
	Sectors []int
	// Offset is subtracted from the plotted flux only.
	Offset     float64
	SaveSeries bool
	SavePlot   bool
	PlotFile   string
}

// SectorResult records what happened to one requested sector.
type SectorResult struct {
	Sector  int
	Source  Source
	Path    string
	Samples int
}

type Result struct {
	RunID   string
	Target  int64
	Sectors []SectorResult
	// LightCurve is the merged, normalized series; nil when no sector had data.
	LightCurve *lightcurve.LightCurve
	// SeriesIndex is the figure series added by this call, or -1.
	SeriesIndex int
	SeriesFile  string
	PlotFile    string
}

// Found lists the sectors that contributed samples, in processing order.
func (r *Result) Found() []int {
	found := []int{}
	for _, s := range r.Sectors {
		if s.Samples > 0 {
			found = append(found, s.Sector)
		}
	}
	return found
}

// Recorder stores a finished run. *journal.Journal satisfies it.
type Recorder interface {
	RecordRun(ctx context.Context, run journal.Run, downloads []journal.Download) error
}

type LightcurveService interface {
	Plot(ctx context.Context, fig *figure.Figure, req Request) (*Result, error)
}

type lightcurveService struct {
	resolver *Resolver
	bitmask  int
	recorder Recorder
	log      logging.Logger
	newID    func() string
}

// NewLightcurveService wires the pipeline. recorder may be nil.
func NewLightcurveService(resolver *Resolver, bitmask int, recorder Recorder, log logging.Logger) LightcurveService {
	return &lightcurveService{
		resolver: resolver,
		bitmask:  bitmask,
		recorder: recorder,
		log:      log,
		newID:    uuid.NewString,
	}
}

// Plot resolves and merges every requested sector of req.Target, adds the
// merged curve to fig as one scatter series and applies the figure layout.
// Finding no data at all is not an error: a warning is logged and the figure
// only gets its layout.
func (s *lightcurveService) Plot(ctx context.Context, fig *figure.Figure, req Request) (*Result, error) {
	if fig == nil {
		return nil, errors.New("nil figure")
	}

	sectors := req.Sectors
	if sectors == nil {
		sectors = common.Sectors()
	}

	res := &Result{
		RunID:       s.newID(),
		Target:      req.Target,
		SeriesIndex: -1,
	}
	log := s.log.With("run_id", res.RunID, "target", req.Target)

	var merged *lightcurve.LightCurve
	var downloads []journal.Download

	for _, sector := range sectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := s.resolver.Resolve(ctx, req.DownloadDir, req.Target, sector)
		if err != nil {
			return nil, err
		}
		sr := SectorResult{Sector: sector, Source: r.Source, Path: r.Path}

		if r.Source == SourceRemote {
			downloads = append(downloads, journal.Download{
				Target: req.Target,
				Sector: sector,
				Key:    r.Product.Key,
				Path:   r.Path,
				Bytes:  r.Bytes,
			})
		}

		if !r.Found() {
			log.Debug(ctx, "no pixel file for sector", "sector", sector)
			res.Sectors = append(res.Sectors, sr)
			continue
		}

		lc, err := s.load(ctx, log, r.Path, req.Target, sector)
		if err != nil {
			return nil, err
		}
		if lc != nil {
			sr.Samples = lc.Len()
			if merged == nil {
				merged = lc
			} else {
				merged = merged.Append(lc)
			}
		}
		res.Sectors = append(res.Sectors, sr)
	}

	if merged == nil {
		log.Warn(ctx, fmt.Sprintf("%d No LC found for any sector", req.Target))
		fig.ApplyLayout()
	} else {
		res.LightCurve = merged

		y := make([]float64, merged.Len())
		for i, f := range merged.Flux {
			y[i] = f - req.Offset
		}
		drawn, err := fig.AddSeries(strconv.FormatInt(req.Target, 10), merged.Time, y)
		if err != nil {
			return nil, fmt.Errorf("add series: %w", err)
		}
		res.SeriesIndex = fig.Series() - 1

		log.Info(ctx, "light curve plotted", "samples", merged.Len(), "drawn", drawn, "sectors", merged.Sectors)

		if req.SaveSeries {
			name := common.SeriesFileName(req.Target)
			if err := merged.WriteFITS(name); err != nil {
				return nil, fmt.Errorf("save series: %w", err)
			}
			res.SeriesFile = name
			log.Info(ctx, "series saved", "file", name)
		}
	}

	if req.SavePlot && req.PlotFile != "" {
		if err := fig.Save(req.PlotFile); err != nil {
			return nil, fmt.Errorf("save plot: %w", err)
		}
		res.PlotFile = req.PlotFile
		log.Info(ctx, "plot saved", "file", req.PlotFile)
	}

	s.record(ctx, log, req, res, downloads)
	return res, nil
}

// load reads one pixel file and returns its normalized light curve, or nil
// when quality filtering left no samples or the median flux is zero or
// undefined.
func (s *lightcurveService) load(ctx context.Context, log logging.Logger, path string, target int64, sector int) (*lightcurve.LightCurve, error) {
	pf, err := tpf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sector %d: %w", sector, err)
	}

	raw := pf.ToLightCurve(target, sector, s.bitmask)
	if raw.Len() == 0 {
		log.Warn(ctx, "no usable cadences in sector", "sector", sector, "path", path)
		return nil, nil
	}

	lc, err := raw.Normalize()
	if errors.Is(err, lightcurve.ErrCannotNormalize) {
		log.Warn(ctx, "sector skipped, flux cannot be normalized", "sector", sector, "path", path, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sector %d: %w", sector, err)
	}

	log.Debug(ctx, "sector loaded", "sector", sector, "path", path, "samples", lc.Len())
	return lc, nil
}

// record writes the run to the journal. Journal failures are logged only;
// the figure and output files are already complete at this point.
func (s *lightcurveService) record(ctx context.Context, log logging.Logger, req Request, res *Result, downloads []journal.Download) {
	if s.recorder == nil {
		return
	}

	requested := make([]int, 0, len(res.Sectors))
	for _, sr := range res.Sectors {
		requested = append(requested, sr.Sector)
	}
	samples := 0
	if res.LightCurve != nil {
		samples = res.LightCurve.Len()
	}

	run := journal.Run{
		ID:         res.RunID,
		Target:     req.Target,
		Requested:  requested,
		Found:      res.Found(),
		Samples:    samples,
		SeriesFile: res.SeriesFile,
		PlotFile:   res.PlotFile,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.recorder.RecordRun(ctx, run, downloads); err != nil {
		log.Error(ctx, "failed to record run", "error", err)
	}
}
