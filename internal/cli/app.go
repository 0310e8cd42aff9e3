package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/tessplot/internal/archive"
	"github.com/dmitrijs2005/tessplot/internal/config"
	"github.com/dmitrijs2005/tessplot/internal/filex"
	"github.com/dmitrijs2005/tessplot/internal/flagx"
	"github.com/dmitrijs2005/tessplot/internal/journal"
	"github.com/dmitrijs2005/tessplot/internal/locate"
	"github.com/dmitrijs2005/tessplot/internal/logging"
	"github.com/dmitrijs2005/tessplot/internal/services"
)

// App carries the state shared by all commands of one invocation.
type App struct {
	cfg        *config.Config
	configPath string
	offline    bool

	log     logging.Logger
	journal *journal.Journal

	newArchive func(ctx context.Context, cfg config.Archive) (archive.Archive, error)
}

func NewApp() *App {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	return &App{
		cfg:        cfg,
		log:        logging.Discard(),
		newArchive: newS3Archive,
	}
}

func newS3Archive(ctx context.Context, cfg config.Archive) (archive.Archive, error) {
	a, err := archive.NewS3Archive(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// setup overlays the config file on the flag-bound settings, restores the
// flags the user set explicitly and builds the logger.
func (a *App) setup(cmd *cobra.Command) error {
	fs := cmd.Flags()
	explicit := flagx.Changed(fs)

	if err := config.ApplyFile(a.cfg, a.configPath); err != nil {
		return err
	}
	if err := flagx.Reapply(fs, explicit); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(cmd.ErrOrStderr(), a.cfg.Log.Format, a.cfg.Log.Level)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// openJournal returns nil when no journal path is configured.
func (a *App) openJournal(ctx context.Context) (*journal.Journal, error) {
	if a.journal != nil || a.cfg.JournalPath == "" {
		return a.journal, nil
	}

	if _, err := filex.EnsureDir(filepath.Dir(a.cfg.JournalPath)); err != nil {
		return nil, err
	}
	j, err := journal.Open(ctx, a.cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.journal = j
	return j, nil
}

func (a *App) lightcurveService(ctx context.Context) (services.LightcurveService, error) {
	var arch archive.Archive
	if !a.offline {
		var err error
		if arch, err = a.newArchive(ctx, a.cfg.Archive); err != nil {
			return nil, fmt.Errorf("archive client: %w", err)
		}
	}

	var rec services.Recorder
	j, err := a.openJournal(ctx)
	if err != nil {
		return nil, err
	}
	if j != nil {
		rec = j
	}

	finder := locate.NewFinder(a.cfg.Layout, a.cfg.LayoutMarker)
	resolver := services.NewResolver(finder, arch, a.log)
	return services.NewLightcurveService(resolver, a.cfg.QualityBitmask, rec, a.log), nil
}

func (a *App) Close() error {
	if a.journal == nil {
		return nil
	}
	err := a.journal.Close()
	a.journal = nil
	return err
}
