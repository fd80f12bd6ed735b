package command

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/config"
	"github.com/ormasoftchile/scaf/pkg/discovery"
	"github.com/ormasoftchile/scaf/pkg/engine"
	"github.com/ormasoftchile/scaf/pkg/execrunner"
	"github.com/ormasoftchile/scaf/pkg/inject"
	"github.com/ormasoftchile/scaf/pkg/logging"
	"github.com/ormasoftchile/scaf/pkg/model"
	"github.com/ormasoftchile/scaf/pkg/prompt"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// Runner executes subcommands against a project directory.
type Runner struct {
	Fs         afero.Fs
	WorkingDir string
	Config     *config.Config
	// Populators enrich the model before discovery. Nil resolves the ones
	// named by Config.
	Populators []model.Populator
	Prompter   prompt.Prompter
}

// Run populates m, discovers the subcommand's action files and executes
// them. Notices go to sink.
func (r *Runner) Run(ctx context.Context, sink terminal.Sink, sub *Subcommand, m model.Model) error {
	cfg := r.Config
	if cfg == nil {
		cfg = config.Default()
	}
	fsys := r.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	populators := r.Populators
	if populators == nil {
		var err error
		populators, err = model.PopulatorsByName(fsys, cfg.Populators)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if err := model.Populate(ctx, m, r.WorkingDir, populators...); err != nil {
		return err
	}

	ignore := append(append([]string{}, discovery.DefaultIgnore...), cfg.Ignore...)
	scan, err := discovery.Walk(fsys, sub.Dir, discovery.Options{Ignore: ignore})
	if err != nil {
		return err
	}

	e := &engine.Engine{
		Sink:           sink,
		Exec:           &execrunner.Runner{Shell: cfg.Shell, Timeout: cfg.Timeout(), Sink: sink, Fs: fsys},
		Injector:       &inject.FileHandler{Fs: fsys, Sink: sink},
		Prompter:       r.Prompter,
		TemplateEngine: cfg.Engine,
		Fs:             fsys,
	}
	logging.Debug().Str("dir", sub.Dir).Int("files", scan.Len()).Msg("running subcommand")
	return e.Run(ctx, scan, r.WorkingDir, sub.Dir, m)
}
