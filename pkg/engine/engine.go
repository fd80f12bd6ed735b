// Package engine executes discovered action files against the variable
// model: conditionals first, then each action in declared order.
package engine

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/actions"
	"github.com/ormasoftchile/scaf/pkg/discovery"
	"github.com/ormasoftchile/scaf/pkg/execrunner"
	"github.com/ormasoftchile/scaf/pkg/inject"
	"github.com/ormasoftchile/scaf/pkg/logging"
	"github.com/ormasoftchile/scaf/pkg/model"
	"github.com/ormasoftchile/scaf/pkg/prompt"
	"github.com/ormasoftchile/scaf/pkg/templating"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

// Executor runs exec actions.
type Executor interface {
	Run(ctx context.Context, req execrunner.Request) error
}

// Engine is the action execution engine. One Engine may serve many runs;
// it holds no per-run state.
type Engine struct {
	Sink     terminal.Sink
	Exec     Executor
	Injector inject.Handler
	Prompter prompt.Prompter
	// TemplateEngine is used for files that do not name one.
	TemplateEngine string
	// Fs receives generated files.
	Fs afero.Fs
}

// New returns an engine wired to the default collaborators.
func New(sink terminal.Sink) *Engine {
	return &Engine{
		Sink:     sink,
		Exec:     &execrunner.Runner{Sink: sink},
		Injector: &inject.FileHandler{Sink: sink},
		Prompter: prompt.Defaults{},
		Fs:       afero.NewOsFs(),
	}
}

// Run executes every action file of scan in path order against m. cwd is
// the directory generated paths resolve against; commandDir is where the
// action files live.
//
// A conditional that does not hold aborts the whole run; files sorted
// before it have already executed. Failures local to one action
// (generation errors, non-zero exits) are reported to the sink and the run
// continues; setup errors abort the run and are returned.
func (e *Engine) Run(ctx context.Context, scan *discovery.Scan, cwd, commandDir string, m model.Model) error {
	if scan.Len() == 0 {
		return &NoActionsFoundError{Dir: commandDir}
	}

	log := logging.With().Str("run_id", logging.NewRunID()).Str("command_dir", commandDir).Logger()
	log.Debug().Int("files", scan.Len()).Str("cwd", cwd).Msg("engine run started")

	for _, entry := range scan.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		af := entry.File

		if err := checkConditional(entry.Path, af.Conditional, m); err != nil {
			log.Debug().Err(err).Str("file", entry.Path).Msg("conditional failed")
			return err
		}

		if len(af.Actions) == 0 {
			e.notify(terminal.Info, fmt.Sprintf("No actions to execute in %s", entry.Path))
			continue
		}

		name := af.Engine
		if name == "" {
			name = e.TemplateEngine
		}
		tmpl, err := templating.New(name)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Path, err)
		}

		for i := range af.Actions {
			a := &af.Actions[i]
			log.Debug().Str("file", entry.Path).Int("index", i).Str("kind", string(a.Kind())).Msg("dispatching action")
			if err := e.dispatch(ctx, a, m, cwd, commandDir, tmpl); err != nil {
				return err
			}
		}
	}
	log.Debug().Msg("engine run finished")
	return nil
}

func (e *Engine) dispatch(ctx context.Context, a *actions.Action, m model.Model, cwd, commandDir string, tmpl templating.Engine) error {
	switch a.Kind() {
	case actions.KindGenerate:
		e.generate(a.Generate, m, cwd, tmpl)
		return nil
	case actions.KindInject:
		return e.Injector.Execute(ctx, a.Inject, m, cwd, tmpl)
	case actions.KindExec:
		return e.Exec.Run(ctx, execrunner.Request{
			Action:     a.Exec,
			Model:      m,
			Cwd:        cwd,
			CommandDir: commandDir,
			Engine:     tmpl,
		})
	case actions.KindVars:
		return e.vars(ctx, a.Vars, m)
	case actions.KindNone:
		logging.Debug().Msg("action declares no variant, nothing to do")
		return nil
	default:
		panic(fmt.Sprintf("engine: unhandled action kind %q", a.Kind()))
	}
}

func (e *Engine) notify(level terminal.Level, msg string) {
	if e.Sink != nil {
		e.Sink.Notify(level, msg)
	}
}
