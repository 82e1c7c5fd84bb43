package cli

import (
	"log/slog"

	"github.com/roach88/onepass/internal/backend"
	"github.com/roach88/onepass/internal/config"
	"github.com/roach88/onepass/internal/engine"
)

// pipeline is an analysis compiled into a built graph on the script
// engine, ready to run.
type pipeline struct {
	analysis *config.Analysis
	cfg      config.RunConfig
	script   *engine.Script
	backend  *backend.Backend
}

// stageError records which step of buildPipeline failed, so commands can
// pick an error code.
type stageError struct {
	code string
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// buildPipeline loads the run configuration and the analysis in dir,
// registers it on a backend over a script engine and builds the graph.
func buildPipeline(dir, runConfig string) (*pipeline, error) {
	cfg, err := config.ResolveRunConfig(dir, runConfig)
	if err != nil {
		return nil, &stageError{code: config.ErrCodeInvalidRunConfig, err: err}
	}
	a, errs := config.Load(dir, config.LoadModeFailFast, config.WithAutoSyst(cfg.AutoSystOn()))
	if len(errs) > 0 {
		return nil, &stageError{code: config.ErrCodeGeneric, err: errs[0]}
	}
	slog.Debug("analysis loaded", "analysis", a.Name, "hash", a.Hash, "selections", len(a.Selections), "outputs", len(a.Outputs()))

	scriptOpts := []engine.ScriptOption{
		engine.WithInputs(cfg.Tree, cfg.Inputs...),
		engine.WithThreads(cfg.Threads),
		engine.WithOutput(cfg.Output),
	}
	if len(cfg.Executor) > 0 {
		scriptOpts = append(scriptOpts, engine.WithExecutor(cfg.Executor...))
	}
	if cfg.WorkDir != "" {
		scriptOpts = append(scriptOpts, engine.WithWorkDir(cfg.WorkDir))
	}
	script := engine.NewScript(a.InputColumns(), scriptOpts...)

	backendOpts := []backend.Option{backend.WithLogger(slog.Default())}
	if cfg.Eager {
		backendOpts = append(backendOpts, backend.WithEagerBuild())
	}
	b := backend.New(script, backendOpts...)
	if err := a.Register(b); err != nil {
		return nil, &stageError{code: ErrCodeBuildGraph, err: err}
	}
	if err := b.BuildGraph(); err != nil {
		return nil, &stageError{code: ErrCodeBuildGraph, err: err}
	}
	return &pipeline{analysis: a, cfg: cfg, script: script, backend: b}, nil
}

// failStage reports a buildPipeline error as a command error.
func failStage(f *OutputFormatter, err error) error {
	code := config.ErrCodeGeneric
	if se, ok := err.(*stageError); ok {
		code = se.code
		err = se.err
	}
	return f.fail(ExitCommandError, code, err)
}
