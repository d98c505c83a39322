package internal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Kvilt1/merger-simple/internal/conversation"
	"github.com/Kvilt1/merger-simple/internal/dayindex"
	"github.com/Kvilt1/merger-simple/internal/indexer"
	"github.com/Kvilt1/merger-simple/internal/mapper"
	"github.com/Kvilt1/merger-simple/internal/overlay"
	"github.com/Kvilt1/merger-simple/internal/persistence"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"github.com/Kvilt1/merger-simple/internal/validator"
	"github.com/google/uuid"
)

type App struct {
	conf      *structures.Config
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface
	planner   *overlay.Planner
	executor  *overlay.Executor
	indexer   *indexer.Indexer
	assembler *conversation.Assembler
	mapper    *mapper.Mapper
	builder   *dayindex.Builder
	validator *validator.Validator
	traces    persistence.TraceStoreInterface
}

func NewApp(
	conf *structures.Config,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
	planner *overlay.Planner,
	executor *overlay.Executor,
	idx *indexer.Indexer,
	assembler *conversation.Assembler,
	mp *mapper.Mapper,
	builder *dayindex.Builder,
	v *validator.Validator,
	traces persistence.TraceStoreInterface,
) *App {
	return &App{
		conf:      conf,
		logger:    logger,
		metrics:   metrics,
		planner:   planner,
		executor:  executor,
		indexer:   idx,
		assembler: assembler,
		mapper:    mp,
		builder:   builder,
		validator: v,
		traces:    traces,
	}
}

func (a *App) Logger() providers.Logger {
	return a.logger
}

func (a *App) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	a.metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	a.logger.Debugf(providers.TypeApp, "Stage %s finished in %s", name, time.Since(start).Round(time.Millisecond))
	return nil
}

// Run converts the export into the day index and validates the result.
// The returned report is nil when validation is disabled.
func (a *App) Run(ctx context.Context) (*validator.Report, error) {
	runID := uuid.NewString()
	outDir := a.conf.Output.Dir
	poolDir := a.conf.PoolDir()

	exp, err := conversation.FindExport(a.conf.Input.ExportDir)
	if err != nil {
		return nil, err
	}
	a.logger.Infof(providers.TypeApp, "Starting %s run %s", a.conf.AppName, runID)
	a.logger.Infof(providers.TypeApp, "Processing export from: %s", exp.Root)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	if !a.conf.Output.KeepWorkDir {
		defer func() {
			if err := os.RemoveAll(a.conf.Output.WorkDir); err != nil {
				a.logger.Warnf(providers.TypeApp, "Cannot remove work dir: %v", err)
			}
		}()
	}
	defer func() {
		if err := a.metrics.Flush(); err != nil {
			a.logger.Warnf(providers.TypeApp, "Cannot write metrics: %v", err)
		}
	}()

	err = a.stage(ctx, "overlay", func() error {
		plan, err := a.planner.Plan(ctx, exp.MediaDir)
		if err != nil {
			return err
		}
		result, err := a.executor.Execute(ctx, plan, poolDir)
		if err != nil {
			return err
		}
		return a.executor.CopyThrough(ctx, exp.MediaDir, poolDir, result)
	})
	if err != nil {
		return nil, err
	}

	var ix *indexer.Index
	err = a.stage(ctx, "index", func() error {
		ix, err = a.indexer.Build(poolDir)
		return err
	})
	if err != nil {
		return nil, err
	}

	var ds *conversation.Dataset
	err = a.stage(ctx, "assemble", func() error {
		ds, err = a.assembler.Load(exp)
		return err
	})
	if err != nil {
		return nil, err
	}

	var mapped *mapper.Result
	err = a.stage(ctx, "mapping", func() error {
		mapped, err = a.mapper.Map(ctx, ds.Conversations, ix)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, "dayindex", func() error {
		trace, _, err := a.builder.Build(ctx, ds, ix, mapped, outDir, runID)
		if err != nil {
			return err
		}
		return a.traces.Save(outDir, trace)
	})
	if err != nil {
		return nil, err
	}

	if !a.conf.Validation.Enabled {
		a.logger.Infof(providers.TypeApp, "Validation skipped")
		return nil, nil
	}
	return a.Validate(ctx)
}

// Validate re-checks an existing output tree against its saved trace.
func (a *App) Validate(ctx context.Context) (*validator.Report, error) {
	var report *validator.Report
	err := a.stage(ctx, "validate", func() error {
		trace, err := a.traces.Load(a.conf.Output.Dir)
		if err != nil {
			return err
		}
		report, err = a.validator.Validate(a.conf.Output.Dir, trace)
		return err
	})
	return report, err
}

func (a *App) Close() {
	a.traces.Close()
	a.logger.Close()
}
