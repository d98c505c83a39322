package overlay

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/overlay/interfaces"
	"github.com/Kvilt1/merger-simple/internal/persistence"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"golang.org/x/sync/errgroup"
)

// Executor runs planned units on the compute pool and fills the working pool.
type Executor struct {
	fuser     interfaces.FuserInterface
	metrics   providers.MetricsProviderInterface
	logger    providers.Logger
	workers   int
	ioWorkers int
	timeout   time.Duration
	indent    int
}

func NewExecutor(conf *structures.Config, fuser interfaces.FuserInterface, metrics providers.MetricsProviderInterface, logger providers.Logger) *Executor {
	indent := 0
	if conf.Output.Pretty {
		indent = conf.Output.Indent
	}
	return &Executor{
		fuser:     fuser,
		metrics:   metrics,
		logger:    logger,
		workers:   conf.Fusion.Workers,
		ioWorkers: conf.IO.Workers,
		timeout:   conf.Fusion.Timeout,
		indent:    indent,
	}
}

func outputPath(poolDir string, u *Unit, p Pair) string {
	if u.IsFolder() {
		return filepath.Join(poolDir, u.Folder, p.Media.Name)
	}
	return filepath.Join(poolDir, p.Media.Name)
}

// Execute fuses every pair of the plan. Failed pairs leave their media
// unconsumed so copy-through still carries them into the pool.
func (e *Executor) Execute(ctx context.Context, plan *Plan, poolDir string) (*Result, error) {
	result := &Result{Consumed: make(map[string]struct{}), Stats: &Stats{}}
	if err := os.MkdirAll(poolDir, 0755); err != nil {
		return nil, err
	}
	if len(plan.Units) == 0 {
		return result, nil
	}
	if !e.fuser.Available() {
		e.logger.Warnf(providers.TypeOverlay, "Fusion unavailable, %d planned units will be copied through unfused", len(plan.Units))
		return result, nil
	}

	outcomes := make([][]bool, len(plan.Units))
	for i := range plan.Units {
		u := &plan.Units[i]
		outcomes[i] = make([]bool, len(u.Pairs))
		if u.IsFolder() {
			if err := os.MkdirAll(filepath.Join(poolDir, u.Folder), 0755); err != nil {
				return nil, err
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.workers))
	for i := range plan.Units {
		u := &plan.Units[i]
		for j, p := range u.Pairs {
			g.Go(func() error {
				outcomes[i][j] = e.fuseOne(gctx, u, p, outputPath(poolDir, u, p), result.Stats)
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range plan.Units {
		e.finalize(&plan.Units[i], outcomes[i], poolDir, result)
	}
	e.logStats(result.Stats)
	return result, nil
}

func (e *Executor) fuseOne(ctx context.Context, u *Unit, p Pair, output string, stats *Stats) bool {
	if ctx.Err() != nil {
		return false
	}
	s := stats.For(u.Strategy)
	s.Attempted.Inc()

	if persistence.Exists(output) {
		s.Succeeded.Inc()
		e.metrics.IncFuse(string(u.Strategy), true)
		return true
	}

	fctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.fuser.Fuse(fctx, p.Media.Path, p.Overlay.Path, output); err != nil {
		os.Remove(output)
		s.Failed.Inc()
		e.metrics.IncFuse(string(u.Strategy), false)
		e.logger.Errorf(providers.TypeOverlay, "Fuse failed for %s: %v", p.Media.Name, err)
		return false
	}
	s.Succeeded.Inc()
	e.metrics.IncFuse(string(u.Strategy), true)
	return true
}

func (e *Executor) finalize(u *Unit, ok []bool, poolDir string, result *Result) {
	succeeded := 0
	captured := make(map[string]int64)
	for j, p := range u.Pairs {
		if !ok[j] {
			continue
		}
		succeeded++
		result.Consumed[p.Media.Name] = struct{}{}
		ms := p.Media.CapturedAt
		if ms == 0 {
			ms, _ = media.ExtractCreationTime(p.Media.Path)
		}
		captured[p.Media.Name] = ms
	}

	if succeeded == 0 {
		if u.IsFolder() {
			e.logger.Warnf(providers.TypeOverlay, "All fusions failed for %s, folder removed", u.Folder)
			os.RemoveAll(filepath.Join(poolDir, u.Folder))
		}
		return
	}

	for _, o := range u.Overlays {
		result.Consumed[o.Name] = struct{}{}
	}

	if u.IsFolder() {
		dir := filepath.Join(poolDir, u.Folder)
		if err := media.WriteManifest(dir, captured, e.indent); err != nil {
			e.logger.Errorf(providers.TypeOverlay, "Cannot write manifest for %s: %v", u.Folder, err)
		}
		e.logger.Debugf(providers.TypeOverlay, "%s %s: [%d]/[%d]", u.Strategy, u.Folder, succeeded, len(u.Pairs))
	}
}

func (e *Executor) logStats(stats *Stats) {
	for _, strategy := range []Strategy{StrategySimple, StrategyMultipart, StrategyGrouped} {
		s := stats.For(strategy)
		if s.Attempted.Load() == 0 {
			continue
		}
		e.logger.Infof(providers.TypeOverlay, "%s fusions: [%d]/[%d] (%.1f%%)",
			strategy, s.Succeeded.Load(), s.Attempted.Load(), s.SuccessRate())
	}
}

// CopyThrough copies every raw file not consumed by fusion into the pool,
// dropping thumbnails and overlay files.
func (e *Executor) CopyThrough(ctx context.Context, sourceDir, poolDir string, result *Result) error {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.ioWorkers))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case result.IsConsumed(name):
			continue
		case media.IsThumbnail(name):
			result.Stats.SkippedThumbnails.Inc()
			continue
		case media.IsOverlay(name):
			result.Stats.SkippedOverlays.Inc()
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := persistence.CopyFile(filepath.Join(sourceDir, name), filepath.Join(poolDir, name)); err != nil {
				result.Stats.CopyFailed.Inc()
				e.logger.Errorf(providers.TypeOverlay, "Copy failed for %s: %v", name, err)
				return nil
			}
			result.Stats.Copied.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.logger.Infof(providers.TypeOverlay, "Copied %d unmerged files", result.Stats.Copied.Load())
	if n := result.Stats.SkippedOverlays.Load(); n > 0 {
		e.logger.Infof(providers.TypeOverlay, "Skipped %d overlay files", n)
	}
	return nil
}
