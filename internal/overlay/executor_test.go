package overlay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/Kvilt1/merger-simple/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executorFixture struct {
	src     string
	pool    string
	fuser   *testutil.MockFuser
	metrics *testutil.MockMetrics
	logger  *testutil.MockLogger
	exec    *Executor
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	root := t.TempDir()
	f := &executorFixture{
		src:     filepath.Join(root, "chat_media"),
		pool:    filepath.Join(root, "pool"),
		fuser:   &testutil.MockFuser{},
		metrics: testutil.NewMockMetrics(),
		logger:  &testutil.MockLogger{},
	}
	require.NoError(t, os.MkdirAll(f.src, 0755))
	f.exec = NewExecutor(testutil.Config(root, root), f.fuser, f.metrics, f.logger)
	return f
}

func (f *executorFixture) file(t *testing.T, name string, content string) File {
	t.Helper()
	path := filepath.Join(f.src, name)
	testutil.WriteFile(t, path, []byte(content))
	date, _ := media.DatePrefix(name)
	return File{Name: name, Path: path, Date: date, Role: media.RoleOf(name)}
}

func (f *executorFixture) run(t *testing.T, plan *Plan) *Result {
	t.Helper()
	result, err := f.exec.Execute(context.Background(), plan, f.pool)
	require.NoError(t, err)
	require.NoError(t, f.exec.CopyThrough(context.Background(), f.src, f.pool, result))
	return result
}

func TestExecutor_SimpleFusionAndCopyThrough(t *testing.T) {
	f := newExecutorFixture(t)
	m := f.file(t, "2024-08-27_media~AA.jpg", "base")
	o := f.file(t, "2024-08-27_overlay~BB.png", "+caption")
	f.file(t, "2024-08-27_media~AA_thumbnail.jpg", "thumb")
	f.file(t, "2024-08-27_b~Plain.mp4", "plain")

	plan := &Plan{Units: []Unit{{
		Date: "2024-08-27", Strategy: StrategySimple, Confidence: ConfidenceExact,
		Pairs: []Pair{{Media: m, Overlay: o}}, Overlays: []File{o},
	}}}
	result := f.run(t, plan)

	data, err := os.ReadFile(filepath.Join(f.pool, m.Name))
	require.NoError(t, err)
	assert.Equal(t, "base+caption", string(data))

	assert.True(t, result.IsConsumed(m.Name))
	assert.True(t, result.IsConsumed(o.Name))
	assert.FileExists(t, filepath.Join(f.pool, "2024-08-27_b~Plain.mp4"))
	assert.NoFileExists(t, filepath.Join(f.pool, o.Name))
	assert.NoFileExists(t, filepath.Join(f.pool, "2024-08-27_media~AA_thumbnail.jpg"))

	assert.Equal(t, int64(1), result.Stats.Simple.Succeeded.Load())
	assert.Equal(t, int64(1), result.Stats.Copied.Load())
	assert.Equal(t, int64(1), result.Stats.SkippedThumbnails.Load())
	assert.Equal(t, int64(0), result.Stats.SkippedOverlays.Load(), "consumed overlays are not counted as skipped")
	assert.Equal(t, 1, f.metrics.Fuses["simple:ok"])
}

func TestExecutor_FolderPartialFailure(t *testing.T) {
	f := newExecutorFixture(t)
	a1 := f.file(t, "2024-08-27_media~A1.mp4", "a1")
	a2 := f.file(t, "2024-08-27_media~A2.mp4", "a2")
	x1 := f.file(t, "2024-08-27_overlay~X1.png", "x")
	x2 := f.file(t, "2024-08-27_overlay~X2.png", "x")
	a1.CapturedAt = t0.UnixMilli()
	a2.CapturedAt = t0.Add(10*time.Second).UnixMilli()
	f.fuser.Fail = map[string]bool{a1.Name: true}

	plan := &Plan{Units: []Unit{{
		Date: "2024-08-27", Strategy: StrategyGrouped, Confidence: ConfidenceUnique,
		Folder:   "2024-08-27_media~A2_grouped",
		Pairs:    []Pair{{Media: a1, Overlay: x1}, {Media: a2, Overlay: x2}},
		Overlays: []File{x1, x2},
	}}}
	result := f.run(t, plan)

	folder := filepath.Join(f.pool, "2024-08-27_media~A2_grouped")
	assert.FileExists(t, filepath.Join(folder, a2.Name))
	assert.NoFileExists(t, filepath.Join(folder, a1.Name))
	assert.FileExists(t, filepath.Join(f.pool, a1.Name), "failed member is copied through unfused")

	manifest, err := media.ReadManifest(folder)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{a2.Name: a2.CapturedAt}, manifest)

	assert.False(t, result.IsConsumed(a1.Name))
	assert.True(t, result.IsConsumed(a2.Name))
	assert.True(t, result.IsConsumed(x1.Name))
	assert.Equal(t, int64(1), result.Stats.Grouped.Failed.Load())
	assert.Equal(t, 1, f.metrics.Fuses["grouped:failed"])
	assert.Equal(t, 1, f.logger.Count("error", "Fuse failed"))
}

func TestExecutor_FolderAllFailedRemoved(t *testing.T) {
	f := newExecutorFixture(t)
	m1 := f.file(t, "2024-08-27_media~M1.mp4", "m1")
	m2 := f.file(t, "2024-08-27_media~M2.mp4", "m2")
	o := f.file(t, "2024-08-27_overlay~O1.png", "o")
	f.fuser.Fail = map[string]bool{m1.Name: true, m2.Name: true}

	plan := &Plan{Units: []Unit{{
		Date: "2024-08-27", Strategy: StrategyMultipart, Confidence: ConfidenceExact,
		Folder:   "2024-08-27_media~M2_multipart",
		Pairs:    []Pair{{Media: m1, Overlay: o}, {Media: m2, Overlay: o}},
		Overlays: []File{o},
	}}}
	result := f.run(t, plan)

	assert.NoDirExists(t, filepath.Join(f.pool, "2024-08-27_media~M2_multipart"))
	assert.False(t, result.IsConsumed(o.Name))
	assert.Equal(t, int64(1), result.Stats.SkippedOverlays.Load())
	assert.NoFileExists(t, filepath.Join(f.pool, o.Name))
	assert.FileExists(t, filepath.Join(f.pool, m1.Name))
	assert.FileExists(t, filepath.Join(f.pool, m2.Name))
}

func TestExecutor_ExistingOutputIsReused(t *testing.T) {
	f := newExecutorFixture(t)
	m := f.file(t, "2024-08-27_media~AA.jpg", "base")
	o := f.file(t, "2024-08-27_overlay~BB.png", "+caption")
	testutil.WriteFile(t, filepath.Join(f.pool, m.Name), []byte("already fused"))

	plan := &Plan{Units: []Unit{{
		Date: "2024-08-27", Strategy: StrategySimple,
		Pairs: []Pair{{Media: m, Overlay: o}}, Overlays: []File{o},
	}}}
	result := f.run(t, plan)

	assert.Equal(t, 0, f.fuser.CallCount())
	assert.True(t, result.IsConsumed(m.Name))
	data, err := os.ReadFile(filepath.Join(f.pool, m.Name))
	require.NoError(t, err)
	assert.Equal(t, "already fused", string(data))
}

func TestExecutor_UnavailableFuserCopiesEverything(t *testing.T) {
	f := newExecutorFixture(t)
	f.fuser.Unavailable = true
	m := f.file(t, "2024-08-27_media~AA.jpg", "base")
	o := f.file(t, "2024-08-27_overlay~BB.png", "+caption")

	plan := &Plan{Units: []Unit{{
		Date: "2024-08-27", Strategy: StrategySimple,
		Pairs: []Pair{{Media: m, Overlay: o}}, Overlays: []File{o},
	}}}
	result := f.run(t, plan)

	assert.Empty(t, result.Consumed)
	assert.Equal(t, 0, f.fuser.CallCount())
	data, err := os.ReadFile(filepath.Join(f.pool, m.Name))
	require.NoError(t, err)
	assert.Equal(t, "base", string(data))
	assert.Equal(t, 1, f.logger.Count("warn", "Fusion unavailable"))
}

func TestExecutor_PlannedEndToEnd(t *testing.T) {
	f := newExecutorFixture(t)
	testutil.WriteMP4(t, filepath.Join(f.src, "2024-08-27_media~A1.mp4"), t0)
	testutil.WriteMP4(t, filepath.Join(f.src, "2024-08-27_media~A2.mp4"), t0.Add(5*time.Second))
	testutil.WriteFile(t, filepath.Join(f.src, "2024-08-27_overlay~X1.png"), []byte("x"))
	testutil.WriteFile(t, filepath.Join(f.src, "2024-08-27_overlay~X2.png"), []byte("x"))

	planner := NewPlanner(testutil.Config("", ""), media.NewHasher(testutil.NewMockCache()), f.logger)
	plan, err := planner.Plan(context.Background(), f.src)
	require.NoError(t, err)
	result := f.run(t, plan)

	folder := filepath.Join(f.pool, "2024-08-27_media~A2_multipart")
	assert.DirExists(t, folder)
	assert.FileExists(t, filepath.Join(folder, models.ManifestName))
	manifest, err := media.ReadManifest(folder)
	require.NoError(t, err)
	assert.Equal(t, t0.UnixMilli(), manifest["2024-08-27_media~A1.mp4"])
	assert.Equal(t, int64(2), result.Stats.Multipart.Succeeded.Load())
	assert.Equal(t, 1, f.logger.Count("info", "multipart fusions: [2]/[2]"))
}
