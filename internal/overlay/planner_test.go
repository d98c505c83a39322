package overlay

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 8, 27, 17, 0, 0, 0, time.UTC)

func newTestPlanner(logger *testutil.MockLogger) *Planner {
	conf := testutil.Config("", "")
	return NewPlanner(conf, media.NewHasher(testutil.NewMockCache()), logger)
}

func TestPlanner_SimplePair(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~AA11.mp4"), t0)
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~BB22.png"), []byte("overlay"))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_media~AA11_thumbnail.jpg"), []byte("thumb"))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-28_media~CC33.jpg"), []byte("no overlay that day"))

	plan, err := newTestPlanner(&testutil.MockLogger{}).Plan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, plan.Units, 1)
	u := plan.Units[0]
	assert.Equal(t, StrategySimple, u.Strategy)
	assert.Equal(t, ConfidenceExact, u.Confidence)
	assert.False(t, u.IsFolder())
	require.Len(t, u.Pairs, 1)
	assert.Equal(t, "2024-08-27_media~AA11.mp4", u.Pairs[0].Media.Name)
	assert.Equal(t, "2024-08-27_overlay~BB22.png", u.Pairs[0].Overlay.Name)

	require.Len(t, plan.Dates, 1)
	assert.Equal(t, "2024-08-27", plan.Dates[0].Date)
	assert.Equal(t, 0, plan.Dates[0].Unpaired)
}

func TestPlanner_Multipart(t *testing.T) {
	dir := t.TempDir()
	for i, id := range []string{"M3", "M1", "M2"} {
		testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~"+id+".mp4"), t0.Add(time.Duration(i)*10*time.Second))
	}
	for _, id := range []string{"O2", "O1", "O3"} {
		testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~"+id+".png"), []byte("same caption"))
	}

	plan, err := newTestPlanner(&testutil.MockLogger{}).Plan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, plan.Units, 1)
	u := plan.Units[0]
	assert.Equal(t, StrategyMultipart, u.Strategy)
	assert.Equal(t, "2024-08-27_media~M3_multipart", u.Folder)
	require.Len(t, u.Pairs, 3)
	for i, id := range []string{"M1", "M2", "M3"} {
		assert.Equal(t, "2024-08-27_media~"+id+".mp4", u.Pairs[i].Media.Name)
		assert.Equal(t, "2024-08-27_overlay~O1.png", u.Pairs[i].Overlay.Name)
	}
	assert.Len(t, u.Overlays, 3)
}

func TestPlanner_GroupedUniqueCardinality(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~A1.mp4"), t0)
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~A2.mp4"), t0.Add(10*time.Second))
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~B1.mp4"), t0.Add(10*time.Minute))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~X1.png"), []byte("x"))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~X2.png"), []byte("x"))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~Y1.png"), []byte("y"))

	logger := &testutil.MockLogger{}
	plan, err := newTestPlanner(logger).Plan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, plan.Units, 2)

	folder := plan.Units[0]
	assert.Equal(t, StrategyGrouped, folder.Strategy)
	assert.Equal(t, ConfidenceUnique, folder.Confidence)
	assert.Equal(t, "2024-08-27_media~A2_grouped", folder.Folder)
	require.Len(t, folder.Pairs, 2)
	assert.Equal(t, "2024-08-27_media~A1.mp4", folder.Pairs[0].Media.Name)
	assert.Equal(t, "2024-08-27_overlay~X1.png", folder.Pairs[0].Overlay.Name)
	assert.Equal(t, "2024-08-27_media~A2.mp4", folder.Pairs[1].Media.Name)
	assert.Equal(t, "2024-08-27_overlay~X2.png", folder.Pairs[1].Overlay.Name)

	single := plan.Units[1]
	assert.Equal(t, ConfidenceUnique, single.Confidence)
	assert.False(t, single.IsFolder())
	assert.Equal(t, "2024-08-27_media~B1.mp4", single.Pairs[0].Media.Name)
	assert.Equal(t, "2024-08-27_overlay~Y1.png", single.Pairs[0].Overlay.Name)

	assert.Equal(t, 0, logger.Count("warn", "Best-effort"))
}

func TestPlanner_TwoSingletonClustersCommit(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~C1.mp4"), t0)
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~C2.mp4"), t0.Add(5*time.Minute))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~P1.png"), []byte("p"))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~Q1.png"), []byte("q"))

	logger := &testutil.MockLogger{}
	plan, err := newTestPlanner(logger).Plan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, plan.Units, 2)
	for _, u := range plan.Units {
		assert.Equal(t, StrategyGrouped, u.Strategy)
		assert.Equal(t, ConfidenceUnique, u.Confidence)
		assert.False(t, u.IsFolder())
	}
	assert.Equal(t, "2024-08-27_media~C1.mp4", plan.Units[0].Pairs[0].Media.Name)
	assert.Equal(t, "2024-08-27_overlay~P1.png", plan.Units[0].Pairs[0].Overlay.Name)
	assert.Equal(t, "2024-08-27_media~C2.mp4", plan.Units[1].Pairs[0].Media.Name)
	assert.Equal(t, "2024-08-27_overlay~Q1.png", plan.Units[1].Pairs[0].Overlay.Name)
	assert.Equal(t, 0, logger.Count("warn", "Best-effort"))
}

func TestPlanner_GroupedBestEffort(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~C1.mp4"), t0)
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~C2.mp4"), t0.Add(10*time.Minute))
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~C3.mp4"), t0.Add(20*time.Minute))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~P1.png"), []byte("p"))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~Q1.png"), []byte("q"))

	logger := &testutil.MockLogger{}
	plan, err := newTestPlanner(logger).Plan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, plan.Units, 2)
	for _, u := range plan.Units {
		assert.Equal(t, ConfidenceBestEffort, u.Confidence)
	}
	assert.Equal(t, "2024-08-27_media~C1.mp4", plan.Units[0].Pairs[0].Media.Name)
	assert.Equal(t, "2024-08-27_overlay~P1.png", plan.Units[0].Pairs[0].Overlay.Name)
	assert.Equal(t, "2024-08-27_media~C2.mp4", plan.Units[1].Pairs[0].Media.Name)
	assert.Equal(t, "2024-08-27_overlay~Q1.png", plan.Units[1].Pairs[0].Overlay.Name)
	assert.Equal(t, 2, logger.Count("warn", "Best-effort"))
}

func TestPlanner_UntimedMediaStayUnpaired(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteMP4(t, filepath.Join(dir, "2024-08-27_media~D1.mp4"), t0)
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_media~D2.jpg"), []byte("jpeg"))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~R1.png"), []byte("r"))
	testutil.WriteFile(t, filepath.Join(dir, "2024-08-27_overlay~R2.png"), []byte("s"))

	plan, err := newTestPlanner(&testutil.MockLogger{}).Plan(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, plan.Units, 1)
	assert.Equal(t, "2024-08-27_media~D1.mp4", plan.Units[0].Pairs[0].Media.Name)
	require.Len(t, plan.Dates, 1)
	assert.Equal(t, StrategyGrouped, plan.Dates[0].Strategy)
	assert.Equal(t, 1, plan.Dates[0].Unpaired)
}

func TestPlanner_MissingDir(t *testing.T) {
	_, err := newTestPlanner(&testutil.MockLogger{}).Plan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestClusterByTime_GapBoundary(t *testing.T) {
	ms := t0.UnixMilli()
	files := []File{
		{Name: "a", CapturedAt: ms},
		{Name: "b", CapturedAt: ms + 60_000},
		{Name: "c", CapturedAt: ms + 120_001},
		{Name: "d"},
	}
	clusters := clusterByTime(files, time.Minute)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 2)
	assert.Equal(t, "c", clusters[1][0].Name)
}

func TestPairClusters_CommitsBalancedCardinalities(t *testing.T) {
	clusters := [][]File{
		{{Name: "m1"}},
		{{Name: "m2"}, {Name: "m3"}},
		{{Name: "m4"}},
	}
	classes := [][]File{
		{{Name: "o1"}},
		{{Name: "o2"}, {Name: "o3"}},
		{{Name: "o4"}},
	}
	matches := pairClusters(clusters, classes)
	require.Len(t, matches, 3)
	assert.Equal(t, clusterMatch{cluster: 0, class: 0, confidence: ConfidenceUnique}, matches[0])
	assert.Equal(t, clusterMatch{cluster: 1, class: 1, confidence: ConfidenceUnique}, matches[1])
	assert.Equal(t, clusterMatch{cluster: 2, class: 2, confidence: ConfidenceUnique}, matches[2])
}

func TestPairClusters_UnbalancedCardinalityIsBestEffort(t *testing.T) {
	clusters := [][]File{
		{{Name: "m1"}},
		{{Name: "m2"}, {Name: "m3"}},
		{{Name: "m4"}},
	}
	classes := [][]File{
		{{Name: "o1"}},
		{{Name: "o2"}, {Name: "o3"}},
	}
	matches := pairClusters(clusters, classes)
	require.Len(t, matches, 2)
	assert.Equal(t, clusterMatch{cluster: 0, class: 0, confidence: ConfidenceBestEffort}, matches[0])
	assert.Equal(t, clusterMatch{cluster: 1, class: 1, confidence: ConfidenceUnique}, matches[1])
}
