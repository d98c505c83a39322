package overlay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"golang.org/x/sync/errgroup"
)

type dateBatch struct {
	date     string
	media    []File
	overlays []File
}

func (b *dateBatch) isSimple() bool {
	return len(b.media) == 1 && len(b.overlays) == 1
}

// Planner decides which raw files get fused together. It never touches ffmpeg.
type Planner struct {
	hasher     media.HasherInterface
	clusterGap time.Duration
	workers    int
	logger     providers.Logger
}

func NewPlanner(conf *structures.Config, hasher media.HasherInterface, logger providers.Logger) *Planner {
	return &Planner{
		hasher:     hasher,
		clusterGap: conf.Matching.ClusterGap,
		workers:    conf.IO.Workers,
		logger:     logger,
	}
}

func (p *Planner) Plan(ctx context.Context, sourceDir string) (*Plan, error) {
	batches, err := p.scan(sourceDir)
	if err != nil {
		return nil, err
	}
	if err := p.probe(ctx, batches); err != nil {
		return nil, err
	}

	plan := &Plan{}
	for _, b := range batches {
		if len(b.media) == 0 || len(b.overlays) == 0 {
			continue
		}

		var (
			units    []Unit
			strategy Strategy
		)
		switch {
		case b.isSimple():
			strategy = StrategySimple
			units = []Unit{{
				Date:       b.date,
				Strategy:   StrategySimple,
				Confidence: ConfidenceExact,
				Pairs:      []Pair{{Media: b.media[0], Overlay: b.overlays[0]}},
				Overlays:   b.overlays,
			}}
		case len(b.media) == len(b.overlays) && sameDigest(b.overlays):
			strategy = StrategyMultipart
			units = []Unit{planMultipart(b)}
		default:
			strategy = StrategyGrouped
			units = p.planGrouped(b)
		}

		paired := 0
		for _, u := range units {
			paired += len(u.Pairs)
		}
		plan.Units = append(plan.Units, units...)
		plan.Dates = append(plan.Dates, DateReport{
			Date:     b.date,
			Strategy: strategy,
			Media:    len(b.media),
			Overlays: len(b.overlays),
			Units:    len(units),
			Unpaired: len(b.media) - paired,
		})
	}
	return plan, nil
}

// scan groups role-tagged files by their date prefix, in date order.
func (p *Planner) scan(sourceDir string) ([]*dateBatch, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("read media dir: %w", err)
	}

	byDate := make(map[string]*dateBatch)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		role := media.RoleOf(name)
		if role == media.RoleOther {
			continue
		}
		date, ok := media.DatePrefix(name)
		if !ok {
			continue
		}

		b, ok := byDate[date]
		if !ok {
			b = &dateBatch{date: date}
			byDate[date] = b
		}
		f := File{Name: name, Path: filepath.Join(sourceDir, name), Date: date, Role: role}
		if role == media.RoleMedia {
			b.media = append(b.media, f)
		} else {
			b.overlays = append(b.overlays, f)
		}
	}

	batches := make([]*dateBatch, 0, len(byDate))
	for _, b := range byDate {
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].date < batches[j].date })
	return batches, nil
}

// probe fills overlay digests and media capture times for every batch that
// needs more than the simple pairing rule.
func (p *Planner) probe(ctx context.Context, batches []*dateBatch) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.workers))

	for _, b := range batches {
		if b.isSimple() || len(b.media) == 0 || len(b.overlays) == 0 {
			continue
		}
		for i := range b.overlays {
			f := &b.overlays[i]
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				digest, err := p.hasher.Digest(f.Path)
				if err != nil {
					p.logger.Warnf(providers.TypeOverlay, "Cannot hash overlay %s: %v", f.Name, err)
					return nil
				}
				f.Digest = digest
				return nil
			})
		}
		for i := range b.media {
			f := &b.media[i]
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if ms, ok := media.ExtractCreationTime(f.Path); ok {
					f.CapturedAt = ms
				}
				return nil
			})
		}
	}
	return g.Wait()
}

func sameDigest(files []File) bool {
	if len(files) == 0 || files[0].Digest == "" {
		return false
	}
	for _, f := range files[1:] {
		if f.Digest != files[0].Digest {
			return false
		}
	}
	return true
}

func byName(files []File) []File {
	out := slices.Clone(files)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func planMultipart(b *dateBatch) Unit {
	mediaSorted := byName(b.media)
	overlaysSorted := byName(b.overlays)
	shared := overlaysSorted[0]

	pairs := make([]Pair, 0, len(mediaSorted))
	for _, m := range mediaSorted {
		pairs = append(pairs, Pair{Media: m, Overlay: shared})
	}
	return Unit{
		Date:       b.date,
		Strategy:   StrategyMultipart,
		Confidence: ConfidenceExact,
		Folder:     media.Stem(mediaSorted[len(mediaSorted)-1].Name) + media.MultipartSuffix,
		Pairs:      pairs,
		Overlays:   overlaysSorted,
	}
}

func (p *Planner) planGrouped(b *dateBatch) []Unit {
	classes := digestClasses(b.overlays)
	clusters := clusterByTime(b.media, p.clusterGap)
	matches := pairClusters(clusters, classes)

	units := make([]Unit, 0, len(matches))
	for _, m := range matches {
		cluster := byName(clusters[m.cluster])
		class := classes[m.class]
		if m.confidence == ConfidenceBestEffort {
			p.logger.Warnf(providers.TypeOverlay, "Best-effort overlay pairing on %s: %d media with class %s",
				b.date, len(cluster), shortDigest(class[0].Digest))
		}

		if len(cluster) == 1 {
			units = append(units, Unit{
				Date:       b.date,
				Strategy:   StrategyGrouped,
				Confidence: m.confidence,
				Pairs:      []Pair{{Media: cluster[0], Overlay: class[0]}},
				Overlays:   class,
			})
			continue
		}

		pairs := make([]Pair, len(cluster))
		for i := range cluster {
			pairs[i] = Pair{Media: cluster[i], Overlay: class[i]}
		}
		units = append(units, Unit{
			Date:       b.date,
			Strategy:   StrategyGrouped,
			Confidence: m.confidence,
			Folder:     media.Stem(cluster[len(cluster)-1].Name) + media.GroupedSuffix,
			Pairs:      pairs,
			Overlays:   class,
		})
	}
	return units
}

// digestClasses partitions hashed overlays by digest. Each class is sorted by
// name and classes are ordered by their smallest member name.
func digestClasses(overlays []File) [][]File {
	byDigest := make(map[string][]File)
	for _, o := range overlays {
		if o.Digest == "" {
			continue
		}
		byDigest[o.Digest] = append(byDigest[o.Digest], o)
	}

	classes := make([][]File, 0, len(byDigest))
	for _, members := range byDigest {
		classes = append(classes, byName(members))
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i][0].Name < classes[j][0].Name })
	return classes
}

// clusterByTime groups media with a known capture time. A gap to the
// previous item larger than gap starts a new cluster.
func clusterByTime(files []File, gap time.Duration) [][]File {
	timed := make([]File, 0, len(files))
	for _, f := range files {
		if f.CapturedAt > 0 {
			timed = append(timed, f)
		}
	}
	if len(timed) == 0 {
		return nil
	}
	sort.Slice(timed, func(i, j int) bool {
		if timed[i].CapturedAt != timed[j].CapturedAt {
			return timed[i].CapturedAt < timed[j].CapturedAt
		}
		return timed[i].Name < timed[j].Name
	})

	gapMs := gap.Milliseconds()
	clusters := [][]File{{timed[0]}}
	for i := 1; i < len(timed); i++ {
		if timed[i].CapturedAt-timed[i-1].CapturedAt > gapMs {
			clusters = append(clusters, []File{timed[i]})
			continue
		}
		last := len(clusters) - 1
		clusters[last] = append(clusters[last], timed[i])
	}
	return clusters
}

type clusterMatch struct {
	cluster    int
	class      int
	confidence Confidence
}

// pairClusters matches clusters to overlay classes of equal cardinality.
// A cardinality held by as many clusters as classes leaves no competing
// choice and is committed, clusters in time order against classes in class
// order. The rest pair in cluster time order with the first free class of
// that size and are best effort.
func pairClusters(clusters, classes [][]File) []clusterMatch {
	clustersBySize := make(map[int][]int)
	for i, c := range clusters {
		clustersBySize[len(c)] = append(clustersBySize[len(c)], i)
	}
	classesBySize := make(map[int][]int)
	for i, c := range classes {
		classesBySize[len(c)] = append(classesBySize[len(c)], i)
	}

	clusterUsed := make([]bool, len(clusters))
	classUsed := make([]bool, len(classes))
	var matches []clusterMatch

	for size, cl := range clustersBySize {
		ks := classesBySize[size]
		if len(cl) != len(ks) {
			continue
		}
		for i := range cl {
			matches = append(matches, clusterMatch{cluster: cl[i], class: ks[i], confidence: ConfidenceUnique})
			clusterUsed[cl[i]] = true
			classUsed[ks[i]] = true
		}
	}

	for ci, c := range clusters {
		if clusterUsed[ci] {
			continue
		}
		for ki, k := range classes {
			if classUsed[ki] || len(k) != len(c) {
				continue
			}
			matches = append(matches, clusterMatch{cluster: ci, class: ki, confidence: ConfidenceBestEffort})
			clusterUsed[ci] = true
			classUsed[ki] = true
			break
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].cluster < matches[j].cluster })
	return matches
}

func shortDigest(d string) string {
	if len(d) > 8 {
		return d[:8]
	}
	return d
}
