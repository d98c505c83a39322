package dayindex

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Kvilt1/merger-simple/internal/conversation"
	"github.com/Kvilt1/merger-simple/internal/indexer"
	"github.com/Kvilt1/merger-simple/internal/mapper"
	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/Kvilt1/merger-simple/internal/persistence"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"golang.org/x/sync/errgroup"
)

type Builder struct {
	naming  string
	indent  int
	workers int
	hasher  media.HasherInterface
	metrics providers.MetricsProviderInterface
	logger  providers.Logger
}

func NewBuilder(conf *structures.Config, hasher media.HasherInterface, metrics providers.MetricsProviderInterface, logger providers.Logger) *Builder {
	indent := 0
	if conf.Output.Pretty {
		indent = conf.Output.Indent
	}
	return &Builder{
		naming:  conf.Output.PoolNaming,
		indent:  indent,
		workers: conf.IO.Workers,
		hasher:  hasher,
		metrics: metrics,
		logger:  logger,
	}
}

type convEvents struct {
	slim     SlimMeta
	events   []Event
	expected map[string]models.ExpectedEvent
}

// Build writes the day tree, conversation metas, orphans and pool under outDir
// and returns the expectation trace recorded on the way.
func (b *Builder) Build(ctx context.Context, ds *conversation.Dataset, ix *indexer.Index, res *mapper.Result, outDir, runID string) (*models.Trace, *Summary, error) {
	pool := NewPool(filepath.Join(outDir, PoolDir), b.naming, b.hasher, b.metrics)
	slugs := uniqueSlugs(ds.Conversations)

	results := make([]convEvents, len(ds.Conversations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, b.workers))
	for i, conv := range ds.Conversations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ce, err := b.buildConversation(conv, ix, res.Mapping, pool)
			if err != nil {
				return err
			}
			meta := ConversationMeta{SlimMeta: ce.slim, Metadata: conv.Metadata}
			if err := persistence.WriteJSON(filepath.Join(outDir, ConversationsDir, slugs[i], MetaFile), meta, b.indent); err != nil {
				return fmt.Errorf("write meta for %s: %w", conv.ID, err)
			}
			results[i] = ce
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	trace := &models.Trace{
		RunID:  runID,
		Events: make(map[string]models.ExpectedEvent),
	}
	for _, r := range results {
		trace.Conversations = append(trace.Conversations, r.slim.ID)
		for id, exp := range r.expected {
			trace.Events[id] = exp
		}
	}

	summary, err := b.writeDays(outDir, results, trace)
	if err != nil {
		return nil, nil, err
	}
	summary.Conversations = len(results)

	orphans, err := b.writeOrphans(outDir, ix, res.Orphans, pool, trace)
	if err != nil {
		return nil, nil, err
	}
	summary.Orphans = orphans
	summary.PoolCopied = pool.Copied()
	summary.PoolDeduped = pool.Deduplicated()

	b.logger.Infof(providers.TypeDayIndex, "Conversion complete: %d events, %d media items, %d days, %d orphans",
		summary.Events, summary.Media, summary.Days, summary.Orphans)
	return trace, summary, nil
}

// uniqueSlugs assigns each conversation a distinct directory name.
func uniqueSlugs(convs []*models.Conversation) []string {
	seen := make(map[string]int)
	out := make([]string, len(convs))
	for i, c := range convs {
		s := Slugify(c.ID)
		if n := seen[s]; n > 0 {
			seen[s] = n + 1
			s = fmt.Sprintf("%s-%d", s, n+1)
		} else {
			seen[s] = 1
		}
		out[i] = s
	}
	return out
}

// expand turns resolutions into concrete files; folders contribute their members.
func expand(ix *indexer.Index, rs []models.Resolution) []string {
	var files []string
	for _, r := range rs {
		asset := ix.Asset(r.AssetID)
		if asset.Kind == models.AssetFolder {
			for _, m := range asset.SortedMembers() {
				files = append(files, filepath.Join(asset.Path, m))
			}
			continue
		}
		files = append(files, asset.Path)
	}
	return files
}

func (b *Builder) buildConversation(conv *models.Conversation, ix *indexer.Index, mapping *models.Mapping, pool *Pool) (convEvents, error) {
	ce := convEvents{
		slim:     Slim(conv.Metadata),
		events:   make([]Event, 0, len(conv.Messages)),
		expected: make(map[string]models.ExpectedEvent, len(conv.Messages)),
	}

	for _, msg := range conv.Messages {
		items := []MediaItem{}
		paths := []string{}
		var failed []string
		for _, src := range expand(ix, mapping.Get(models.MessageKey{ConversationID: conv.ID, Index: msg.Index})) {
			web, err := pool.Insert(src)
			if err != nil {
				b.logger.Errorf(providers.TypeDayIndex, "Cannot pool %s: %v", filepath.Base(src), err)
				failed = append(failed, filepath.Base(src))
				continue
			}
			items = append(items, MediaItem{Path: web, Name: filepath.Base(src)})
			paths = append(paths, web)
		}

		ev := Event{
			ID:        msg.EventID(),
			TMs:       msg.CreatedMs,
			TISO:      models.ISOOf(msg.CreatedMs),
			From:      msg.Sender,
			Kind:      msg.Kind,
			MediaType: msg.MediaType,
			Text:      msg.Content,
			Saved:     msg.Saved,
			Media:     items,
			order:     conv.Order,
			index:     msg.Index,
		}
		ce.events = append(ce.events, ev)

		exp := models.ExpectedEvent{
			Conversation:      conv.ID,
			Day:               msg.Day(),
			TMs:               ev.TMs,
			TISO:              ev.TISO,
			From:              ev.From,
			Kind:              ev.Kind,
			MediaType:         ev.MediaType,
			Text:              ev.Text,
			Saved:             ev.Saved,
			MediaPaths:        paths,
			TimestampFallback: msg.TimestampFallback,
			PoolFailures:      failed,
		}
		if parsed, ok := models.ParseCreatedText(msg.CreatedText); ok {
			exp.HadCreatedString = true
			exp.CreatedStringDelta = abs(parsed - msg.CreatedMs)
		}
		ce.expected[ev.ID] = exp
	}
	return ce, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

type bucket struct {
	events        []Event
	conversations map[string]SlimMeta
}

func (b *Builder) writeDays(outDir string, results []convEvents, trace *models.Trace) (*Summary, error) {
	buckets := make(map[string]*bucket)
	for _, r := range results {
		for _, ev := range r.events {
			day := models.DayOf(ev.TMs)
			bk, ok := buckets[day]
			if !ok {
				bk = &bucket{conversations: make(map[string]SlimMeta)}
				buckets[day] = bk
			}
			bk.events = append(bk.events, ev)
			bk.conversations[r.slim.ID] = r.slim
		}
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	summary := &Summary{Days: len(days)}
	mediaPaths := make(map[string]struct{})
	for _, day := range days {
		bk := buckets[day]
		sort.SliceStable(bk.events, func(i, j int) bool {
			a, c := bk.events[i], bk.events[j]
			if a.TMs != c.TMs {
				return a.TMs < c.TMs
			}
			if a.order != c.order {
				return a.order < c.order
			}
			return a.index < c.index
		})

		convs := make([]SlimMeta, 0, len(bk.conversations))
		for _, s := range bk.conversations {
			convs = append(convs, s)
		}
		sort.Slice(convs, func(i, j int) bool {
			if convs[i].Type != convs[j].Type {
				return convs[i].Type < convs[j].Type
			}
			if titleOf(convs[i]) != titleOf(convs[j]) {
				return titleOf(convs[i]) < titleOf(convs[j])
			}
			return convs[i].ID < convs[j].ID
		})

		gallery := []GalleryItem{}
		for _, ev := range bk.events {
			for _, m := range ev.Media {
				gallery = append(gallery, GalleryItem{Event: ev.ID, Path: m.Path})
				mediaPaths[m.Path] = struct{}{}
			}
		}

		file := DayFile{
			Date:          day,
			Events:        bk.events,
			Conversations: convs,
			Gallery:       gallery,
			Stats:         DayStats{Events: len(bk.events), Conversations: len(convs), Media: len(gallery)},
		}
		if err := persistence.WriteJSON(DayFilePath(outDir, day), file, b.indent); err != nil {
			return nil, fmt.Errorf("write day %s: %w", day, err)
		}
		summary.Events += len(bk.events)
		summary.Media += len(gallery)
	}

	if err := persistence.WriteJSON(filepath.Join(outDir, DaysDir, IndexFile), DaysIndex{Days: days}, b.indent); err != nil {
		return nil, err
	}

	trace.Days = days
	for p := range mediaPaths {
		trace.Media = append(trace.Media, p)
	}
	sort.Strings(trace.Media)
	return summary, nil
}

// DayFilePath maps YYYY-MM-DD onto days/YYYY/MM/DD/index.json.
func DayFilePath(outDir, day string) string {
	parts := strings.SplitN(day, "-", 3)
	if len(parts) != 3 {
		return filepath.Join(outDir, DaysDir, day, IndexFile)
	}
	return filepath.Join(outDir, DaysDir, parts[0], parts[1], parts[2], IndexFile)
}

// writeOrphans pools every unattached asset and lists it with a best guess
// date: its own filename date, then its folder's date, then the first day.
func (b *Builder) writeOrphans(outDir string, ix *indexer.Index, ids []uint32, pool *Pool, trace *models.Trace) (int, error) {
	fallback := ""
	if len(trace.Days) > 0 {
		fallback = trace.Days[0]
	}
	guess := func(names ...string) string {
		for _, n := range names {
			if d, ok := media.DatePrefix(n); ok {
				return d
			}
		}
		return fallback
	}

	items := []OrphanItem{}
	for _, id := range ids {
		asset := ix.Asset(id)
		if asset.Kind == models.AssetFolder {
			for _, m := range asset.SortedMembers() {
				web, err := pool.Insert(filepath.Join(asset.Path, m))
				if err != nil {
					b.logger.Errorf(providers.TypeDayIndex, "Cannot pool orphan %s/%s: %v", asset.Name, m, err)
					continue
				}
				items = append(items, OrphanItem{Path: web, Name: m, Date: guess(m, asset.Name)})
			}
			continue
		}
		if media.IsThumbnail(asset.Name) {
			continue
		}
		web, err := pool.Insert(asset.Path)
		if err != nil {
			b.logger.Errorf(providers.TypeDayIndex, "Cannot pool orphan %s: %v", asset.Name, err)
			continue
		}
		items = append(items, OrphanItem{Path: web, Name: asset.Name, Date: guess(asset.Name)})
	}

	for _, it := range items {
		trace.Orphans = append(trace.Orphans, it.Path)
	}
	if err := persistence.WriteJSON(filepath.Join(outDir, OrphansDir, IndexFile), OrphansIndex{Items: items}, b.indent); err != nil {
		return 0, err
	}
	if len(items) > 0 {
		b.logger.Infof(providers.TypeDayIndex, "Listed %d orphaned media items", len(items))
	}
	return len(items), nil
}
