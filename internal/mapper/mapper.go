package mapper

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Kvilt1/merger-simple/internal/indexer"
	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"golang.org/x/sync/errgroup"
)

// Result is the final message -> media table plus everything left unattached.
type Result struct {
	Mapping  *models.Mapping
	Claims   *models.ClaimSet
	Orphans  []uint32
	Outcomes []Outcome
}

type Mapper struct {
	tolerance       time.Duration
	dateCorrelation bool
	workers         int
	metrics         providers.MetricsProviderInterface
	logger          providers.Logger
}

func NewMapper(conf *structures.Config, metrics providers.MetricsProviderInterface, logger providers.Logger) *Mapper {
	return &Mapper{
		tolerance:       conf.Matching.Tolerance,
		dateCorrelation: conf.Matching.DateCorrelation,
		workers:         conf.IO.Workers,
		metrics:         metrics,
		logger:          logger,
	}
}

// Map runs the identifier, timestamp and date correlation passes in order.
// Conversations must already be sorted and indexed.
func (m *Mapper) Map(ctx context.Context, convs []*models.Conversation, ix *indexer.Index) (*Result, error) {
	res := &Result{
		Mapping: models.NewMapping(),
		Claims:  models.NewClaimSet(),
	}

	byID, err := m.byIdentifier(ctx, convs, ix, res.Claims)
	if err != nil {
		return nil, err
	}
	m.apply(res, byID)

	m.apply(res, m.byTimestamp(convs, ix, res.Claims))

	if m.dateCorrelation {
		m.apply(res, m.byDateCorrelation(convs, ix, res.Claims))
	}

	res.Orphans = res.Claims.Unclaimed(ix.Len())
	m.metrics.SetOrphans(len(res.Orphans))

	counts := res.Mapping.CountByMethod()
	m.logger.Infof(providers.TypeMapping, "Mapped %d assets: %d by id, %d by timestamp, %d by date correlation; %d unmapped",
		res.Claims.Len(), counts[models.MethodIdentifier], counts[models.MethodTimestamp],
		counts[models.MethodDateCorrelation], len(res.Orphans))
	return res, nil
}

func (m *Mapper) apply(res *Result, outcomes []Outcome) {
	for _, o := range outcomes {
		if r, ok := o.(Resolved); ok {
			res.Mapping.Add(r.Key, r.Resolution)
			m.metrics.IncResolution(string(r.Resolution.Method))
		}
	}
	res.Outcomes = append(res.Outcomes, outcomes...)
}

func resolution(asset *models.MediaAsset, method models.Method, offsetMs int64) models.Resolution {
	r := models.Resolution{
		AssetID:  asset.ID,
		Location: asset.Location(),
		Folder:   asset.Kind == models.AssetFolder,
		Method:   method,
	}
	if method == models.MethodTimestamp {
		r.OffsetSeconds = math.Round(math.Abs(float64(offsetMs))/100) / 10
	}
	return r
}

type idRef struct {
	key   models.MessageKey
	id    string
	asset *models.MediaAsset
}

// byIdentifier resolves explicit Media IDs. Lookups run per conversation in
// parallel; claims are committed afterwards in conversation order so the
// first conversation referencing an id always wins it.
func (m *Mapper) byIdentifier(ctx context.Context, convs []*models.Conversation, ix *indexer.Index, claims *models.ClaimSet) ([]Outcome, error) {
	refs := make([][]idRef, len(convs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, m.workers))
	for ci, conv := range convs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var out []idRef
			for _, msg := range conv.Messages {
				key := models.MessageKey{ConversationID: conv.ID, Index: msg.Index}
				for _, id := range msg.MediaIDs {
					asset, _ := ix.Lookup(id)
					out = append(out, idRef{key: key, id: id, asset: asset})
				}
			}
			refs[ci] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	perConv := make([][]Outcome, len(convs))
	for ci, out := range refs {
		for _, r := range out {
			switch {
			case r.asset == nil:
				perConv[ci] = append(perConv[ci], Unresolved{Method: models.MethodIdentifier, MediaID: r.id, Reason: ReasonIDNotFound})
			case !claims.TryClaim(r.asset.ID):
				perConv[ci] = append(perConv[ci], Unresolved{Method: models.MethodIdentifier, AssetID: r.asset.ID, MediaID: r.id, Reason: ReasonAlreadyClaimed})
			default:
				perConv[ci] = append(perConv[ci], Resolved{Key: r.key, Resolution: resolution(r.asset, models.MethodIdentifier, 0)})
			}
		}
	}

	var outcomes []Outcome
	found, missing := 0, 0
	for _, out := range perConv {
		for _, o := range out {
			if u, ok := o.(Unresolved); ok && u.Reason == ReasonIDNotFound {
				missing++
			} else {
				found++
			}
		}
		outcomes = append(outcomes, out...)
	}
	if total := found + missing; total > 0 {
		m.logger.Infof(providers.TypeMapping, "Media id mapping: [%d]/[%d] (%.1f%%)", found, total, float64(found)/float64(total)*100)
	}
	return outcomes, nil
}

type stamp struct {
	key   models.MessageKey
	order int
	ms    int64
}

// timeline flattens every message with a positive timestamp, ordered by
// (timestamp, conversation order, index).
func timeline(convs []*models.Conversation) []stamp {
	var out []stamp
	for _, conv := range convs {
		for _, msg := range conv.Messages {
			if msg.CreatedMs > 0 {
				out = append(out, stamp{
					key:   models.MessageKey{ConversationID: conv.ID, Index: msg.Index},
					order: conv.Order,
					ms:    msg.CreatedMs,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ms != out[j].ms {
			return out[i].ms < out[j].ms
		}
		if out[i].order != out[j].order {
			return out[i].order < out[j].order
		}
		return out[i].key.Index < out[j].key.Index
	})
	return out
}

// nearest returns the timeline entry closest to ms. On equal distance the
// entry that comes first in ascending order wins.
func nearest(tl []stamp, ms int64) (stamp, int64) {
	i := sort.Search(len(tl), func(k int) bool { return tl[k].ms >= ms })

	best := -1
	var bestDiff int64
	if i > 0 {
		lowMs := tl[i-1].ms
		first := sort.Search(len(tl), func(k int) bool { return tl[k].ms >= lowMs })
		best, bestDiff = first, ms-lowMs
	}
	if i < len(tl) {
		diff := tl[i].ms - ms
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return tl[best], bestDiff
}

// byTimestamp attaches unclaimed videos and fused folders to the message
// nearest to their capture time, within tolerance (inclusive).
func (m *Mapper) byTimestamp(convs []*models.Conversation, ix *indexer.Index, claims *models.ClaimSet) []Outcome {
	tl := timeline(convs)
	tolerance := m.tolerance.Milliseconds()

	var (
		outcomes []Outcome
		eligible int
		matched  int
	)
	for _, id := range claims.Unclaimed(ix.Len()) {
		asset := ix.Asset(id)
		if asset.Kind == models.AssetSingle && !media.IsVideo(asset.Name) {
			continue
		}
		eligible++

		captured := asset.CapturedAt(media.ExtractCreationTime)
		if captured <= 0 {
			outcomes = append(outcomes, Unresolved{Method: models.MethodTimestamp, AssetID: id, Reason: ReasonNoTimestamp})
			continue
		}
		if len(tl) == 0 {
			outcomes = append(outcomes, Unresolved{Method: models.MethodTimestamp, AssetID: id, Reason: ReasonNoMessages})
			continue
		}

		best, diff := nearest(tl, captured)
		if diff > tolerance {
			outcomes = append(outcomes, Unresolved{Method: models.MethodTimestamp, AssetID: id, Reason: ReasonOutsideTolerance})
			continue
		}
		if !claims.TryClaim(id) {
			outcomes = append(outcomes, Unresolved{Method: models.MethodTimestamp, AssetID: id, Reason: ReasonAlreadyClaimed})
			continue
		}
		matched++
		outcomes = append(outcomes, Resolved{Key: best.key, Resolution: resolution(asset, models.MethodTimestamp, diff)})
	}

	if eligible > 0 {
		m.logger.Infof(providers.TypeMapping, "Timestamp matching: [%d]/[%d] (%.1f%%)", matched, eligible, float64(matched)/float64(eligible)*100)
	}
	return outcomes
}

type dateKey struct {
	date      string
	mediaType string
}

// byDateCorrelation pairs the lone unclaimed file of a date with the lone snap
// of that date and media type. Snaps that already hold media still count as
// candidates, so a second snap of the same type blocks the match.
func (m *Mapper) byDateCorrelation(convs []*models.Conversation, ix *indexer.Index, claims *models.ClaimSet) []Outcome {
	files := make(map[string][]uint32)
	var dates []string
	for _, id := range claims.Unclaimed(ix.Len()) {
		asset := ix.Asset(id)
		if asset.Kind != models.AssetSingle {
			continue
		}
		date, ok := media.DatePrefix(asset.Name)
		if !ok || media.TypeOf(asset.Name) == "" {
			continue
		}
		if _, seen := files[date]; !seen {
			dates = append(dates, date)
		}
		files[date] = append(files[date], id)
	}

	snaps := make(map[dateKey][]models.MessageKey)
	for _, conv := range convs {
		for _, msg := range conv.Messages {
			if msg.Kind != models.KindSnap {
				continue
			}
			key := models.MessageKey{ConversationID: conv.ID, Index: msg.Index}
			k := dateKey{date: msg.Day(), mediaType: strings.ToUpper(strings.TrimSpace(msg.MediaType))}
			snaps[k] = append(snaps[k], key)
		}
	}

	var outcomes []Outcome
	for _, date := range dates {
		ids := files[date]
		if len(ids) != 1 {
			for _, id := range ids {
				outcomes = append(outcomes, Unresolved{Method: models.MethodDateCorrelation, AssetID: id, Reason: ReasonAmbiguousDate})
			}
			continue
		}

		id := ids[0]
		asset := ix.Asset(id)
		candidates := snaps[dateKey{date: date, mediaType: media.TypeOf(asset.Name)}]
		switch {
		case len(candidates) == 0:
			outcomes = append(outcomes, Unresolved{Method: models.MethodDateCorrelation, AssetID: id, Reason: ReasonNoCandidate})
		case len(candidates) > 1:
			outcomes = append(outcomes, Unresolved{Method: models.MethodDateCorrelation, AssetID: id, Reason: ReasonMultipleSnaps})
		case !claims.TryClaim(id):
			outcomes = append(outcomes, Unresolved{Method: models.MethodDateCorrelation, AssetID: id, Reason: ReasonAlreadyClaimed})
		default:
			m.logger.Debugf(providers.TypeMapping, "Date correlation: %s -> %s #%d", asset.Name, candidates[0].ConversationID, candidates[0].Index)
			outcomes = append(outcomes, Resolved{Key: candidates[0], Resolution: resolution(asset, models.MethodDateCorrelation, 0)})
		}
	}
	return outcomes
}
