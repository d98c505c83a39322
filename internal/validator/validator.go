package validator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/Kvilt1/merger-simple/internal/dayindex"
	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/Kvilt1/merger-simple/internal/persistence"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
)

var ErrValidationFailed = errors.New("output validation failed")

const ReportFile = "validation_report.json"

// createdToleranceMs is the largest accepted gap between the canonical
// timestamp and the human readable Created string.
const createdToleranceMs = 1000

const maxExamples = 10

type Summary struct {
	EventsExpected         int `json:"events_expected"`
	EventsActual           int `json:"events_actual"`
	GalleryItems           int `json:"gallery_items"`
	DaysFound              int `json:"days_found"`
	ConversationsMetaFound int `json:"conversations_meta_found"`
	OrphansListed          int `json:"orphans_listed"`
}

type Report struct {
	OK       bool     `json:"ok"`
	RunID    string   `json:"run_id"`
	Problems []string `json:"problems"`
	Warnings []string `json:"warnings"`
	Summary  Summary  `json:"summary"`
}

func (r *Report) problem(format string, args ...interface{}) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

func (r *Report) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type Validator struct {
	indent int
	logger providers.Logger
}

func NewValidator(conf *structures.Config, logger providers.Logger) *Validator {
	indent := 0
	if conf.Output.Pretty {
		indent = conf.Output.Indent
	}
	return &Validator{indent: indent, logger: logger}
}

type actualEvent struct {
	day   string
	event dayindex.Event
}

// Validate re-reads the written tree, compares it with trace and writes
// validation_report.json. A report with problems returns ErrValidationFailed.
func (v *Validator) Validate(outDir string, trace *models.Trace) (*Report, error) {
	report := &Report{RunID: trace.RunID, Problems: []string{}, Warnings: []string{}}
	report.Summary.EventsExpected = len(trace.Events)

	events, seen := v.checkDays(outDir, trace, report)
	v.checkEvents(outDir, trace, events, seen, report)
	v.checkConversations(outDir, trace, report)
	v.checkOrphans(outDir, trace, report)
	v.checkTimestamps(trace, report)

	report.OK = len(report.Problems) == 0
	if err := persistence.WriteJSON(filepath.Join(outDir, ReportFile), report, v.indent); err != nil {
		return report, fmt.Errorf("write validation report: %w", err)
	}

	for _, w := range report.Warnings {
		v.logger.Warnf(providers.TypeValidate, "%s", w)
	}
	if !report.OK {
		for _, p := range report.Problems {
			v.logger.Errorf(providers.TypeValidate, "%s", p)
		}
		return report, fmt.Errorf("%w: %d problems", ErrValidationFailed, len(report.Problems))
	}
	v.logger.Infof(providers.TypeValidate, "Validation passed: %d events, %d gallery items, %d days",
		report.Summary.EventsActual, report.Summary.GalleryItems, report.Summary.DaysFound)
	return report, nil
}

// checkDays reads every day file and returns the events found plus how many
// times each id appeared.
func (v *Validator) checkDays(outDir string, trace *models.Trace, report *Report) (map[string]actualEvent, map[string]int) {
	events := make(map[string]actualEvent)
	seen := make(map[string]int)

	var index dayindex.DaysIndex
	if err := persistence.ReadJSON(filepath.Join(outDir, dayindex.DaysDir, dayindex.IndexFile), &index); err != nil {
		report.problem("days/index.json unreadable: %v", err)
	}

	days := slices.Clone(index.Days)
	for _, d := range trace.Days {
		if !slices.Contains(index.Days, d) {
			report.problem("Day %s missing from days/index.json", d)
			days = append(days, d)
		}
	}
	sort.Strings(days)

	var mismatches, unknownRefs []string
	for _, day := range days {
		var file dayindex.DayFile
		if err := persistence.ReadJSON(dayindex.DayFilePath(outDir, day), &file); err != nil {
			report.problem("Day file for %s unreadable: %v", day, err)
			continue
		}
		report.Summary.DaysFound++

		mediaCount := 0
		ids := make(map[string]struct{}, len(file.Events))
		for _, ev := range file.Events {
			seen[ev.ID]++
			events[ev.ID] = actualEvent{day: day, event: ev}
			ids[ev.ID] = struct{}{}
			mediaCount += len(ev.Media)
		}
		report.Summary.EventsActual += len(file.Events)
		report.Summary.GalleryItems += len(file.Gallery)

		if mediaCount != len(file.Gallery) || file.Stats.Media != mediaCount || file.Stats.Events != len(file.Events) {
			mismatches = append(mismatches, fmt.Sprintf("%s (media %d, gallery %d)", day, mediaCount, len(file.Gallery)))
		}
		for _, g := range file.Gallery {
			if _, ok := ids[g.Event]; !ok {
				unknownRefs = append(unknownRefs, g.Event)
			}
		}
	}

	if len(mismatches) > 0 {
		report.problem("Gallery count mismatches: %s", examples(mismatches))
	}
	if len(unknownRefs) > 0 {
		report.problem("Gallery references unknown event ids: %s", examples(unknownRefs))
	}
	return events, seen
}

func (v *Validator) checkEvents(outDir string, trace *models.Trace, events map[string]actualEvent, seen map[string]int, report *Report) {
	var missing, duplicated, unexpected, fieldDiffs, mediaDiffs, wrongDay, unpooled []string

	ids := make([]string, 0, len(trace.Events))
	for id := range trace.Events {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		exp := trace.Events[id]
		for _, name := range exp.PoolFailures {
			unpooled = append(unpooled, id+":"+name)
		}
		act, ok := events[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if seen[id] > 1 {
			duplicated = append(duplicated, id)
		}
		if act.day != exp.Day {
			wrongDay = append(wrongDay, id)
		}
		if field := diffField(exp, act.event); field != "" {
			fieldDiffs = append(fieldDiffs, id+"."+field)
		}
		if !samePaths(exp.MediaPaths, act.event.Media) {
			mediaDiffs = append(mediaDiffs, id)
		}
	}

	for id := range events {
		if _, ok := trace.Events[id]; !ok {
			unexpected = append(unexpected, id)
		}
	}
	sort.Strings(unexpected)

	if len(missing) > 0 {
		report.problem("Missing events (%d): %s", len(missing), examples(missing))
	}
	if len(duplicated) > 0 {
		report.problem("Events written more than once (%d): %s", len(duplicated), examples(duplicated))
	}
	if len(unexpected) > 0 {
		report.problem("Unexpected events (%d): %s", len(unexpected), examples(unexpected))
	}
	if len(wrongDay) > 0 {
		report.problem("Events in the wrong day (%d): %s", len(wrongDay), examples(wrongDay))
	}
	if len(fieldDiffs) > 0 {
		report.problem("Event field mismatches (%d): %s", len(fieldDiffs), examples(fieldDiffs))
	}
	if len(mediaDiffs) > 0 {
		report.problem("Event media mismatches (%d): %s", len(mediaDiffs), examples(mediaDiffs))
	}

	if len(unpooled) > 0 {
		report.problem("Media files that could not be pooled (%d): %s", len(unpooled), examples(unpooled))
	}

	var absent []string
	for _, p := range trace.Media {
		if !persistence.Exists(filepath.Join(outDir, filepath.FromSlash(p))) {
			absent = append(absent, p)
		}
	}
	if len(absent) > 0 {
		report.problem("Pool files missing on disk (%d): %s", len(absent), examples(absent))
	}
}

func diffField(exp models.ExpectedEvent, ev dayindex.Event) string {
	switch {
	case exp.TMs != ev.TMs:
		return "t_ms"
	case exp.TISO != ev.TISO:
		return "t_iso"
	case exp.From != ev.From:
		return "from"
	case exp.Kind != ev.Kind:
		return "kind"
	case exp.MediaType != ev.MediaType:
		return "media_type"
	case exp.Saved != ev.Saved:
		return "saved"
	case !sameText(exp.Text, ev.Text):
		return "text"
	}
	return ""
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func samePaths(expected []string, items []dayindex.MediaItem) bool {
	if len(expected) != len(items) {
		return false
	}
	want := slices.Clone(expected)
	got := make([]string, 0, len(items))
	for _, m := range items {
		got = append(got, m.Path)
	}
	sort.Strings(want)
	sort.Strings(got)
	return slices.Equal(want, got)
}

func (v *Validator) checkConversations(outDir string, trace *models.Trace, report *Report) {
	found := make(map[string]struct{})
	entries, err := os.ReadDir(filepath.Join(outDir, dayindex.ConversationsDir))
	if err != nil && !os.IsNotExist(err) {
		report.problem("conversations directory unreadable: %v", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var meta dayindex.ConversationMeta
		if err := persistence.ReadJSON(filepath.Join(outDir, dayindex.ConversationsDir, e.Name(), dayindex.MetaFile), &meta); err != nil {
			continue
		}
		if meta.ID != "" {
			found[meta.ID] = struct{}{}
		}
	}
	report.Summary.ConversationsMetaFound = len(found)

	var missing []string
	for _, id := range trace.Conversations {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		report.problem("Missing conversation meta.json (%d): %s", len(missing), examples(missing))
	}
}

func (v *Validator) checkOrphans(outDir string, trace *models.Trace, report *Report) {
	var index dayindex.OrphansIndex
	if err := persistence.ReadJSON(filepath.Join(outDir, dayindex.OrphansDir, dayindex.IndexFile), &index); err != nil {
		report.problem("orphans/index.json unreadable: %v", err)
		return
	}
	report.Summary.OrphansListed = len(index.Items)

	listed := make(map[string]struct{}, len(index.Items))
	var absent []string
	for _, it := range index.Items {
		listed[it.Path] = struct{}{}
		if !persistence.Exists(filepath.Join(outDir, filepath.FromSlash(it.Path))) {
			absent = append(absent, it.Path)
		}
	}

	var unlisted []string
	for _, p := range trace.Orphans {
		if _, ok := listed[p]; !ok {
			unlisted = append(unlisted, p)
		}
	}
	if len(unlisted) > 0 {
		report.problem("Orphans missing in index.json (%d): %s", len(unlisted), examples(unlisted))
	}
	if len(absent) > 0 {
		report.problem("Orphans missing in pool (%d): %s", len(absent), examples(absent))
	}
}

// checkTimestamps reports data quality issues as warnings only.
func (v *Validator) checkTimestamps(trace *models.Trace, report *Report) {
	var skewed, fallback []string
	for id, exp := range trace.Events {
		if exp.HadCreatedString && exp.CreatedStringDelta > createdToleranceMs {
			skewed = append(skewed, fmt.Sprintf("%s (%dms)", id, exp.CreatedStringDelta))
		}
		if exp.TimestampFallback {
			fallback = append(fallback, id)
		}
	}
	sort.Strings(skewed)
	sort.Strings(fallback)

	if len(skewed) > 0 {
		report.warn("Created string differs from canonical timestamp by more than 1s (%d): %s", len(skewed), examples(skewed))
	}
	if len(fallback) > 0 {
		report.warn("Events without a usable timestamp, stamped at conversion time (%d): %s", len(fallback), examples(fallback))
	}
}

func examples(items []string) string {
	if len(items) > maxExamples {
		return strings.Join(items[:maxExamples], ", ") + fmt.Sprintf(" (+%d more)", len(items)-maxExamples)
	}
	return strings.Join(items, ", ")
}
