package overlay

import (
	"github.com/Kvilt1/merger-simple/internal/media"
	"go.uber.org/atomic"
)

type Strategy string

const (
	StrategySimple    Strategy = "simple"
	StrategyMultipart Strategy = "multipart"
	StrategyGrouped   Strategy = "grouped"
)

type Confidence string

const (
	ConfidenceExact      Confidence = "exact"
	ConfidenceUnique     Confidence = "unique"
	ConfidenceBestEffort Confidence = "best-effort"
)

// File is a raw export file taking part in overlay grouping.
type File struct {
	Name       string
	Path       string
	Date       string
	Role       media.Role
	CapturedAt int64
	Digest     string
}

type Pair struct {
	Media   File
	Overlay File
}

// Unit is one fusion job: a single output when Folder is empty, otherwise a
// folder of members. Overlays lists every overlay consumed once any pair succeeds.
type Unit struct {
	Date       string
	Strategy   Strategy
	Confidence Confidence
	Folder     string
	Pairs      []Pair
	Overlays   []File
}

func (u *Unit) IsFolder() bool {
	return u.Folder != ""
}

type DateReport struct {
	Date     string
	Strategy Strategy
	Media    int
	Overlays int
	Units    int
	Unpaired int
}

// Plan is the planner's output: fusion units in deterministic order plus a
// per date report.
type Plan struct {
	Units []Unit
	Dates []DateReport
}

type StrategyStats struct {
	Attempted atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
}

func (s *StrategyStats) SuccessRate() float64 {
	attempted := s.Attempted.Load()
	if attempted == 0 {
		return 0
	}
	return float64(s.Succeeded.Load()) / float64(attempted) * 100
}

type Stats struct {
	Simple    StrategyStats
	Multipart StrategyStats
	Grouped   StrategyStats

	Copied            atomic.Int64
	CopyFailed        atomic.Int64
	SkippedOverlays   atomic.Int64
	SkippedThumbnails atomic.Int64
}

func (s *Stats) For(strategy Strategy) *StrategyStats {
	switch strategy {
	case StrategyMultipart:
		return &s.Multipart
	case StrategyGrouped:
		return &s.Grouped
	}
	return &s.Simple
}

// Result is what the pool contains after fusion.
type Result struct {
	Consumed map[string]struct{}
	Stats    *Stats
}

func (r *Result) IsConsumed(name string) bool {
	_, ok := r.Consumed[name]
	return ok
}
