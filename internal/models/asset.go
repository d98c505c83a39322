package models

import (
	"slices"
	"sync"
)

type AssetKind string

const (
	AssetSingle AssetKind = "single"
	AssetFolder AssetKind = "folder"
)

// ManifestName is the per-folder capture time manifest written next to fused members.
const ManifestName = "timestamps.json"

// MediaAsset is one entry of the working pool: a single file or a folder of
// fused members. ID is its position in the indexer's arena.
type MediaAsset struct {
	ID       uint32
	Name     string
	Path     string
	Kind     AssetKind
	Members  []string
	Manifest map[string]int64

	once       sync.Once
	capturedAt int64
}

// CapturedAt returns the memoised capture time in unix ms, 0 when unknown.
// For folders it is the earliest manifest entry; for files extract is called once.
func (a *MediaAsset) CapturedAt(extract func(path string) (int64, bool)) int64 {
	a.once.Do(func() {
		if a.Kind == AssetFolder {
			a.capturedAt = a.earliestManifest()
			return
		}
		if extract == nil {
			return
		}
		if ms, ok := extract(a.Path); ok {
			a.capturedAt = ms
		}
	})
	return a.capturedAt
}

func (a *MediaAsset) earliestManifest() int64 {
	var earliest int64
	for _, ms := range a.Manifest {
		if ms > 0 && (earliest == 0 || ms < earliest) {
			earliest = ms
		}
	}
	return earliest
}

// Location is the pool-relative name a resolution points at.
func (a *MediaAsset) Location() string {
	return a.Name
}

// SortedMembers returns folder members in name order, manifest excluded.
func (a *MediaAsset) SortedMembers() []string {
	out := make([]string, 0, len(a.Members))
	for _, m := range a.Members {
		if m != ManifestName {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return out
}
