package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/Kvilt1/merger-simple/internal/providers"
)

type Stats struct {
	Files      int
	Folders    int
	WithID     int
	WithoutID  int
	Duplicates int
}

// Index is the arena of pool assets plus the identifier lookup table.
type Index struct {
	Assets []*models.MediaAsset
	byID   map[string]uint32
	Stats  Stats
}

func newIndex() *Index {
	return &Index{byID: make(map[string]uint32)}
}

func (ix *Index) Lookup(id string) (*models.MediaAsset, bool) {
	n, ok := ix.byID[id]
	if !ok {
		return nil, false
	}
	return ix.Assets[n], true
}

func (ix *Index) Asset(id uint32) *models.MediaAsset {
	return ix.Assets[id]
}

func (ix *Index) Len() int {
	return len(ix.Assets)
}

func (ix *Index) IDCount() int {
	return len(ix.byID)
}

func (ix *Index) add(asset *models.MediaAsset) {
	asset.ID = uint32(len(ix.Assets))
	ix.Assets = append(ix.Assets, asset)
}

// bind registers id for asset unless an earlier asset already holds it.
func (ix *Index) bind(id string, asset *models.MediaAsset) bool {
	if existing, taken := ix.byID[id]; taken {
		return existing == asset.ID
	}
	ix.byID[id] = asset.ID
	return true
}

type Indexer struct {
	logger providers.Logger
}

func NewIndexer(logger providers.Logger) *Indexer {
	return &Indexer{logger: logger}
}

// Build scans poolDir in lexical order. A missing pool yields an empty index.
func (i *Indexer) Build(poolDir string) (*Index, error) {
	ix := newIndex()

	entries, err := os.ReadDir(poolDir)
	if err != nil {
		if os.IsNotExist(err) {
			i.logger.Warnf(providers.TypeIndex, "Media pool %s does not exist, index is empty", poolDir)
			return ix, nil
		}
		return nil, fmt.Errorf("read pool: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(poolDir, name)

		if entry.IsDir() {
			if !media.IsFusedFolder(name) {
				i.logger.Debugf(providers.TypeIndex, "Skipping unknown directory %s", name)
				continue
			}
			if err := i.indexFolder(ix, name, path); err != nil {
				i.logger.Warnf(providers.TypeIndex, "Cannot index folder %s: %v", name, err)
			}
			continue
		}

		asset := &models.MediaAsset{Name: name, Path: path, Kind: models.AssetSingle}
		ix.add(asset)
		ix.Stats.Files++

		id, ok := media.ExtractID(name)
		if !ok {
			ix.Stats.WithoutID++
			continue
		}
		ix.Stats.WithID++
		if !ix.bind(id, asset) {
			ix.Stats.Duplicates++
			i.logger.Debugf(providers.TypeIndex, "Duplicate media id %s in %s, keeping first", id, name)
		}
	}

	i.logger.Infof(providers.TypeIndex, "Indexed %d assets (%d files, %d folders), %d ids",
		ix.Len(), ix.Stats.Files, ix.Stats.Folders, ix.IDCount())
	if total := ix.Stats.WithID + ix.Stats.WithoutID; total > 0 {
		i.logger.Infof(providers.TypeIndex, "Id extraction: [%d]/[%d] (%.1f%%)",
			ix.Stats.WithID, total, float64(ix.Stats.WithID)/float64(total)*100)
	}
	return ix, nil
}

func (i *Indexer) indexFolder(ix *Index, name, path string) error {
	children, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	manifest, err := media.ReadManifest(path)
	if err != nil {
		i.logger.Warnf(providers.TypeIndex, "Unreadable manifest in %s: %v", name, err)
		manifest = map[string]int64{}
	}

	var members []string
	for _, c := range children {
		if c.IsDir() || c.Name() == models.ManifestName {
			continue
		}
		if media.IsVideo(c.Name()) || media.IsImage(c.Name()) {
			members = append(members, c.Name())
		}
	}
	sort.Strings(members)

	asset := &models.MediaAsset{
		Name:     name,
		Path:     path,
		Kind:     models.AssetFolder,
		Members:  members,
		Manifest: manifest,
	}
	ix.add(asset)
	ix.Stats.Folders++

	for _, m := range members {
		id, ok := media.ExtractID(m)
		if !ok {
			ix.Stats.WithoutID++
			continue
		}
		ix.Stats.WithID++
		if !ix.bind(id, asset) {
			ix.Stats.Duplicates++
			i.logger.Debugf(providers.TypeIndex, "Duplicate media id %s in %s/%s, keeping first", id, name, m)
		}
	}
	return nil
}
