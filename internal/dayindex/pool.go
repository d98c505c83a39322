package dayindex

import (
	"path/filepath"

	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/persistence"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

// Pool is the flat, optionally content-addressed media directory of the output.
type Pool struct {
	dir     string
	digest  bool
	hasher  media.HasherInterface
	metrics providers.MetricsProviderInterface
	group   singleflight.Group

	copied  atomic.Int64
	deduped atomic.Int64
}

func NewPool(dir, naming string, hasher media.HasherInterface, metrics providers.MetricsProviderInterface) *Pool {
	return &Pool{
		dir:     dir,
		digest:  naming != structures.PoolNamingName,
		hasher:  hasher,
		metrics: metrics,
	}
}

// WebPath is the output-relative path of a pool entry.
func WebPath(name string) string {
	return PoolDir + "/" + name
}

// Insert places src in the pool and returns its web path. Inserting the same
// content (or, with name naming, the same name) twice copies it once.
func (p *Pool) Insert(src string) (string, error) {
	name := filepath.Base(src)
	if p.digest {
		sum, err := p.hasher.Digest(src)
		if err != nil {
			return "", err
		}
		name = sum + media.Ext(src)
	}
	dest := filepath.Join(p.dir, name)

	// callers sharing another caller's result did not copy
	copied := false
	_, err, _ := p.group.Do(name, func() (interface{}, error) {
		if persistence.Exists(dest) {
			return nil, nil
		}
		if err := persistence.CopyFile(src, dest); err != nil {
			return nil, err
		}
		copied = true
		return nil, nil
	})
	if err != nil {
		return "", err
	}

	deduplicated := !copied
	if deduplicated {
		p.deduped.Inc()
	} else {
		p.copied.Inc()
	}
	p.metrics.IncPoolInsert(deduplicated)
	return WebPath(name), nil
}

func (p *Pool) Copied() int64 {
	return p.copied.Load()
}

func (p *Pool) Deduplicated() int64 {
	return p.deduped.Load()
}
