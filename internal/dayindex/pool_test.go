package dayindex

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"github.com/Kvilt1/merger-simple/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_InsertIsIdempotent(t *testing.T) {
	src := filepath.Join(t.TempDir(), "2024-08-27_b~X.JPG")
	testutil.WriteFile(t, src, []byte("content"))
	dir := filepath.Join(t.TempDir(), "m")
	metrics := testutil.NewMockMetrics()
	p := NewPool(dir, structures.PoolNamingDigest, media.NewHasher(testutil.NewMockCache()), metrics)

	first, err := p.Insert(src)
	require.NoError(t, err)
	second, err := p.Insert(src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Regexp(t, `^m/[0-9a-f]{64}\.jpg$`, first)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(1), p.Copied())
	assert.Equal(t, int64(1), p.Deduplicated())
	assert.Equal(t, 1, metrics.Copied)
}

func TestPool_ConcurrentInsertsCopyOnce(t *testing.T) {
	srcDir := t.TempDir()
	var sources []string
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		path := filepath.Join(srcDir, name)
		testutil.WriteFile(t, path, []byte("identical"))
		sources = append(sources, path)
	}
	p := NewPool(filepath.Join(t.TempDir(), "m"), structures.PoolNamingDigest, media.NewHasher(testutil.NewMockCache()), testutil.NewMockMetrics())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			_, err := p.Insert(src)
			assert.NoError(t, err)
		}(sources[i%len(sources)])
	}
	wg.Wait()

	assert.Equal(t, int64(1), p.Copied())
	assert.Equal(t, int64(15), p.Deduplicated())
}

func TestPool_NameNaming(t *testing.T) {
	src := filepath.Join(t.TempDir(), "2024-08-27_b~X.jpg")
	testutil.WriteFile(t, src, []byte("content"))
	p := NewPool(filepath.Join(t.TempDir(), "m"), structures.PoolNamingName, media.NewHasher(testutil.NewMockCache()), testutil.NewMockMetrics())

	web, err := p.Insert(src)
	require.NoError(t, err)
	assert.Equal(t, "m/2024-08-27_b~X.jpg", web)
}

func TestPool_MissingSource(t *testing.T) {
	p := NewPool(filepath.Join(t.TempDir(), "m"), structures.PoolNamingName, media.NewHasher(testutil.NewMockCache()), testutil.NewMockMetrics())
	_, err := p.Insert(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
	assert.Equal(t, int64(0), p.Copied())
}
