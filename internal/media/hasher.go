package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Kvilt1/merger-simple/internal/providers"
)

type HasherInterface interface {
	Digest(path string) (string, error)
}

// Hasher computes hex sha256 content digests, memoised by file identity.
type Hasher struct {
	cache providers.CacheProviderInterface
}

func NewHasher(cache providers.CacheProviderInterface) HasherInterface {
	return &Hasher{cache: cache}
}

func (h *Hasher) Digest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	key := cacheKey(path, info)
	if v, ok := h.cache.Get(key); ok {
		return string(v), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	digest := hex.EncodeToString(sum.Sum(nil))
	h.cache.Set(key, []byte(digest))
	return digest, nil
}

func cacheKey(path string, info os.FileInfo) string {
	return path + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
}
