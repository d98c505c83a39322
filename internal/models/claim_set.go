package models

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// ClaimSet records which arena assets have been attached to a message.
// TryClaim is an atomic test-and-set, so an asset is claimed at most once
// no matter how many mapping workers race for it.
type ClaimSet struct {
	mu     sync.Mutex
	bitmap *roaring.Bitmap
}

func NewClaimSet() *ClaimSet {
	return &ClaimSet{bitmap: roaring.New()}
}

func (c *ClaimSet) TryClaim(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitmap.CheckedAdd(id)
}

func (c *ClaimSet) IsClaimed(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitmap.Contains(id)
}

func (c *ClaimSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.bitmap.GetCardinality())
}

// Unclaimed returns the ids in [0, n) not yet claimed, ascending.
func (c *ClaimSet) Unclaimed(n int) []uint32 {
	if n <= 0 {
		return nil
	}
	all := roaring.New()
	all.AddRange(0, uint64(n))
	c.mu.Lock()
	all.AndNot(c.bitmap)
	c.mu.Unlock()
	return all.ToArray()
}
