package models

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimSet_TryClaimOnce(t *testing.T) {
	c := NewClaimSet()
	assert.True(t, c.TryClaim(3))
	assert.False(t, c.TryClaim(3))
	assert.True(t, c.IsClaimed(3))
	assert.False(t, c.IsClaimed(4))
	assert.Equal(t, 1, c.Len())
}

func TestClaimSet_Unclaimed(t *testing.T) {
	c := NewClaimSet()
	c.TryClaim(0)
	c.TryClaim(2)
	assert.Equal(t, []uint32{1, 3, 4}, c.Unclaimed(5))
	assert.Nil(t, c.Unclaimed(0))
}

func TestClaimSet_ConcurrentClaimsWinOnce(t *testing.T) {
	c := NewClaimSet()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryClaim(7) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
