package models

import (
	"sort"
	"sync"
)

type Method string

const (
	MethodIdentifier      Method = "by-identifier"
	MethodTimestamp       Method = "by-timestamp"
	MethodDateCorrelation Method = "by-date-correlation"
)

// Resolution attaches one pool asset to a message.
type Resolution struct {
	AssetID       uint32  `json:"asset_id"`
	Location      string  `json:"location"`
	Folder        bool    `json:"folder"`
	Method        Method  `json:"method"`
	OffsetSeconds float64 `json:"offset_seconds,omitempty"`
}

type MessageKey struct {
	ConversationID string
	Index          int
}

// Mapping is the message -> resolutions table shared by the mapping passes.
type Mapping struct {
	mu      sync.RWMutex
	entries map[MessageKey][]Resolution
}

func NewMapping() *Mapping {
	return &Mapping{entries: make(map[MessageKey][]Resolution)}
}

func (m *Mapping) Add(key MessageKey, r Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append(m.entries[key], r)
}

func (m *Mapping) Get(key MessageKey) []Resolution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[key]
}

func (m *Mapping) Has(key MessageKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[key]) > 0
}

func (m *Mapping) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rs := range m.entries {
		n += len(rs)
	}
	return n
}

// Keys returns every mapped message in (conversation, index) order.
func (m *Mapping) Keys() []MessageKey {
	m.mu.RLock()
	keys := make([]MessageKey, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ConversationID != keys[j].ConversationID {
			return keys[i].ConversationID < keys[j].ConversationID
		}
		return keys[i].Index < keys[j].Index
	})
	return keys
}

// CountByMethod tallies resolutions per method.
func (m *Mapping) CountByMethod() map[Method]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Method]int)
	for _, rs := range m.entries {
		for _, r := range rs {
			out[r.Method]++
		}
	}
	return out
}
