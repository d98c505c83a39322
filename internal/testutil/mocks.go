package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Kvilt1/merger-simple/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (e LogEntry) Message() string {
	return fmt.Sprintf(e.Format, e.Args...)
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level whose message contains substr.
func (m *MockLogger) Count(level, substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level && strings.Contains(e.Message(), substr) {
			n++
		}
	}
	return n
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
	Hits int
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	if ok {
		m.Hits++
	}
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements the persistence CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {
	m.Closed = true
}

// MockMetrics implements providers.MetricsProviderInterface.
type MockMetrics struct {
	mu          sync.Mutex
	Fuses       map[string]int
	Resolutions map[string]int
	Orphans     int
	Copied      int
	Deduped     int
	CacheHits   int
	CacheMisses int
	Stages      []string
	Flushed     int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Fuses: make(map[string]int), Resolutions: make(map[string]int)}
}

func (m *MockMetrics) IncFuse(strategy string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := "failed"
	if ok {
		result = "ok"
	}
	m.Fuses[strategy+":"+result]++
}

func (m *MockMetrics) IncResolution(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resolutions[method]++
}

func (m *MockMetrics) SetOrphans(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orphans = count
}

func (m *MockMetrics) IncPoolInsert(deduplicated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if deduplicated {
		m.Deduped++
	} else {
		m.Copied++
	}
}

func (m *MockMetrics) IncCacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.CacheHits++
	} else {
		m.CacheMisses++
	}
}

func (m *MockMetrics) ObserveStage(stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stages = append(m.Stages, stage)
}

func (m *MockMetrics) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushed++
	return nil
}

// FuseCall is one recorded MockFuser invocation.
type FuseCall struct {
	Base    string
	Overlay string
	Output  string
}

// MockFuser implements the overlay FuserInterface. By default it concatenates
// base and overlay bytes into output; names listed in Fail make it fail.
type MockFuser struct {
	mu          sync.Mutex
	Unavailable bool
	Fail        map[string]bool
	Calls       []FuseCall
}

func (m *MockFuser) Available() bool {
	return !m.Unavailable
}

func (m *MockFuser) Fuse(ctx context.Context, base, overlay, output string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, FuseCall{Base: base, Overlay: overlay, Output: output})
	fail := m.Fail[filepath.Base(base)]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if fail {
		return fmt.Errorf("fuse %s: simulated failure", filepath.Base(base))
	}
	b, err := os.ReadFile(base)
	if err != nil {
		return err
	}
	o, err := os.ReadFile(overlay)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append(b, o...), 0644)
}

func (m *MockFuser) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Outputs returns the base names of every output written, in call order.
func (m *MockFuser) Outputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, filepath.Base(c.Output))
	}
	return out
}
