package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kvilt1/merger-simple/internal/structures"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

const quickTimeEpochOffset = 2082844800

// MP4 returns a minimal mp4 byte stream: an ftyp atom, a free atom and a moov
// holding an mvhd of the given version. payload is appended inside free so
// files with equal timestamps can still differ in content.
func MP4(created time.Time, version byte, payload string) []byte {
	var out []byte

	ftyp := atom("ftyp", []byte("isom\x00\x00\x02\x00isomiso2"))
	out = append(out, ftyp...)
	out = append(out, atom("free", []byte(payload))...)

	ct := uint64(created.Unix() + quickTimeEpochOffset)
	var body []byte
	body = append(body, version, 0, 0, 0)
	if version == 0 {
		body = binary.BigEndian.AppendUint32(body, uint32(ct))
		body = binary.BigEndian.AppendUint32(body, uint32(ct))
		body = binary.BigEndian.AppendUint32(body, 1000)
		body = binary.BigEndian.AppendUint32(body, 0)
	} else {
		body = binary.BigEndian.AppendUint64(body, ct)
		body = binary.BigEndian.AppendUint64(body, ct)
		body = binary.BigEndian.AppendUint32(body, 1000)
		body = binary.BigEndian.AppendUint64(body, 0)
	}
	mvhd := atom("mvhd", body)
	out = append(out, atom("moov", mvhd)...)
	return out
}

func atom(kind string, body []byte) []byte {
	b := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	b = append(b, kind...)
	return append(b, body...)
}

// WriteMP4 writes an mp4 fixture whose mvhd creation time is created.
func WriteMP4(t testing.TB, path string, created time.Time) {
	t.Helper()
	WriteFile(t, path, MP4(created, 0, filepath.Base(path)))
}

func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func WriteJSON(t testing.TB, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	WriteFile(t, path, data)
}

func ReadJSON(t testing.TB, path string, v interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

// Config returns a fully populated config rooted at outDir, single worker so
// tests stay deterministic.
func Config(exportDir, outDir string) *structures.Config {
	return &structures.Config{
		AppName: "snapdays",
		Input:   structures.InputConfig{ExportDir: exportDir},
		Output: structures.OutputConfig{
			Dir:        outDir,
			WorkDir:    filepath.Join(outDir, ".work"),
			PoolNaming: structures.PoolNamingDigest,
			Pretty:     true,
			Indent:     2,
		},
		Matching: structures.MatchingConfig{
			Tolerance:       structures.DefaultMatchTolerance,
			ClusterGap:      structures.DefaultMatchTolerance,
			DateCorrelation: true,
		},
		Fusion: structures.FusionConfig{
			Enabled:    true,
			FFmpegPath: "ffmpeg",
			Timeout:    time.Minute,
			Workers:    1,
		},
		IO:         structures.IOConfig{Workers: 1},
		Validation: structures.ValidationConfig{Enabled: true},
		Logger:     structures.LoggerConfig{Level: "info", Mode: 0644},
		Cache:      structures.CacheConfig{Enabled: true, Size: 1},
	}
}
