package media

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kvilt1/merger-simple/internal/testutil"
	"github.com/stretchr/testify/assert"
)

var captured = time.Date(2024, 8, 27, 17, 43, 46, 0, time.UTC)

func TestReadCreationTime_Version0(t *testing.T) {
	ms, ok := ReadCreationTime(bytes.NewReader(testutil.MP4(captured, 0, "x")))
	assert.True(t, ok)
	assert.Equal(t, captured.UnixMilli(), ms)
}

func TestReadCreationTime_Version1(t *testing.T) {
	ms, ok := ReadCreationTime(bytes.NewReader(testutil.MP4(captured, 1, "")))
	assert.True(t, ok)
	assert.Equal(t, captured.UnixMilli(), ms)
}

func TestReadCreationTime_ExtendedSizeAtom(t *testing.T) {
	payload := []byte("padding-bytes")
	var data []byte
	data = binary.BigEndian.AppendUint32(data, 1)
	data = append(data, "mdat"...)
	data = binary.BigEndian.AppendUint64(data, uint64(16+len(payload)))
	data = append(data, payload...)
	// drop the ftyp/free prefix of the fixture and keep its moov
	full := testutil.MP4(captured, 0, "")
	moov := full[bytes.Index(full, []byte("moov"))-4:]
	data = append(data, moov...)

	ms, ok := ReadCreationTime(bytes.NewReader(data))
	assert.True(t, ok)
	assert.Equal(t, captured.UnixMilli(), ms)
}

func TestReadCreationTime_BeforeEpoch(t *testing.T) {
	_, ok := ReadCreationTime(bytes.NewReader(testutil.MP4(time.Unix(0, 0), 0, "")))
	assert.False(t, ok)
}

func TestReadCreationTime_Version1Overflow(t *testing.T) {
	mvhd := []byte{1, 0, 0, 0}
	mvhd = binary.BigEndian.AppendUint64(mvhd, 1<<63+5)
	var data []byte
	data = binary.BigEndian.AppendUint32(data, uint32(2*atomHeaderSize+len(mvhd)))
	data = append(data, "moov"...)
	data = binary.BigEndian.AppendUint32(data, uint32(atomHeaderSize+len(mvhd)))
	data = append(data, "mvhd"...)
	data = append(data, mvhd...)

	ms, ok := ReadCreationTime(bytes.NewReader(data))
	assert.False(t, ok)
	assert.Zero(t, ms)

	// largest value whose millisecond form still fits
	mvhd = binary.BigEndian.AppendUint64([]byte{1, 0, 0, 0}, math.MaxInt64/1000+quickTimeEpochOffset)
	data = data[:2*atomHeaderSize]
	data = append(data, mvhd...)
	ms, ok = ReadCreationTime(bytes.NewReader(data))
	assert.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64/1000)*1000, ms)
}

func TestReadCreationTime_Garbage(t *testing.T) {
	_, ok := ReadCreationTime(bytes.NewReader([]byte("definitely not an mp4 file")))
	assert.False(t, ok)

	_, ok = ReadCreationTime(bytes.NewReader(nil))
	assert.False(t, ok)
}

func TestReadCreationTime_ZeroSizeAtom(t *testing.T) {
	data := binary.BigEndian.AppendUint32(nil, 0)
	data = append(data, "mdat"...)
	_, ok := ReadCreationTime(bytes.NewReader(data))
	assert.False(t, ok)
}

func TestExtractCreationTime_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024-08-27_media~AB.mp4")
	testutil.WriteMP4(t, path, captured)

	ms, ok := ExtractCreationTime(path)
	assert.True(t, ok)
	assert.Equal(t, captured.UnixMilli(), ms)

	_, ok = ExtractCreationTime(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.False(t, ok)
}
