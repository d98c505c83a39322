package media

import (
	"encoding/binary"
	"io"
	"math"
	"os"
)

// quickTimeEpochOffset is the number of seconds between 1904-01-01 and 1970-01-01.
const quickTimeEpochOffset = 2082844800

const atomHeaderSize = 8

// ExtractCreationTime reads the mvhd creation time of an mp4/QuickTime file
// and returns it in unix milliseconds. Any read or format problem yields false.
func ExtractCreationTime(path string) (int64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()
	return ReadCreationTime(f)
}

// ReadCreationTime walks top level atoms until moov and decodes its leading mvhd.
func ReadCreationTime(r io.ReadSeeker) (int64, bool) {
	header := make([]byte, atomHeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return 0, false
		}
		size := uint64(binary.BigEndian.Uint32(header[0:4]))
		atom := string(header[4:8])

		if atom == "moov" {
			return readMvhd(r)
		}

		var skip int64
		switch {
		case size == 1:
			ext := make([]byte, 8)
			if _, err := io.ReadFull(r, ext); err != nil {
				return 0, false
			}
			size = binary.BigEndian.Uint64(ext)
			if size < 16 {
				return 0, false
			}
			skip = int64(size - 16)
		case size == 0:
			// atom runs to end of file
			return 0, false
		case size < atomHeaderSize:
			return 0, false
		default:
			skip = int64(size - atomHeaderSize)
		}
		if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
			return 0, false
		}
	}
}

func readMvhd(r io.Reader) (int64, bool) {
	header := make([]byte, atomHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, false
	}
	if string(header[4:8]) != "mvhd" {
		return 0, false
	}

	versionFlags := make([]byte, 4)
	if _, err := io.ReadFull(r, versionFlags); err != nil {
		return 0, false
	}

	var creation uint64
	if versionFlags[0] == 0 {
		buf := make([]byte, 4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, false
		}
		creation = uint64(binary.BigEndian.Uint32(buf))
	} else {
		buf := make([]byte, 8)
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, false
		}
		creation = binary.BigEndian.Uint64(buf)
	}

	if creation <= quickTimeEpochOffset {
		return 0, false
	}
	seconds := creation - quickTimeEpochOffset
	// must survive the conversion to milliseconds
	if seconds > math.MaxInt64/1000 {
		return 0, false
	}
	return int64(seconds) * 1000, true
}
