package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/Kvilt1/merger-simple/internal/persistence/interfaces"
	"github.com/Kvilt1/merger-simple/internal/providers"
	json "github.com/goccy/go-json"
)

// TraceFileName lives at the root of the output tree so a later validate run
// can re-check the tree without rebuilding it.
const TraceFileName = ".trace.json.zst"

var ErrNoTrace = errors.New("no expectation trace found")

type TraceStoreInterface interface {
	Save(dir string, trace *models.Trace) error
	Load(dir string) (*models.Trace, error)
	Close()
}

type TraceStore struct {
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewTraceStore(compressor interfaces.CompressorInterface, logger providers.Logger) TraceStoreInterface {
	return &TraceStore{
		compressor: compressor,
		logger:     logger,
	}
}

func (t *TraceStore) Save(dir string, trace *models.Trace) error {
	jsonData, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	data, err := t.compressor.Compress(jsonData)
	if err != nil {
		return fmt.Errorf("compress trace: %w", err)
	}

	fileName := filepath.Join(dir, TraceFileName)
	if err := WriteFileAtomic(fileName, data); err != nil {
		return err
	}
	t.logger.Debugf(providers.TypeValidate, "Trace saved: %d events, %d bytes", len(trace.Events), len(data))
	return nil
}

func (t *TraceStore) Load(dir string) (*models.Trace, error) {
	data, err := os.ReadFile(filepath.Join(dir, TraceFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoTrace
		}
		return nil, err
	}

	decompressed, err := t.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress trace: %w", err)
	}

	var trace models.Trace
	if err := json.Unmarshal(decompressed, &trace); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	if trace.Events == nil {
		trace.Events = make(map[string]models.ExpectedEvent)
	}
	return &trace, nil
}

func (t *TraceStore) Close() {
	t.compressor.Close()
}

// WriteFileAtomic writes through a temp file in the same directory and renames
// it into place, so readers never observe a partial file.
func WriteFileAtomic(fileName string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

// WriteJSON encodes v and writes it atomically. indent 0 means compact.
func WriteJSON(fileName string, v interface{}, indent int) error {
	var (
		data []byte
		err  error
	)
	if indent > 0 {
		data, err = json.MarshalIndent(v, "", spaces(indent))
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(fileName), err)
	}
	data = append(data, '\n')
	return WriteFileAtomic(fileName, data)
}

// ReadJSON decodes fileName into v.
func ReadJSON(fileName string, v interface{}) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
