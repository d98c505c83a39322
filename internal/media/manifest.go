package media

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/Kvilt1/merger-simple/internal/persistence"
)

// WriteManifest records member capture times as RFC 3339 UTC strings.
// Members without a capture time are left out.
func WriteManifest(dir string, captured map[string]int64, indent int) error {
	out := make(map[string]string, len(captured))
	for name, ms := range captured {
		if ms > 0 {
			out[name] = time.UnixMilli(ms).UTC().Format(time.RFC3339)
		}
	}
	return persistence.WriteJSON(filepath.Join(dir, models.ManifestName), out, indent)
}

// ReadManifest loads a folder manifest. A missing manifest is an empty one;
// entries that do not parse are skipped.
func ReadManifest(dir string) (map[string]int64, error) {
	var raw map[string]string
	err := persistence.ReadJSON(filepath.Join(dir, models.ManifestName), &raw)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int64{}, nil
		}
		return nil, err
	}

	out := make(map[string]int64, len(raw))
	for name, ts := range raw {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		out[name] = t.UnixMilli()
	}
	return out, nil
}
