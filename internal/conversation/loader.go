package conversation

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Kvilt1/merger-simple/internal/models"
	json "github.com/goccy/go-json"
)

var (
	ErrNoExport  = errors.New("no valid export found")
	ErrNoHistory = errors.New("no chat or snap history found")
)

const (
	jsonDirName  = "json"
	mediaDirName = "chat_media"

	chatHistoryFile = "chat_history.json"
	snapHistoryFile = "snap_history.json"
	friendsFile     = "friends.json"
)

// Export is a located raw export folder.
type Export struct {
	Root     string
	JSONDir  string
	MediaDir string
}

func isExport(dir string) bool {
	for _, sub := range []string{jsonDirName, mediaDirName} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// FindExport accepts either the export folder itself or a directory whose
// first export-shaped child (in name order) is used.
func FindExport(input string) (*Export, error) {
	root := ""
	if isExport(input) {
		root = input
	} else {
		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, fmt.Errorf("%w in %s: %v", ErrNoExport, input, err)
		}
		for _, e := range entries {
			if e.IsDir() && isExport(filepath.Join(input, e.Name())) {
				root = filepath.Join(input, e.Name())
				break
			}
		}
	}
	if root == "" {
		return nil, fmt.Errorf("%w in %s", ErrNoExport, input)
	}
	return &Export{
		Root:     root,
		JSONDir:  filepath.Join(root, jsonDirName),
		MediaDir: filepath.Join(root, mediaDirName),
	}, nil
}

// history is a conversation id -> records table that remembers key order.
type history struct {
	order   []string
	records map[string][]models.RawMessage
}

// decodeHistory streams the top level object so conversation order matches
// the file.
func decodeHistory(r io.Reader) (*history, error) {
	h := &history{records: make(map[string][]models.RawMessage)}
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return h, nil
		}
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected conversation id, got %v", tok)
		}
		var msgs []models.RawMessage
		if err := dec.Decode(&msgs); err != nil {
			return nil, fmt.Errorf("conversation %s: %w", key, err)
		}
		if _, seen := h.records[key]; !seen {
			h.order = append(h.order, key)
		}
		h.records[key] = append(h.records[key], msgs...)
	}
	return h, nil
}

func loadHistory(path string) (*history, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &history{records: map[string][]models.RawMessage{}}, nil
		}
		return nil, err
	}
	defer f.Close()

	h, err := decodeHistory(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return h, nil
}

type friendsDocument struct {
	Friends        []models.Friend `json:"Friends"`
	DeletedFriends []models.Friend `json:"Deleted Friends"`
}

// loadFriends builds the username roster. A deleted entry overrides an
// active one with the same username.
func loadFriends(path string) (map[string]models.Friend, error) {
	roster := make(map[string]models.Friend)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return roster, nil
		}
		return nil, err
	}

	var doc friendsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", friendsFile, err)
	}
	for _, f := range doc.Friends {
		f.Status = models.FriendActive
		f.Section = "Friends"
		roster[f.Username] = f
	}
	for _, f := range doc.DeletedFriends {
		f.Status = models.FriendDeleted
		f.Section = "Deleted Friends"
		roster[f.Username] = f
	}
	return roster, nil
}
