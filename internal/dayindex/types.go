package dayindex

import "github.com/Kvilt1/merger-simple/internal/models"

const (
	DaysDir          = "days"
	ConversationsDir = "conversations"
	OrphansDir       = "orphans"
	PoolDir          = "m"
	IndexFile        = "index.json"
	MetaFile         = "meta.json"
)

type MediaItem struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type Event struct {
	ID        string      `json:"id"`
	TMs       int64       `json:"t_ms"`
	TISO      string      `json:"t_iso"`
	From      string      `json:"from"`
	Kind      models.Kind `json:"kind"`
	MediaType string      `json:"media_type"`
	Text      *string     `json:"text"`
	Saved     bool        `json:"saved"`
	Media     []MediaItem `json:"media"`

	order int
	index int
}

// SlimMeta is the compact conversation header embedded in day files.
type SlimMeta struct {
	ID           string                  `json:"id"`
	Type         models.ConversationType `json:"type"`
	Title        *string                 `json:"title"`
	Participants []string                `json:"participants"`
}

// ConversationMeta is written to conversations/<slug>/meta.json.
type ConversationMeta struct {
	SlimMeta
	Metadata models.Metadata `json:"metadata"`
}

type GalleryItem struct {
	Event string `json:"event"`
	Path  string `json:"path"`
}

type DayStats struct {
	Events        int `json:"events"`
	Conversations int `json:"conversations"`
	Media         int `json:"media"`
}

type DayFile struct {
	Date          string        `json:"date"`
	Events        []Event       `json:"events"`
	Conversations []SlimMeta    `json:"conversations"`
	Gallery       []GalleryItem `json:"gallery"`
	Stats         DayStats      `json:"stats"`
}

type DaysIndex struct {
	Days []string `json:"days"`
}

type OrphanItem struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Date string `json:"date,omitempty"`
}

type OrphansIndex struct {
	Items []OrphanItem `json:"items"`
}

// Summary is what a build produced.
type Summary struct {
	Conversations int
	Days          int
	Events        int
	Media         int
	Orphans       int
	PoolCopied    int64
	PoolDeduped   int64
}
