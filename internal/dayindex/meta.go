package dayindex

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Kvilt1/merger-simple/internal/models"
)

var slugRx = regexp.MustCompile(`[\\/*?:"<>|]`)

const maxSlugLen = 120

// Slugify makes a conversation id safe to use as a directory name.
func Slugify(name string) string {
	s := slugRx.ReplaceAllString(name, "")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "unknown"
	}
	return s
}

// Title prefers the group name, then up to three participant names, then
// two names plus a count of the rest.
func Title(meta models.Metadata) *string {
	if meta.GroupName != "" {
		title := meta.GroupName
		return &title
	}
	var parts []string
	for _, p := range meta.Participants {
		name := p.DisplayName
		if name == "" {
			name = p.Username
		}
		if name != "" {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	title := strings.Join(parts, ", ")
	if len(parts) > 3 {
		title = strings.Join(parts[:2], ", ") + " +" + strconv.Itoa(len(parts)-2)
	}
	return &title
}

func Slim(meta models.Metadata) SlimMeta {
	participants := make([]string, 0, len(meta.Participants))
	for _, p := range meta.Participants {
		u := p.Username
		if u == "" {
			u = p.DisplayName
		}
		if u != "" {
			participants = append(participants, u)
		}
	}
	return SlimMeta{
		ID:           meta.ConversationID,
		Type:         meta.ConversationType,
		Title:        Title(meta),
		Participants: participants,
	}
}

func titleOf(s SlimMeta) string {
	if s.Title == nil {
		return ""
	}
	return *s.Title
}
