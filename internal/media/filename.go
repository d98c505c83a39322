package media

import (
	"path/filepath"
	"regexp"
	"strings"
)

type Role int

const (
	RoleOther Role = iota
	RoleMedia
	RoleOverlay
)

const (
	TypeImage = "IMAGE"
	TypeVideo = "VIDEO"
)

const (
	mediaMarker   = "_media~"
	overlayMarker = "_overlay~"
	zipStubMarker = "media~zip-"

	MultipartSuffix = "_multipart"
	GroupedSuffix   = "_grouped"
)

var (
	datePrefixRx = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	bIDRx        = regexp.MustCompile(`(?i)b~([^.]+)`)
	zipIDRx      = regexp.MustCompile(`(?i)media~zip-([A-F0-9\-]+)`)
	roleIDRx     = regexp.MustCompile(`(?i)(media|overlay)~([A-F0-9\-]+)`)
)

var (
	imageExts = map[string]struct{}{".jpeg": {}, ".jpg": {}, ".png": {}, ".webp": {}}
	videoExts = map[string]struct{}{".mp4": {}, ".mov": {}}
)

// DatePrefix returns the leading YYYY-MM-DD of a file name.
func DatePrefix(name string) (string, bool) {
	m := datePrefixRx.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func IsThumbnail(name string) bool {
	return strings.Contains(strings.ToLower(name), "thumbnail")
}

func IsZipStub(name string) bool {
	return strings.Contains(name, zipStubMarker)
}

func IsOverlay(name string) bool {
	return strings.Contains(name, overlayMarker)
}

// RoleOf classifies a raw export file for overlay grouping.
func RoleOf(name string) Role {
	if IsThumbnail(name) || IsZipStub(name) {
		return RoleOther
	}
	switch {
	case strings.Contains(name, mediaMarker):
		return RoleMedia
	case strings.Contains(name, overlayMarker):
		return RoleOverlay
	}
	return RoleOther
}

// ExtractID returns the media identifier embedded in a file name, in the
// form message records reference it: b~<id>, media~zip-<HEX> or
// media|overlay~<HEX>, tried in that order.
func ExtractID(name string) (string, bool) {
	if IsThumbnail(name) {
		return "", false
	}
	if m := bIDRx.FindStringSubmatch(name); m != nil {
		return "b~" + m[1], true
	}
	if m := zipIDRx.FindStringSubmatch(name); m != nil {
		return "media~zip-" + m[1], true
	}
	if m := roleIDRx.FindStringSubmatch(name); m != nil {
		return m[1] + "~" + m[2], true
	}
	return "", false
}

func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

func IsVideo(name string) bool {
	_, ok := videoExts[Ext(name)]
	return ok
}

func IsImage(name string) bool {
	_, ok := imageExts[Ext(name)]
	return ok
}

// TypeOf maps an extension onto the export's "Media Type" vocabulary.
func TypeOf(name string) string {
	switch {
	case IsImage(name):
		return TypeImage
	case IsVideo(name):
		return TypeVideo
	}
	return ""
}

func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IsFusedFolder reports whether a pool directory holds fused members.
func IsFusedFolder(name string) bool {
	return strings.HasSuffix(name, MultipartSuffix) || strings.HasSuffix(name, GroupedSuffix)
}
