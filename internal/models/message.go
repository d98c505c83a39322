package models

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type Kind string

const (
	KindChat Kind = "chat"
	KindSnap Kind = "snap"
)

// CreatedTextLayout is the export's human readable timestamp, e.g. "2024-08-27 17:43:46 UTC".
const CreatedTextLayout = "2006-01-02 15:04:05"

// Millis is the export's "Created(microseconds)" value, which actually holds
// milliseconds. It accepts a JSON number, a numeric string or null.
type Millis struct {
	Value int64
	Valid bool
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = Millis{}
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			*m = Millis{}
			return nil
		}
		raw = strings.TrimSpace(unquoted)
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*m = Millis{Value: v, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*m = Millis{Value: int64(f), Valid: true}
		return nil
	}
	// unparseable values are treated as absent, never as a decode failure
	*m = Millis{}
	return nil
}

func (m Millis) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(m.Value, 10)), nil
}

// RawMessage is one record of chat_history.json or snap_history.json.
type RawMessage struct {
	From              string  `json:"From"`
	MediaType         string  `json:"Media Type"`
	Created           string  `json:"Created"`
	Content           *string `json:"Content"`
	ConversationTitle *string `json:"Conversation Title"`
	IsSender          bool    `json:"IsSender"`
	CreatedMillis     Millis  `json:"Created(microseconds)"`
	IsSaved           bool    `json:"IsSaved"`
	MediaIDs          string  `json:"Media IDs"`
}

// Message is a normalized chat or snap record. Index is fixed only after the
// owning conversation has been merged and sorted.
type Message struct {
	ConversationID    string   `json:"conversation_id"`
	Index             int      `json:"index"`
	Sender            string   `json:"from"`
	CreatedMs         int64    `json:"t_ms"`
	CreatedText       string   `json:"created,omitempty"`
	Kind              Kind     `json:"kind"`
	MediaIDs          []string `json:"media_ids,omitempty"`
	Content           *string  `json:"text"`
	Saved             bool     `json:"saved"`
	MediaType         string   `json:"media_type,omitempty"`
	ConversationTitle string   `json:"conversation_title,omitempty"`
	IsSender          bool     `json:"is_sender"`
	TimestampFallback bool     `json:"timestamp_fallback,omitempty"`
}

// NewMessage normalizes a raw record. now supplies the fallback timestamp when
// neither the canonical value nor the Created string can be used.
func NewMessage(conversationID string, kind Kind, raw RawMessage, now func() time.Time) Message {
	msg := Message{
		ConversationID: conversationID,
		Sender:         raw.From,
		CreatedText:    raw.Created,
		Kind:           kind,
		MediaIDs:       SplitMediaIDs(raw.MediaIDs),
		Content:        raw.Content,
		Saved:          raw.IsSaved,
		MediaType:      raw.MediaType,
		IsSender:       raw.IsSender,
	}
	if raw.ConversationTitle != nil {
		msg.ConversationTitle = strings.TrimSpace(*raw.ConversationTitle)
	}

	switch {
	case raw.CreatedMillis.Valid:
		msg.CreatedMs = raw.CreatedMillis.Value
	default:
		if ms, ok := ParseCreatedText(raw.Created); ok {
			msg.CreatedMs = ms
		} else {
			msg.CreatedMs = now().UnixMilli()
			msg.TimestampFallback = true
		}
	}
	return msg
}

// SplitMediaIDs splits the pipe delimited "Media IDs" field.
func SplitMediaIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// ParseCreatedText parses "YYYY-MM-DD HH:MM:SS[ UTC]" into unix milliseconds.
func ParseCreatedText(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " UTC")
	if s == "" {
		return 0, false
	}
	t, err := time.ParseInLocation(CreatedTextLayout, s, time.UTC)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// EventID is the stable identifier of a message in the day index.
func (m Message) EventID() string {
	return "c:" + m.ConversationID + ":" + strconv.Itoa(m.Index)
}

// Day returns the UTC calendar date of the canonical timestamp.
func (m Message) Day() string {
	return DayOf(m.CreatedMs)
}

func DayOf(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.DateOnly)
}

func ISOOf(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

var _ json.Unmarshaler = (*Millis)(nil)
