package models

// ExpectedEvent is what the day index builder promised to write for one message.
// PoolFailures names mapped files that could not be copied into the pool.
type ExpectedEvent struct {
	Conversation       string   `json:"conv"`
	Day                string   `json:"day"`
	TMs                int64    `json:"t_ms"`
	TISO               string   `json:"t_iso"`
	From               string   `json:"from"`
	Kind               Kind     `json:"kind"`
	MediaType          string   `json:"media_type"`
	Text               *string  `json:"text"`
	Saved              bool     `json:"saved"`
	MediaPaths         []string `json:"media_paths"`
	HadCreatedString   bool     `json:"had_created_string"`
	CreatedStringDelta int64    `json:"created_str_delta_ms"`
	TimestampFallback  bool     `json:"timestamp_fallback"`
	PoolFailures       []string `json:"pool_failures,omitempty"`
}

// Trace is the expectation trace recorded while building and re-checked by the validator.
type Trace struct {
	RunID         string                   `json:"run_id"`
	Events        map[string]ExpectedEvent `json:"events"`
	Conversations []string                 `json:"conversations"`
	Days          []string                 `json:"days"`
	Media         []string                 `json:"media"`
	Orphans       []string                 `json:"orphans"`
}
