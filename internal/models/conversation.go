package models

type ConversationType string

const (
	ConversationIndividual ConversationType = "individual"
	ConversationGroup      ConversationType = "group"
)

type FriendStatus string

const (
	FriendActive   FriendStatus = "active"
	FriendDeleted  FriendStatus = "deleted"
	FriendNotFound FriendStatus = "not_found"
)

// UnknownOwner is used when no message was sent by the account owner.
const UnknownOwner = "unknown"

// Friend is one roster entry of friends.json.
type Friend struct {
	Username              string `json:"Username"`
	DisplayName           string `json:"Display Name"`
	CreationTimestamp     string `json:"Creation Timestamp"`
	LastModifiedTimestamp string `json:"Last Modified Timestamp"`
	Source                string `json:"Source"`

	Status  FriendStatus `json:"-"`
	Section string       `json:"-"`
}

type Participant struct {
	Username              string       `json:"username"`
	DisplayName           string       `json:"display_name"`
	CreationTimestamp     string       `json:"creation_timestamp"`
	LastModifiedTimestamp string       `json:"last_modified_timestamp"`
	Source                string       `json:"source"`
	FriendStatus          FriendStatus `json:"friend_status"`
	FriendListSection     string       `json:"friend_list_section"`
	IsOwner               bool         `json:"is_owner"`
}

type DateRange struct {
	FirstMessage string `json:"first_message"`
	LastMessage  string `json:"last_message"`
}

// Metadata is the full description of a conversation.
type Metadata struct {
	ConversationType ConversationType `json:"conversation_type"`
	ConversationID   string           `json:"conversation_id"`
	TotalMessages    int              `json:"total_messages"`
	SnapCount        int              `json:"snap_count"`
	ChatCount        int              `json:"chat_count"`
	Participants     []Participant    `json:"participants"`
	ParticipantCount int              `json:"participant_count"`
	AccountOwner     string           `json:"account_owner"`
	DateRange        DateRange        `json:"date_range"`
	GroupName        string           `json:"group_name,omitempty"`
	IndexCreated     string           `json:"index_created"`
}

// Conversation is an ordered merge of the chat and snap streams for one id.
type Conversation struct {
	ID       string
	Order    int
	Type     ConversationType
	Title    string
	Messages []Message
	Metadata Metadata
}

func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationGroup
}
