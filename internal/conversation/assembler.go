package conversation

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/Kvilt1/merger-simple/internal/providers"
)

// Dataset is every conversation of an export, in first-seen order.
type Dataset struct {
	Conversations []*models.Conversation
	Owner         string
	Friends       map[string]models.Friend
}

func (d *Dataset) MessageCount() int {
	n := 0
	for _, c := range d.Conversations {
		n += len(c.Messages)
	}
	return n
}

type Assembler struct {
	logger providers.Logger
	now    func() time.Time
}

func NewAssembler(logger providers.Logger) *Assembler {
	return &Assembler{logger: logger, now: time.Now}
}

func (a *Assembler) Load(exp *Export) (*Dataset, error) {
	chats, err := loadHistory(filepath.Join(exp.JSONDir, chatHistoryFile))
	if err != nil {
		return nil, err
	}
	snaps, err := loadHistory(filepath.Join(exp.JSONDir, snapHistoryFile))
	if err != nil {
		return nil, err
	}
	if len(chats.order) == 0 && len(snaps.order) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoHistory, exp.JSONDir)
	}
	friends, err := loadFriends(filepath.Join(exp.JSONDir, friendsFile))
	if err != nil {
		return nil, err
	}
	a.logger.Infof(providers.TypeAssemble, "Processed %d friends", len(friends))

	return a.assemble(chats, snaps, friends), nil
}

// assemble merges the chat stream then the snap stream per conversation,
// sorts each conversation stably by timestamp and derives metadata.
func (a *Assembler) assemble(chats, snaps *history, friends map[string]models.Friend) *Dataset {
	order := append([]string{}, chats.order...)
	for _, id := range snaps.order {
		if _, ok := chats.records[id]; !ok {
			order = append(order, id)
		}
	}

	fallbacks := 0
	convs := make([]*models.Conversation, 0, len(order))
	for i, id := range order {
		msgs := make([]models.Message, 0, len(chats.records[id])+len(snaps.records[id]))
		for _, raw := range chats.records[id] {
			msgs = append(msgs, models.NewMessage(id, models.KindChat, raw, a.now))
		}
		for _, raw := range snaps.records[id] {
			msgs = append(msgs, models.NewMessage(id, models.KindSnap, raw, a.now))
		}
		sort.SliceStable(msgs, func(x, y int) bool { return msgs[x].CreatedMs < msgs[y].CreatedMs })
		for idx := range msgs {
			msgs[idx].Index = idx
			if msgs[idx].TimestampFallback {
				fallbacks++
			}
		}

		conv := &models.Conversation{ID: id, Order: i, Type: models.ConversationIndividual, Messages: msgs}
		for _, m := range msgs {
			if m.ConversationTitle != "" {
				conv.Type = models.ConversationGroup
				conv.Title = m.ConversationTitle
				break
			}
		}
		convs = append(convs, conv)
	}
	if fallbacks > 0 {
		a.logger.Warnf(providers.TypeAssemble, "%d messages without a usable timestamp were stamped with the current time", fallbacks)
	}

	owner := DetermineOwner(convs)
	if owner == models.UnknownOwner {
		a.logger.Warnf(providers.TypeAssemble, "Could not determine account owner")
	} else {
		a.logger.Infof(providers.TypeAssemble, "Determined account owner: %s", owner)
	}

	created := a.now().UTC().Format("2006-01-02T15:04:05.000000Z")
	for _, c := range convs {
		c.Metadata = BuildMetadata(c, friends, owner, created)
	}
	a.logger.Infof(providers.TypeAssemble, "Merged %d conversations", len(convs))

	return &Dataset{Conversations: convs, Owner: owner, Friends: friends}
}

// DetermineOwner returns the sender of the first message flagged IsSender.
func DetermineOwner(convs []*models.Conversation) string {
	for _, c := range convs {
		for _, m := range c.Messages {
			if m.IsSender && m.Sender != "" {
				return m.Sender
			}
		}
	}
	return models.UnknownOwner
}

func participants(c *models.Conversation, owner string) []string {
	set := make(map[string]struct{})
	for _, m := range c.Messages {
		if m.Sender != "" {
			set[m.Sender] = struct{}{}
		}
	}
	if !c.IsGroup() {
		set[c.ID] = struct{}{}
	}
	delete(set, owner)

	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func BuildMetadata(c *models.Conversation, friends map[string]models.Friend, owner, created string) models.Metadata {
	meta := models.Metadata{
		ConversationType: c.Type,
		ConversationID:   c.ID,
		TotalMessages:    len(c.Messages),
		AccountOwner:     owner,
		GroupName:        c.Title,
		IndexCreated:     created,
		DateRange:        models.DateRange{FirstMessage: "N/A", LastMessage: "N/A"},
		Participants:     []models.Participant{},
	}
	for _, m := range c.Messages {
		if m.Kind == models.KindSnap {
			meta.SnapCount++
		} else {
			meta.ChatCount++
		}
	}
	if n := len(c.Messages); n > 0 {
		meta.DateRange = models.DateRange{
			FirstMessage: createdOrNA(c.Messages[0]),
			LastMessage:  createdOrNA(c.Messages[n-1]),
		}
	}

	for _, username := range participants(c, owner) {
		p := models.Participant{
			Username:              username,
			DisplayName:           username,
			CreationTimestamp:     "N/A",
			LastModifiedTimestamp: "N/A",
			Source:                "unknown",
			FriendStatus:          models.FriendNotFound,
			FriendListSection:     "Not Found",
		}
		if f, ok := friends[username]; ok {
			if f.DisplayName != "" {
				p.DisplayName = f.DisplayName
			}
			p.CreationTimestamp = f.CreationTimestamp
			p.LastModifiedTimestamp = f.LastModifiedTimestamp
			p.Source = f.Source
			p.FriendStatus = f.Status
			p.FriendListSection = f.Section
		}
		meta.Participants = append(meta.Participants, p)
	}
	meta.ParticipantCount = len(meta.Participants)
	return meta
}

func createdOrNA(m models.Message) string {
	if m.CreatedText == "" {
		return "N/A"
	}
	return m.CreatedText
}
