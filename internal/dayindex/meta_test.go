package dayindex

import (
	"strings"
	"testing"

	"github.com/Kvilt1/merger-simple/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participants(names ...string) []models.Participant {
	out := make([]models.Participant, 0, len(names))
	for _, n := range names {
		out = append(out, models.Participant{Username: n, DisplayName: strings.ToUpper(n)})
	}
	return out
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "alice", Slugify("alice"))
	assert.Equal(t, "ab", Slugify(`a/b`))
	assert.Equal(t, "weird", Slugify(`w*e?i:r"d<>|\`))
	assert.Equal(t, "unknown", Slugify("///"))
	assert.Equal(t, "unknown", Slugify(".."))
	assert.Len(t, Slugify(strings.Repeat("x", 300)), 120)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Trip", *Title(models.Metadata{GroupName: "Trip", Participants: participants("a")}))
	assert.Equal(t, "A, B, C", *Title(models.Metadata{Participants: participants("a", "b", "c")}))
	assert.Equal(t, "A, B +2", *Title(models.Metadata{Participants: participants("a", "b", "c", "d")}))
	assert.Nil(t, Title(models.Metadata{}))
}

func TestSlim(t *testing.T) {
	meta := models.Metadata{
		ConversationID:   "alice",
		ConversationType: models.ConversationIndividual,
		Participants:     participants("alice"),
	}
	s := Slim(meta)
	assert.Equal(t, "alice", s.ID)
	assert.Equal(t, []string{"alice"}, s.Participants)
	require.NotNil(t, s.Title)
	assert.Equal(t, "ALICE", *s.Title)
}
