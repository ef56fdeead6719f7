package models_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"pairchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParticipantBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestParticipantBeforeCreate_GeneratesUUID(t *testing.T) {
	p := &models.Participant{FullName: "Ada", Email: "ada@example.com"}
	assert.Empty(t, p.ID)

	err := p.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(p.ID)
	assert.NoError(t, parseErr, "ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestParticipantBeforeCreate_PreservesExistingID(t *testing.T) {
	existing := uuid.New().String()
	p := &models.Participant{ID: existing}

	require.NoError(t, p.BeforeCreate(nil))
	assert.Equal(t, existing, p.ID)
}

func TestMessageBeforeCreate_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		m := &models.Message{SenderID: "a", RecipientID: "b", Text: "hi"}
		require.NoError(t, m.BeforeCreate(nil))
		assert.NotContains(t, seen, m.ID)
		seen[m.ID] = true
	}
}

// TestParticipantStructTags guards the single-AI partial unique index against accidental removal.
func TestParticipantStructTags(t *testing.T) {
	pType := reflect.TypeOf(models.Participant{})

	field, found := pType.FieldByName("IsAI")
	require.True(t, found)
	assert.Contains(t, field.Tag.Get("gorm"), "uniqueIndex:idx_single_ai")
	assert.Contains(t, field.Tag.Get("gorm"), "where:is_ai = true")

	idField, _ := pType.FieldByName("ID")
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
}

func TestMessageIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		msg  models.Message
		want bool
	}{
		{name: "no text no image", msg: models.Message{}, want: true},
		{name: "whitespace only", msg: models.Message{Text: "  \n\t"}, want: true},
		{name: "text", msg: models.Message{Text: "hi"}, want: false},
		{name: "image only", msg: models.Message{Image: "https://cdn.example.com/a.png"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.IsEmpty())
		})
	}
}

func TestRosterEvent_NeverNullOnline(t *testing.T) {
	ev := models.NewRosterEvent(nil)
	assert.Equal(t, models.EventRoster, ev.Type)
	assert.NotNil(t, ev.Online)

	data, err := json.Marshal(models.NewDeliveryEvent(models.Message{ID: "m1", Text: "hi"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"delivery","message":{"_id":"m1","senderId":"","receiverId":"","text":"hi","createdAt":"0001-01-01T00:00:00Z"}}`, string(data))
}
