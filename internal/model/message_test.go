package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEnvelope(t *testing.T) {
	data, err := EncodeEnvelope(EventDeleteObject, DeletePayload{ID: "s1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"delete-object","payload":{"id":"s1"}}`, string(data))

	env, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, EventDeleteObject, env.Type)

	var p DeletePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "s1", p.ID)
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	t.Run("not json", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte("{nope"))
		assert.Error(t, err)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"payload":{}}`))
		assert.Error(t, err)
	})

	t.Run("wrong type shape", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"type":42}`))
		assert.Error(t, err)
	})
}

func TestEventIsRelay(t *testing.T) {
	assert.True(t, EventDrawingData.IsRelay())
	assert.True(t, EventDeleteObject.IsRelay())
	assert.True(t, EventCursorMove.IsRelay())
	assert.True(t, EventChatMessage.IsRelay())
	assert.False(t, EventIntroduce.IsRelay())
	assert.False(t, EventJoinRoom.IsRelay())
}

func TestNewSystemMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 7, 0, 0, time.UTC)
	msg := NewSystemMessage("1-abc", "Alice", SystemJoinedMessage, at)

	assert.Equal(t, ChatTypeSystem, msg.Type)
	assert.Equal(t, "09:07", msg.Timestamp)
	assert.Equal(t, "joined the room", msg.Message)
}
