package gateway

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jpratt/chatterd/internal/apperr"
)

func TestDecodeCreateRoomPayload(t *testing.T) {
	tcases := []struct {
		name      string
		raw       string
		wantErr   bool
		badFields []string
	}{
		{
			name: "valid group room",
			raw:  `{"type":"GROUP","name":"general","participants":["u1","u2"]}`,
		},
		{
			name: "valid direct room without name",
			raw:  `{"type":"DIRECT","participants":["u2"]}`,
		},
		{
			name:      "missing type",
			raw:       `{"name":"general","participants":["u1"]}`,
			wantErr:   true,
			badFields: []string{"type"},
		},
		{
			name:      "unknown type",
			raw:       `{"type":"CHANNEL","participants":["u1"]}`,
			wantErr:   true,
			badFields: []string{"type"},
		},
		{
			name:      "group room without name",
			raw:       `{"type":"GROUP","participants":["u1"]}`,
			wantErr:   true,
			badFields: []string{"name"},
		},
		{
			name:      "empty participants",
			raw:       `{"type":"GROUP","name":"general","participants":[]}`,
			wantErr:   true,
			badFields: []string{"participants"},
		},
		{
			name:    "malformed json",
			raw:     `{"type":`,
			wantErr: true,
		},
		{
			name:    "missing payload",
			raw:     ``,
			wantErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := decodePayload[CreateRoomPayload](json.RawMessage(tc.raw))
			if tc.wantErr {
				assert.True(t, apperr.IsKind(err, apperr.KindValidation), "expected validation error")
				if len(tc.badFields) > 0 {
					var e *apperr.Error
					assert.ErrorAs(t, err, &e, "expected typed error")
					assert.Equal(t, tc.badFields, e.Fields, "expected offending fields to be named")
				}
				return
			}
			assert.NoError(t, err, "expected no error decoding payload")
			assert.NotEmpty(t, payload.Participants, "expected participants to be decoded")
		})
	}
}

func TestDecodeSendMessagePayload(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		payload, err := decodePayload[SendMessagePayload](json.RawMessage(`{"roomId":"r1","text":"hello"}`))
		assert.NoError(t, err, "expected no error decoding payload")
		assert.Equal(t, "r1", payload.RoomId, "expected room id to be decoded")
		assert.Equal(t, "hello", payload.Text, "expected text to be decoded")
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := decodePayload[SendMessagePayload](json.RawMessage(`{}`))
		var e *apperr.Error
		assert.ErrorAs(t, err, &e, "expected typed error")
		assert.Equal(t, apperr.KindValidation, e.Kind, "expected validation error")
		assert.Equal(t, []string{"roomId", "text"}, e.Fields, "expected both fields to be named")
	})
}

func TestDecodeUpdateRoomPayload(t *testing.T) {
	t.Run("omitted participants stay nil", func(t *testing.T) {
		payload, err := decodePayload[UpdateRoomPayload](json.RawMessage(`{"roomId":"r1","name":"renamed"}`))
		assert.NoError(t, err, "expected no error decoding payload")
		assert.Nil(t, payload.Participants, "expected omitted participants to be nil")
		assert.Equal(t, "renamed", *payload.Name, "expected name to be decoded")
	})

	t.Run("missing room id", func(t *testing.T) {
		_, err := decodePayload[UpdateRoomPayload](json.RawMessage(`{"name":"renamed"}`))
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "expected validation error")
	})
}

func TestExceptionEvent(t *testing.T) {
	t.Run("storage errors stay generic", func(t *testing.T) {
		ev := exceptionEvent(apperr.Storage("failed to create room", errors.New("pq: broken")))
		assert.Equal(t, EventException, ev.Event, "expected exception event")
		data, ok := ev.Data.(string)
		assert.True(t, ok, "expected string data")
		assert.NotContains(t, data, "pq", "expected no storage detail in client message")
	})

	t.Run("validation errors name fields", func(t *testing.T) {
		ev := exceptionEvent(apperr.Validation("invalid event payload", "type", "name"))
		assert.Equal(t, []string{"invalid field: type", "invalid field: name"}, ev.Data, "expected per-field messages")
	})

	t.Run("other errors pass their message", func(t *testing.T) {
		ev := exceptionEvent(apperr.Authorization("only participants may delete a room"))
		assert.Equal(t, "only participants may delete a room", ev.Data, "expected message passthrough")
	})

	t.Run("unknown errors stay generic", func(t *testing.T) {
		ev := exceptionEvent(errors.New("boom"))
		assert.Equal(t, "something went wrong, please try again later", ev.Data, "expected generic message")
	})
}
