package gateway

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jpratt/chatterd/internal/apperr"
)

// Inbound event names (client -> server).
const (
	EventCreateRoom  = "createRoom"
	EventUpdateRoom  = "updateRoom"
	EventDeleteRoom  = "deleteRoom"
	EventSendMessage = "sendMessage"
)

// Outbound event names (server -> client).
const (
	EventUserAllRooms = "userAllRooms"
	EventRoomCreated  = "roomCreated"
	EventRoomUpdated  = "roomUpdated"
	EventRoomDeleted  = "roomDeleted"
	EventMessageSent  = "messageSent"
	EventException    = "exception"
)

type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type CreateRoomPayload struct {
	Type         string   `json:"type" validate:"required,oneof=DIRECT GROUP"`
	Name         string   `json:"name" validate:"required_if=Type GROUP"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
}

type UpdateRoomPayload struct {
	RoomId       string   `json:"roomId" validate:"required"`
	Name         *string  `json:"name,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

type DeleteRoomPayload struct {
	RoomId string `json:"roomId" validate:"required"`
}

type SendMessagePayload struct {
	RoomId string `json:"roomId" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePayload unmarshals and schema-checks an event payload before any
// business logic runs. Validation failures name the offending fields.
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, apperr.Validation("missing event payload")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, apperr.Validation("malformed event payload")
	}

	if err := validate.Struct(&payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return payload, apperr.Validation("invalid event payload", fields...)
		}
		return payload, apperr.Validation("invalid event payload")
	}

	return payload, nil
}

// exceptionEvent maps a handler error to the client-visible exception event.
// Storage detail never leaks; the client gets a generic retry message.
func exceptionEvent(err error) *ServerEvent {
	var data any = "something went wrong, please try again later"

	var e *apperr.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case apperr.KindStorage:
			// keep the generic message
		case apperr.KindValidation:
			if len(e.Fields) > 0 {
				msgs := make([]string, 0, len(e.Fields))
				for _, f := range e.Fields {
					msgs = append(msgs, "invalid field: "+f)
				}
				data = msgs
			} else {
				data = e.Message
			}
		default:
			data = e.Message
		}
	}

	return &ServerEvent{Event: EventException, Data: data}
}
