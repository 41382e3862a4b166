package store

import (
	"database/sql"
	"errors"
	"log"
	"strings"

	"github.com/jpratt/chatterd/internal/apperr"
	"github.com/jpratt/chatterd/internal/database"
	"github.com/jpratt/chatterd/internal/types"
)

const DefaultPageSize = 20

// PageRequest selects a page of a room's messages. The zero value means the
// first page with the default size and no text filter.
type PageRequest struct {
	// Filter is a case-insensitive substring match on the message text.
	Filter string
	Offset int
	Limit  int
}

type MessageStore struct {
	log   *log.Logger
	db    database.Repository
	rooms *RoomStore
}

func NewMessageStore(logger *log.Logger, db database.Repository, rooms *RoomStore) *MessageStore {
	return &MessageStore{
		log:   logger,
		db:    db,
		rooms: rooms,
	}
}

func (s *MessageStore) requireParticipant(roomId, userId string) error {
	ok, err := s.rooms.IsParticipant(roomId, userId)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization("user is not a participant of this room")
	}
	return nil
}

// Create persists a message from userId in roomId. Only current participants
// may post.
func (s *MessageStore) Create(userId, roomId, text string) (types.Message, error) {
	if strings.TrimSpace(text) == "" {
		return types.Message{}, apperr.Validation("text must not be empty", "text")
	}

	if err := s.requireParticipant(roomId, userId); err != nil {
		return types.Message{}, err
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		RoomId:    roomId,
		Text:      text,
		CreatedBy: userId,
	})
	if err != nil {
		s.log.Println("CreateMessage:", err)
		return types.Message{}, apperr.Storage("failed to create message", err)
	}

	return toMessage(msg), nil
}

// FindByRoom returns one page of the room's messages, newest first, for a
// current participant.
func (s *MessageStore) FindByRoom(requesterId, roomId string, page PageRequest) (types.MessagePage, error) {
	if err := s.requireParticipant(roomId, requesterId); err != nil {
		return types.MessagePage{}, err
	}

	if page.Limit <= 0 {
		page.Limit = DefaultPageSize
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	msgs, total, err := s.db.ListMessagesByRoomId(database.ListMessagesParams{
		RoomId: roomId,
		Filter: page.Filter,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		s.log.Println("ListMessagesByRoomId:", err)
		return types.MessagePage{}, apperr.Storage("failed to list messages", err)
	}

	result := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, toMessage(msg))
	}

	return types.MessagePage{Result: result, Total: total}, nil
}

// Update edits a message's text. Only the original creator may edit. The
// refreshed first page of the owning room is returned.
func (s *MessageStore) Update(userId, messageId, newText string) (types.MessagePage, error) {
	if strings.TrimSpace(newText) == "" {
		return types.MessagePage{}, apperr.Validation("text must not be empty", "text")
	}

	msg, err := s.db.GetMessageById(messageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.MessagePage{}, apperr.NotFound("message " + messageId + " not found")
		}
		return types.MessagePage{}, apperr.Storage("failed to load message", err)
	}

	if msg.CreatedBy != userId {
		return types.MessagePage{}, apperr.Authorization("only the message creator may edit it")
	}

	if _, err := s.db.UpdateMessage(messageId, newText, userId); err != nil {
		s.log.Println("UpdateMessage:", err)
		return types.MessagePage{}, apperr.Storage("failed to update message", err)
	}

	return s.FindByRoom(userId, msg.RoomId, PageRequest{})
}
