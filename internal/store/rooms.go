package store

import (
	"database/sql"
	"errors"
	"log"

	"github.com/samber/lo"

	"github.com/jpratt/chatterd/internal/apperr"
	"github.com/jpratt/chatterd/internal/database"
	"github.com/jpratt/chatterd/internal/types"
)

// RoomSpec describes a room to be created.
type RoomSpec struct {
	Type types.RoomType
	Name string
}

// RoomPatch describes a room update. Participants nil keeps the existing
// member set; non-nil replaces it.
type RoomPatch struct {
	Name         *string
	Participants []string
}

type RoomStore struct {
	log   *log.Logger
	db    database.Repository
	users *UserStore
}

func NewRoomStore(logger *log.Logger, db database.Repository, users *UserStore) *RoomStore {
	return &RoomStore{
		log:   logger,
		db:    db,
		users: users,
	}
}

// withUser prepends userId to participantIds if missing and dedupes.
func withUser(userId string, participantIds []string) []string {
	return lo.Uniq(append([]string{userId}, participantIds...))
}

// resolveParticipants verifies every id refers to an existing user.
func (s *RoomStore) resolveParticipants(ids []string) error {
	for _, id := range ids {
		if _, err := s.users.FindById(id); err != nil {
			return err
		}
	}
	return nil
}

// Create validates the room spec, adds the creator to the participant set if
// missing and persists the room.
func (s *RoomStore) Create(creatorId string, spec RoomSpec, participantIds []string) (*Room, error) {
	if len(participantIds) == 0 {
		return nil, apperr.Validation("participants must not be empty", "participants")
	}

	ids := withUser(creatorId, participantIds)

	name := spec.Name
	switch spec.Type {
	case types.RoomTypeGroup:
		if name == "" {
			return nil, apperr.Validation("name is required for GROUP rooms", "name")
		}
		if len(ids) < 2 {
			return nil, apperr.Validation("GROUP rooms require at least one other participant", "participants")
		}
	case types.RoomTypeDirect:
		if len(ids) != 2 {
			return nil, apperr.Validation("DIRECT rooms require exactly one other participant", "participants")
		}
		// DIRECT rooms are anonymous
		name = ""
	default:
		return nil, apperr.Validation("room type must be DIRECT or GROUP", "type")
	}

	if err := s.resolveParticipants(ids); err != nil {
		return nil, err
	}

	dbRoom, err := s.db.CreateRoom(database.CreateRoomParams{
		Name:           name,
		Type:           string(spec.Type),
		CreatedBy:      creatorId,
		ParticipantIds: ids,
	})
	if err != nil {
		s.log.Println("CreateRoom:", err)
		return nil, apperr.Storage("failed to create room", err)
	}

	return toRoom(dbRoom), nil
}

func (s *RoomStore) FindOne(roomId string) (*Room, error) {
	dbRoom, err := s.db.GetRoomById(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("room " + roomId + " not found")
		}
		return nil, apperr.Storage("failed to load room", err)
	}

	return toRoom(dbRoom), nil
}

// FindByUser returns every room the user participates in.
func (s *RoomStore) FindByUser(userId string) ([]types.Room, error) {
	dbRooms, err := s.db.ListRoomsByUserId(userId)
	if err != nil {
		return nil, apperr.Storage("failed to list rooms", err)
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, dbRoom := range dbRooms {
		rooms = append(rooms, toRoom(dbRoom).Room)
	}

	return rooms, nil
}

// Update applies the patch. A supplied participant list always re-includes
// the updater and must keep the room's type invariant; a nil list leaves the
// member set untouched.
func (s *RoomStore) Update(updaterId, roomId string, patch RoomPatch) (*Room, error) {
	participantIds := patch.Participants
	if participantIds != nil {
		current, err := s.FindOne(roomId)
		if err != nil {
			return nil, err
		}

		participantIds = withUser(updaterId, participantIds)
		switch current.Type {
		case types.RoomTypeDirect:
			if len(participantIds) != 2 {
				return nil, apperr.Validation("DIRECT rooms require exactly one other participant", "participants")
			}
		case types.RoomTypeGroup:
			if len(participantIds) < 2 {
				return nil, apperr.Validation("GROUP rooms require at least one other participant", "participants")
			}
		}

		if err := s.resolveParticipants(participantIds); err != nil {
			return nil, err
		}
	}

	dbRoom, err := s.db.UpdateRoom(database.UpdateRoomParams{
		RoomId:         roomId,
		Name:           patch.Name,
		UpdatedBy:      updaterId,
		ParticipantIds: participantIds,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("room " + roomId + " not found")
		}
		s.log.Println("UpdateRoom:", err)
		return nil, apperr.Storage("failed to update room", err)
	}

	return toRoom(dbRoom), nil
}

// Delete removes the room. The caller is responsible for checking that the
// requester is a current participant before calling.
func (s *RoomStore) Delete(roomId string) error {
	if err := s.db.DeleteRoom(roomId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("room " + roomId + " not found")
		}
		s.log.Println("DeleteRoom:", err)
		return apperr.Storage("failed to delete room", err)
	}

	return nil
}

func (s *RoomStore) IsParticipant(roomId, userId string) (bool, error) {
	ok, err := s.db.IsParticipant(roomId, userId)
	if err != nil {
		return false, apperr.Storage("failed to check room membership", err)
	}

	return ok, nil
}
