// Package store implements the domain layer on top of the persistence
// repository: the connection registry, the room store, the message store and
// the user lookup. All user data leaving this package is sanitized - the
// mapping functions below are the only place database rows become wire types,
// and they never copy credential fields.
package store

import (
	"github.com/jpratt/chatterd/internal/database"
	"github.com/jpratt/chatterd/internal/types"
)

// Room is a room with each participant's live connection ids as observed
// when the room was loaded. The embedded types.Room is what goes on the wire.
type Room struct {
	types.Room
	ParticipantConnections map[string][]string
}

func toUser(u database.User) types.User {
	return types.User{
		Id:        u.Id,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toRoom(r database.Room) *Room {
	room := &Room{
		Room: types.Room{
			Id:           r.Id,
			Name:         r.Name,
			Type:         types.RoomType(r.Type),
			Participants: make([]types.User, 0, len(r.Participants)),
			CreatedBy:    r.CreatedBy,
			UpdatedBy:    r.UpdatedBy,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		},
		ParticipantConnections: make(map[string][]string, len(r.Participants)),
	}

	for _, p := range r.Participants {
		room.Participants = append(room.Participants, toUser(p.User))
		room.ParticipantConnections[p.Id] = p.ConnectionIds
	}

	return room
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		RoomId:    m.RoomId,
		Text:      m.Text,
		Creator:   toUser(m.Creator),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
