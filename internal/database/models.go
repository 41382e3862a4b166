package database

import "time"

type User struct {
	Id           string
	Email        string
	PasswordHash string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Participant is a room member together with their currently live
// connection ids, as observed when the room row was loaded.
type Participant struct {
	User
	ConnectionIds []string
}

type Room struct {
	Id           string
	Name         string
	Type         string
	CreatedBy    string
	UpdatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Participants []Participant
}

type Message struct {
	Id        string
	RoomId    string
	Text      string
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Creator   User
}

type Connection struct {
	Id        string
	UserId    string
	CreatedAt time.Time
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
}

type CreateRoomParams struct {
	Name           string
	Type           string
	CreatedBy      string
	ParticipantIds []string
}

type UpdateRoomParams struct {
	RoomId    string
	Name      *string
	UpdatedBy string
	// ParticipantIds replaces the member set when non-nil; nil keeps the
	// existing set unchanged.
	ParticipantIds []string
}

type CreateMessageParams struct {
	RoomId    string
	Text      string
	CreatedBy string
}

type ListMessagesParams struct {
	RoomId string
	Filter string
	Limit  int
	Offset int
}
