package types

import (
	"time"
)

type RoomType string

const (
	RoomTypeDirect RoomType = "DIRECT"
	RoomTypeGroup  RoomType = "GROUP"
)

// User is the sanitized representation of an account. Credential fields
// (password hash, refresh token) are never part of this type, so anything
// built from it is safe to send to a client.
type User struct {
	Id        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Type         RoomType  `json:"type"`
	Participants []User    `json:"participants"`
	CreatedBy    string    `json:"created_by"`
	UpdatedBy    string    `json:"updated_by"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id        string    `json:"id"`
	RoomId    string    `json:"room_id"`
	Text      string    `json:"text"`
	Creator   User      `json:"creator"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// MessagePage is one page of a room's history, newest first.
type MessagePage struct {
	Result []Message `json:"result"`
	Total  int       `json:"total"`
}
