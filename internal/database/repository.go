package database

// Repository is the persistence boundary for users, rooms, messages and
// connection records. Absent rows are reported as sql.ErrNoRows; callers in
// the store layer translate that into the domain error taxonomy.
type Repository interface {
	Ping() error

	CreateUser(params CreateUserParams) (User, error)
	GetUserById(id string) (User, error)
	GetUserByEmail(email string) (User, error)

	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomById(id string) (Room, error)
	ListRoomsByUserId(userId string) ([]Room, error)
	UpdateRoom(params UpdateRoomParams) (Room, error)
	DeleteRoom(id string) error
	IsParticipant(roomId, userId string) (bool, error)

	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageById(id string) (Message, error)
	UpdateMessage(id, text, updatedBy string) (Message, error)
	ListMessagesByRoomId(params ListMessagesParams) ([]Message, int, error)

	CreateConnection(id, userId string) (Connection, error)
	DeleteConnection(id string) error
	DeleteAllConnections() error
	ListConnectionsByUserId(userId string) ([]Connection, error)
}
