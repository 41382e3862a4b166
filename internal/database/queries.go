package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// likePatternEscaper quotes LIKE metacharacters so a message filter matches
// them literally instead of acting as wildcards.
var likePatternEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const (
	insertParticipantQuery = "INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2)"

	selectMessageQuery = "SELECT m.id, m.room_id, m.text, m.created_by, m.updated_by, m.created_at, m.updated_at, " +
		"u.id, u.email, u.created_at, u.updated_at " +
		"FROM messages m JOIN users u ON u.id = m.created_by"
)

func (db *PgRepository) CreateUser(params CreateUserParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (id, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, email, created_at, updated_at",
		uuid.NewString(),
		params.Email,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Email,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) GetUserById(id string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, password_hash, created_at, updated_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgRepository) GetUserByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, password_hash, created_at, updated_at FROM users "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO rooms (id, name, type, created_by, updated_by, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4, $5, $5) RETURNING id",
		uuid.NewString(),
		params.Name,
		params.Type,
		params.CreatedBy,
		time.Now().UTC(),
	)

	var roomId string
	if err = res.Scan(&roomId); err != nil {
		return Room{}, err
	}

	for _, userId := range params.ParticipantIds {
		if _, err = tx.Exec(insertParticipantQuery, roomId, userId); err != nil {
			return Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return db.GetRoomById(roomId)
}

// GetRoomById loads a room together with its participants and each
// participant's live connection ids.
func (db *PgRepository) GetRoomById(id string) (Room, error) {
	query := `
		SELECT
				r.id,
				r.name,
				r.type,
				r.created_by,
				r.updated_by,
				r.created_at,
				r.updated_at,
				u.id,
				u.email,
				u.created_at,
				u.updated_at,
				c.id
		FROM rooms r
		LEFT JOIN room_participants rp ON rp.room_id = r.id
		LEFT JOIN users u ON u.id = rp.user_id
		LEFT JOIN connections c ON c.user_id = u.id
		WHERE r.id = $1;
`

	rows, err := db.conn.Query(query, id)
	if err != nil {
		return Room{}, fmt.Errorf("fetch room with participants: %w", err)
	}
	defer rows.Close()

	var room *Room
	participants := make(map[string]*Participant)
	var order []string

	for rows.Next() {
		var (
			roomId        string
			roomName      sql.NullString
			roomType      string
			createdBy     string
			updatedBy     string
			roomCreatedAt time.Time
			roomUpdatedAt time.Time
			userId        sql.NullString
			email         sql.NullString
			userCreatedAt sql.NullTime
			userUpdatedAt sql.NullTime
			connectionId  sql.NullString
		)

		err := rows.Scan(
			&roomId,
			&roomName,
			&roomType,
			&createdBy,
			&updatedBy,
			&roomCreatedAt,
			&roomUpdatedAt,
			&userId,
			&email,
			&userCreatedAt,
			&userUpdatedAt,
			&connectionId,
		)
		if err != nil {
			return Room{}, fmt.Errorf("scan row: %w", err)
		}

		if room == nil {
			room = &Room{
				Id:        roomId,
				Name:      roomName.String,
				Type:      roomType,
				CreatedBy: createdBy,
				UpdatedBy: updatedBy,
				CreatedAt: roomCreatedAt,
				UpdatedAt: roomUpdatedAt,
			}
		}

		if userId.Valid {
			p, ok := participants[userId.String]
			if !ok {
				p = &Participant{
					User: User{
						Id:        userId.String,
						Email:     email.String,
						CreatedAt: userCreatedAt.Time,
						UpdatedAt: userUpdatedAt.Time,
					},
				}
				participants[userId.String] = p
				order = append(order, userId.String)
			}
			if connectionId.Valid {
				p.ConnectionIds = append(p.ConnectionIds, connectionId.String)
			}
		}
	}

	if err := rows.Err(); err != nil {
		return Room{}, fmt.Errorf("rows error: %w", err)
	}

	if room == nil {
		return Room{}, sql.ErrNoRows
	}

	room.Participants = make([]Participant, 0, len(order))
	for _, userId := range order {
		room.Participants = append(room.Participants, *participants[userId])
	}

	return *room, nil
}

func (db *PgRepository) ListRoomsByUserId(userId string) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id FROM room_participants rp JOIN rooms r ON r.id = rp.room_id "+
			"WHERE rp.user_id = $1 ORDER BY r.created_at",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roomIds []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		roomIds = append(roomIds, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rooms := make([]Room, 0, len(roomIds))
	for _, id := range roomIds {
		room, err := db.GetRoomById(id)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, nil
}

func (db *PgRepository) UpdateRoom(params UpdateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"UPDATE rooms SET name = COALESCE($2, name), updated_by = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING id",
		params.RoomId,
		params.Name,
		params.UpdatedBy,
		time.Now().UTC(),
	)

	var roomId string
	if err = res.Scan(&roomId); err != nil {
		return Room{}, err
	}

	if params.ParticipantIds != nil {
		if _, err = tx.Exec("DELETE FROM room_participants WHERE room_id = $1", roomId); err != nil {
			return Room{}, err
		}
		for _, userId := range params.ParticipantIds {
			if _, err = tx.Exec(insertParticipantQuery, roomId, userId); err != nil {
				return Room{}, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return db.GetRoomById(roomId)
}

func (db *PgRepository) DeleteRoom(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM room_participants WHERE room_id = $1", id); err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM messages WHERE room_id = $1", id); err != nil {
		return err
	}

	res, err := tx.Exec("DELETE FROM rooms WHERE id = $1", id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	return tx.Commit()
}

func (db *PgRepository) IsParticipant(roomId, userId string) (bool, error) {
	res := db.conn.QueryRow(
		"SELECT 1 FROM room_participants WHERE room_id = $1 AND user_id = $2 LIMIT 1",
		roomId,
		userId,
	)

	var one int
	if err := res.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (db *PgRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (id, room_id, text, created_by, updated_by, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4, $5, $5) RETURNING id",
		uuid.NewString(),
		params.RoomId,
		params.Text,
		params.CreatedBy,
		time.Now().UTC(),
	)

	var messageId string
	if err := res.Scan(&messageId); err != nil {
		return Message{}, err
	}

	return db.GetMessageById(messageId)
}

func (db *PgRepository) GetMessageById(id string) (Message, error) {
	row := db.conn.QueryRow(selectMessageQuery+" WHERE m.id = $1 LIMIT 1", id)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.Text,
		&msg.CreatedBy,
		&msg.UpdatedBy,
		&msg.CreatedAt,
		&msg.UpdatedAt,
		&msg.Creator.Id,
		&msg.Creator.Email,
		&msg.Creator.CreatedAt,
		&msg.Creator.UpdatedAt,
	)

	return msg, err
}

func (db *PgRepository) UpdateMessage(id, text, updatedBy string) (Message, error) {
	res := db.conn.QueryRow(
		"UPDATE messages SET text = $2, updated_by = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING id",
		id,
		text,
		updatedBy,
		time.Now().UTC(),
	)

	var messageId string
	if err := res.Scan(&messageId); err != nil {
		return Message{}, err
	}

	return db.GetMessageById(messageId)
}

func (db *PgRepository) ListMessagesByRoomId(params ListMessagesParams) ([]Message, int, error) {
	filter := likePatternEscaper.Replace(params.Filter)

	var total int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE room_id = $1 AND ($2 = '' OR text ILIKE '%' || $2 || '%' ESCAPE '\\')",
		params.RoomId,
		filter,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := db.conn.Query(
		selectMessageQuery+
			" WHERE m.room_id = $1 AND ($2 = '' OR m.text ILIKE '%' || $2 || '%' ESCAPE '\\') "+
			"ORDER BY m.created_at DESC LIMIT $3 OFFSET $4",
		params.RoomId,
		filter,
		params.Limit,
		params.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, params.Limit)
	for rows.Next() {
		var msg Message
		err := rows.Scan(
			&msg.Id,
			&msg.RoomId,
			&msg.Text,
			&msg.CreatedBy,
			&msg.UpdatedBy,
			&msg.CreatedAt,
			&msg.UpdatedAt,
			&msg.Creator.Id,
			&msg.Creator.Email,
			&msg.Creator.CreatedAt,
			&msg.Creator.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, msg)
	}

	return messages, total, rows.Err()
}

func (db *PgRepository) CreateConnection(id, userId string) (Connection, error) {
	res := db.conn.QueryRow(
		"INSERT INTO connections (id, user_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id "+
			"RETURNING id, user_id, created_at",
		id,
		userId,
		time.Now().UTC(),
	)

	var conn Connection
	err := res.Scan(
		&conn.Id,
		&conn.UserId,
		&conn.CreatedAt,
	)

	return conn, err
}

func (db *PgRepository) DeleteConnection(id string) error {
	_, err := db.conn.Exec("DELETE FROM connections WHERE id = $1", id)
	return err
}

func (db *PgRepository) DeleteAllConnections() error {
	_, err := db.conn.Exec("DELETE FROM connections")
	return err
}

func (db *PgRepository) ListConnectionsByUserId(userId string) ([]Connection, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, created_at FROM connections WHERE user_id = $1",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns = make([]Connection, 0)
	for rows.Next() {
		var conn Connection
		if err = rows.Scan(&conn.Id, &conn.UserId, &conn.CreatedAt); err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}

	return conns, rows.Err()
}
