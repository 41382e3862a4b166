package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserById(id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) GetRoomById(id string) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) ListRoomsByUserId(userId string) ([]Room, error) {
	args := m.Called(userId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockRepository) UpdateRoom(params UpdateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) DeleteRoom(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRepository) IsParticipant(roomId, userId string) (bool, error) {
	args := m.Called(roomId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessageById(id string) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) UpdateMessage(id, text, updatedBy string) (Message, error) {
	args := m.Called(id, text, updatedBy)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) ListMessagesByRoomId(params ListMessagesParams) ([]Message, int, error) {
	args := m.Called(params)
	return args.Get(0).([]Message), args.Int(1), args.Error(2)
}
func (m *MockRepository) CreateConnection(id, userId string) (Connection, error) {
	args := m.Called(id, userId)
	return args.Get(0).(Connection), args.Error(1)
}
func (m *MockRepository) DeleteConnection(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRepository) DeleteAllConnections() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) ListConnectionsByUserId(userId string) ([]Connection, error) {
	args := m.Called(userId)
	return args.Get(0).([]Connection), args.Error(1)
}
