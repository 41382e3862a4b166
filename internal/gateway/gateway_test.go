package gateway

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jpratt/chatterd/internal/apperr"
	"github.com/jpratt/chatterd/internal/auth"
	"github.com/jpratt/chatterd/internal/database"
	"github.com/jpratt/chatterd/internal/stats"
	"github.com/jpratt/chatterd/internal/store"
	"github.com/jpratt/chatterd/internal/testutil"
	"github.com/jpratt/chatterd/internal/types"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newTestGateway(t *testing.T, db database.Repository, su *stats.MockStatsUpdater) *Gateway {
	su.On("RegisterMetric", mock.Anything).Times(3)

	logger := testutil.TestLogger(t)
	registry := store.NewConnectionRegistry(logger, db)
	users := store.NewUserStore(logger, db)
	rooms := store.NewRoomStore(logger, db, users)
	messages := store.NewMessageStore(logger, db, rooms)

	gw, err := NewGateway(logger, registry, rooms, messages, users, su, testSigningKey)
	if err != nil {
		t.Fatalf("failed to create test gateway: %v", err)
	}
	return gw
}

// newTestClient builds a client without a live socket. The send channel is all
// the handler paths touch.
func newTestClient(t *testing.T, id string, user types.User, gw *Gateway) *Client {
	c := NewClient(id, "", nil, gw, testutil.TestLogger(t))
	c.user = user
	return c
}

func expectEvent(t *testing.T, c *Client, event string) *ServerEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		assert.Equal(t, event, ev.Event, "expected %s event", event)
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected %s event on connection %s", event, c.id)
		return nil
	}
}

func TestNewGateway(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	db.On("DeleteAllConnections").Return(nil).Once()

	gw := newTestGateway(t, db, su)
	assert.NotNil(t, gw, "expected gateway to be non-nil")
	assert.NotNil(t, gw.sessions, "expected session table to be initialized")
}

func TestNewGatewayClearFailure(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(3)

	db.On("DeleteAllConnections").Return(errors.New("db error")).Once()

	logger := testutil.TestLogger(t)
	registry := store.NewConnectionRegistry(logger, db)
	users := store.NewUserStore(logger, db)
	rooms := store.NewRoomStore(logger, db, users)
	messages := store.NewMessageStore(logger, db, rooms)

	_, err := NewGateway(logger, registry, rooms, messages, users, su, testSigningKey)
	assert.Error(t, err, "expected error when registry cannot be cleared")
}

func TestConnect(t *testing.T) {
	t.Run("rejects missing authorization header", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		c := NewClient("c1", "", nil, gw, testutil.TestLogger(t))
		err := gw.Connect(c)
		assert.True(t, apperr.IsKind(err, apperr.KindAuthentication), "expected authentication error")
	})

	t.Run("rejects malformed authorization header", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		c := NewClient("c1", "Basic abc123", nil, gw, testutil.TestLogger(t))
		err := gw.Connect(c)
		assert.True(t, apperr.IsKind(err, apperr.KindAuthentication), "expected authentication error")
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		c := NewClient("c1", "Bearer not-a-token", nil, gw, testutil.TestLogger(t))
		err := gw.Connect(c)
		assert.True(t, apperr.IsKind(err, apperr.KindAuthentication), "expected authentication error")
	})

	t.Run("registers connection and sends room list", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		token, err := auth.NewToken("u1", "alice@example.com", testSigningKey, time.Minute)
		assert.NoError(t, err, "expected no error creating token")

		db.On("GetUserById", "u1").Return(database.User{Id: "u1", Email: "alice@example.com"}, nil).Once()
		db.On("CreateConnection", "c1", "u1").Return(database.Connection{Id: "c1", UserId: "u1"}, nil).Once()
		db.On("ListRoomsByUserId", "u1").Return([]database.Room{
			{Id: "r1", Type: "GROUP", Name: "general"},
		}, nil).Once()
		su.On("Incr", metricNumConnections).Once()

		c := NewClient("c1", "Bearer "+token, nil, gw, testutil.TestLogger(t))
		err = gw.Connect(c)
		assert.NoError(t, err, "expected no error connecting")
		assert.Equal(t, "u1", c.User().Id, "expected authenticated user on client")

		ev := expectEvent(t, c, EventUserAllRooms)
		rooms, ok := ev.Data.([]types.Room)
		assert.True(t, ok, "expected room list data")
		assert.Len(t, rooms, 1, "expected the user's room")
	})

	t.Run("unwinds registration when room list fails", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		token, err := auth.NewToken("u1", "alice@example.com", testSigningKey, time.Minute)
		assert.NoError(t, err, "expected no error creating token")

		db.On("GetUserById", "u1").Return(database.User{Id: "u1"}, nil).Once()
		db.On("CreateConnection", "c1", "u1").Return(database.Connection{Id: "c1", UserId: "u1"}, nil).Once()
		db.On("ListRoomsByUserId", "u1").Return([]database.Room{}, errors.New("db error")).Once()
		db.On("DeleteConnection", "c1").Return(nil).Once()

		c := NewClient("c1", "Bearer "+token, nil, gw, testutil.TestLogger(t))
		err = gw.Connect(c)
		assert.Error(t, err, "expected error connecting")
		assert.Empty(t, gw.sessions, "expected no session for failed connection")
	})
}

func TestDisconnect(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	db.On("DeleteAllConnections").Return(nil).Once()
	gw := newTestGateway(t, db, su)

	c := newTestClient(t, "c1", types.User{Id: "u1"}, gw)
	gw.addSession(c)

	su.On("Decr", metricNumConnections).Once()
	db.On("DeleteConnection", "c1").Return(nil).Once()

	gw.Disconnect(c)
	assert.Empty(t, gw.sessions, "expected session to be removed")

	// disconnecting again only touches the registry
	db.On("DeleteConnection", "c1").Return(nil).Once()
	gw.Disconnect(c)
}

func TestDispatchUnknownEvent(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	db.On("DeleteAllConnections").Return(nil).Once()
	gw := newTestGateway(t, db, su)

	c := newTestClient(t, "c1", types.User{Id: "u1"}, gw)
	err := gw.dispatch(c, &ClientEvent{Event: "subscribe"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "expected validation error")
}

func TestHandleCreateRoom(t *testing.T) {
	t.Run("fans out to all participants", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		creator := newTestClient(t, "c1", types.User{Id: "u1"}, gw)
		peer := newTestClient(t, "c2", types.User{Id: "u2"}, gw)
		gw.addSession(creator)
		gw.addSession(peer)

		db.On("GetUserById", "u1").Return(database.User{Id: "u1"}, nil).Once()
		db.On("GetUserById", "u2").Return(database.User{Id: "u2"}, nil).Once()
		db.On("CreateRoom", mock.Anything).Return(database.Room{
			Id:   "r1",
			Name: "general",
			Type: "GROUP",
			Participants: []database.Participant{
				{User: database.User{Id: "u1"}},
				{User: database.User{Id: "u2"}},
			},
		}, nil).Once()
		db.On("ListConnectionsByUserId", "u1").Return([]database.Connection{{Id: "c1", UserId: "u1"}}, nil).Once()
		db.On("ListConnectionsByUserId", "u2").Return([]database.Connection{{Id: "c2", UserId: "u2"}}, nil).Once()

		err := gw.dispatch(creator, &ClientEvent{
			Event: EventCreateRoom,
			Data:  json.RawMessage(`{"type":"GROUP","name":"general","participants":["u2"]}`),
		})
		assert.NoError(t, err, "expected no error creating room")

		expectEvent(t, creator, EventRoomCreated)
		ev := expectEvent(t, peer, EventRoomCreated)
		room, ok := ev.Data.(types.Room)
		assert.True(t, ok, "expected room data")
		assert.Equal(t, "r1", room.Id, "expected created room")
	})

	t.Run("reports partial fanout to the creator", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		creator := newTestClient(t, "c1", types.User{Id: "u1"}, gw)
		gw.addSession(creator)

		db.On("GetUserById", "u1").Return(database.User{Id: "u1"}, nil).Once()
		db.On("GetUserById", "u2").Return(database.User{Id: "u2"}, nil).Once()
		db.On("CreateRoom", mock.Anything).Return(database.Room{
			Id:   "r1",
			Type: "GROUP",
			Name: "general",
			Participants: []database.Participant{
				{User: database.User{Id: "u1"}},
				{User: database.User{Id: "u2"}},
			},
		}, nil).Once()
		db.On("ListConnectionsByUserId", "u1").Return([]database.Connection{{Id: "c1", UserId: "u1"}}, nil).Once()
		db.On("ListConnectionsByUserId", "u2").Return([]database.Connection{}, errors.New("db error")).Once()

		err := gw.dispatch(creator, &ClientEvent{
			Event: EventCreateRoom,
			Data:  json.RawMessage(`{"type":"GROUP","name":"general","participants":["u2"]}`),
		})
		assert.True(t, apperr.IsKind(err, apperr.KindFanout), "expected fanout error")
	})
}

func TestHandleUpdateRoom(t *testing.T) {
	updatedRow := database.Room{
		Id:   "r1",
		Name: "renamed",
		Type: "GROUP",
		Participants: []database.Participant{
			{User: database.User{Id: "u1"}},
			{User: database.User{Id: "u2"}},
		},
	}

	t.Run("fans out to the updated member set", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		updater := newTestClient(t, "c1", types.User{Id: "u1"}, gw)
		peer := newTestClient(t, "c2", types.User{Id: "u2"}, gw)
		gw.addSession(updater)
		gw.addSession(peer)

		db.On("UpdateRoom", mock.MatchedBy(func(p database.UpdateRoomParams) bool {
			return p.RoomId == "r1" && p.UpdatedBy == "u1" && *p.Name == "renamed" && p.ParticipantIds == nil
		})).Return(updatedRow, nil).Once()
		db.On("ListConnectionsByUserId", "u1").Return([]database.Connection{{Id: "c1", UserId: "u1"}}, nil).Once()
		db.On("ListConnectionsByUserId", "u2").Return([]database.Connection{{Id: "c2", UserId: "u2"}}, nil).Once()

		err := gw.dispatch(updater, &ClientEvent{
			Event: EventUpdateRoom,
			Data:  json.RawMessage(`{"roomId":"r1","name":"renamed"}`),
		})
		assert.NoError(t, err, "expected no error updating room")

		expectEvent(t, updater, EventRoomUpdated)
		ev := expectEvent(t, peer, EventRoomUpdated)
		room, ok := ev.Data.(types.Room)
		assert.True(t, ok, "expected room data")
		assert.Equal(t, "renamed", room.Name, "expected updated room")
	})

	t.Run("partial fanout is logged, not surfaced", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		updater := newTestClient(t, "c1", types.User{Id: "u1"}, gw)
		gw.addSession(updater)

		db.On("UpdateRoom", mock.Anything).Return(updatedRow, nil).Once()
		db.On("ListConnectionsByUserId", "u1").Return([]database.Connection{{Id: "c1", UserId: "u1"}}, nil).Once()
		db.On("ListConnectionsByUserId", "u2").Return([]database.Connection{}, errors.New("db error")).Once()

		err := gw.dispatch(updater, &ClientEvent{
			Event: EventUpdateRoom,
			Data:  json.RawMessage(`{"roomId":"r1","name":"renamed"}`),
		})
		assert.NoError(t, err, "expected fanout failure to stay server-side")

		expectEvent(t, updater, EventRoomUpdated)
	})
}

func TestHandleDeleteRoom(t *testing.T) {
	roomRow := database.Room{
		Id:   "r1",
		Type: "GROUP",
		Name: "general",
		Participants: []database.Participant{
			{User: database.User{Id: "u1"}, ConnectionIds: []string{"c1"}},
			{User: database.User{Id: "u2"}, ConnectionIds: []string{"c2"}},
		},
	}

	t.Run("notifies connections live at deletion time", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		requester := newTestClient(t, "c1", types.User{Id: "u1"}, gw)
		peer := newTestClient(t, "c2", types.User{Id: "u2"}, gw)
		gw.addSession(requester)
		gw.addSession(peer)

		db.On("GetRoomById", "r1").Return(roomRow, nil).Once()
		db.On("DeleteRoom", "r1").Return(nil).Once()

		err := gw.dispatch(requester, &ClientEvent{
			Event: EventDeleteRoom,
			Data:  json.RawMessage(`{"roomId":"r1"}`),
		})
		assert.NoError(t, err, "expected no error deleting room")

		ev := expectEvent(t, peer, EventRoomDeleted)
		assert.Equal(t, "room r1 has been deleted", ev.Data, "expected deletion notice")
		expectEvent(t, requester, EventRoomDeleted)
	})

	t.Run("rejects non-participants", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		db.On("DeleteAllConnections").Return(nil).Once()
		gw := newTestGateway(t, db, su)

		outsider := newTestClient(t, "c3", types.User{Id: "u3"}, gw)
		gw.addSession(outsider)

		db.On("GetRoomById", "r1").Return(roomRow, nil).Once()

		err := gw.dispatch(outsider, &ClientEvent{
			Event: EventDeleteRoom,
			Data:  json.RawMessage(`{"roomId":"r1"}`),
		})
		assert.True(t, apperr.IsKind(err, apperr.KindAuthorization), "expected authorization error")
	})
}

func TestHandleSendMessage(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	db.On("DeleteAllConnections").Return(nil).Once()
	gw := newTestGateway(t, db, su)

	sender := newTestClient(t, "c1", types.User{Id: "u1"}, gw)
	peer := newTestClient(t, "c2", types.User{Id: "u2"}, gw)
	gw.addSession(sender)
	gw.addSession(peer)

	db.On("IsParticipant", "r1", "u1").Return(true, nil).Times(2)
	db.On("CreateMessage", database.CreateMessageParams{
		RoomId:    "r1",
		Text:      "hello",
		CreatedBy: "u1",
	}).Return(database.Message{Id: "m1", RoomId: "r1", Text: "hello"}, nil).Once()
	su.On("Incr", metricMessagesSent).Once()
	db.On("ListMessagesByRoomId", database.ListMessagesParams{
		RoomId: "r1",
		Limit:  store.DefaultPageSize,
	}).Return([]database.Message{
		{Id: "m1", RoomId: "r1", Text: "hello"},
	}, 1, nil).Once()
	db.On("GetRoomById", "r1").Return(database.Room{
		Id:   "r1",
		Type: "GROUP",
		Participants: []database.Participant{
			{User: database.User{Id: "u1"}},
			{User: database.User{Id: "u2"}},
		},
	}, nil).Once()
	db.On("ListConnectionsByUserId", "u1").Return([]database.Connection{{Id: "c1", UserId: "u1"}}, nil).Once()
	db.On("ListConnectionsByUserId", "u2").Return([]database.Connection{{Id: "c2", UserId: "u2"}}, nil).Once()

	err := gw.dispatch(sender, &ClientEvent{
		Event: EventSendMessage,
		Data:  json.RawMessage(`{"roomId":"r1","text":"hello"}`),
	})
	assert.NoError(t, err, "expected no error sending message")

	for _, c := range []*Client{sender, peer} {
		ev := expectEvent(t, c, EventMessageSent)
		page, ok := ev.Data.(types.MessagePage)
		assert.True(t, ok, "expected message page data")
		assert.Equal(t, 1, page.Total, "expected page total")
	}
}

func TestEmitToUnknownConnection(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	db.On("DeleteAllConnections").Return(nil).Once()
	gw := newTestGateway(t, db, su)

	// a connection that disconnected between lookup and emit is not an error
	err := gw.emit("gone", &ServerEvent{Event: EventRoomUpdated})
	assert.NoError(t, err, "expected no error emitting to unknown connection")
}
