// Package gateway is the realtime core: it authenticates each websocket
// connection, validates inbound events, invokes the stores and fans resulting
// events out to every live connection of every affected participant.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/jpratt/chatterd/internal/apperr"
	"github.com/jpratt/chatterd/internal/auth"
	"github.com/jpratt/chatterd/internal/stats"
	"github.com/jpratt/chatterd/internal/store"
	"github.com/jpratt/chatterd/internal/types"
)

const (
	metricNumConnections = "NumConnections"
	metricMessagesSent   = "MessagesSent"
	metricFanoutFailures = "FanoutFailures"
)

type Gateway struct {
	log        *log.Logger
	registry   *store.ConnectionRegistry
	rooms      *store.RoomStore
	messages   *store.MessageStore
	users      *store.UserStore
	stats      stats.StatsProvider
	signingKey []byte

	sessions     map[string]*Client
	sessionsLock sync.RWMutex
}

func NewGateway(
	logger *log.Logger,
	registry *store.ConnectionRegistry,
	rooms *store.RoomStore,
	messages *store.MessageStore,
	users *store.UserStore,
	su stats.StatsProvider,
	signingKey []byte,
) (*Gateway, error) {
	for _, m := range []string{metricNumConnections, metricMessagesSent, metricFanoutFailures} {
		su.RegisterMetric(m)
	}

	// entries from a previous run must never be treated as live
	if err := registry.ClearAll(); err != nil {
		return nil, fmt.Errorf("clear connection registry: %w", err)
	}

	return &Gateway{
		log:        logger,
		registry:   registry,
		rooms:      rooms,
		messages:   messages,
		users:      users,
		stats:      su,
		signingKey: signingKey,
		sessions:   make(map[string]*Client),
	}, nil
}

func parseBearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.Authentication("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperr.Authentication("malformed authorization header")
	}

	return parts[1], nil
}

// Connect authenticates a freshly upgraded connection using the bearer
// credential from its handshake. On success the connection is registered and
// receives a userAllRooms event; on failure no state is registered and the
// caller must close the connection.
func (g *Gateway) Connect(c *Client) error {
	token, err := parseBearerToken(c.authHeader)
	if err != nil {
		return err
	}

	claims, err := auth.VerifyToken(token, g.signingKey)
	if err != nil {
		return err
	}

	user, err := g.users.FindById(claims.UserId)
	if err != nil {
		return apperr.Authentication("unknown user")
	}
	c.user = user

	if err := g.registry.Register(user.Id, c.id); err != nil {
		return err
	}

	rooms, err := g.rooms.FindByUser(user.Id)
	if err != nil {
		// unwind so a half-connected client leaves no state behind
		if uerr := g.registry.Unregister(c.id); uerr != nil {
			g.log.Println("Unregister:", uerr)
		}
		return err
	}

	g.addSession(c)
	g.stats.Incr(metricNumConnections)
	g.log.Printf("connection %s authenticated as %s", c.id, user.Email)

	c.queueEvent(&ServerEvent{Event: EventUserAllRooms, Data: rooms})

	return nil
}

// Disconnect removes the connection from the session table and the registry.
// No further events are routed to it.
func (g *Gateway) Disconnect(c *Client) {
	if g.removeSession(c) {
		g.stats.Decr(metricNumConnections)
	}

	if err := g.registry.Unregister(c.id); err != nil {
		g.log.Println("Unregister:", err)
	}

	c.close()
	g.log.Printf("connection %s closed", c.id)
}

func (g *Gateway) dispatch(c *Client, ev *ClientEvent) error {
	switch ev.Event {
	case EventCreateRoom:
		return g.handleCreateRoom(c, ev.Data)
	case EventUpdateRoom:
		return g.handleUpdateRoom(c, ev.Data)
	case EventDeleteRoom:
		return g.handleDeleteRoom(c, ev.Data)
	case EventSendMessage:
		return g.handleSendMessage(c, ev.Data)
	default:
		return apperr.Validation("unknown event: "+ev.Event, "event")
	}
}

func (g *Gateway) handleCreateRoom(c *Client, data json.RawMessage) error {
	payload, err := decodePayload[CreateRoomPayload](data)
	if err != nil {
		return err
	}

	room, err := g.rooms.Create(c.user.Id, store.RoomSpec{
		Type: types.RoomType(payload.Type),
		Name: payload.Name,
	}, payload.Participants)
	if err != nil {
		return err
	}

	ev := &ServerEvent{Event: EventRoomCreated, Data: room.Room}
	if err := g.fanoutToUsers(room.Participants, ev); err != nil {
		// the creator alone is told delivery may have been partial
		return apperr.Fanout("room created, but some participants may not have been notified", err)
	}

	return nil
}

func (g *Gateway) handleUpdateRoom(c *Client, data json.RawMessage) error {
	payload, err := decodePayload[UpdateRoomPayload](data)
	if err != nil {
		return err
	}

	room, err := g.rooms.Update(c.user.Id, payload.RoomId, store.RoomPatch{
		Name:         payload.Name,
		Participants: payload.Participants,
	})
	if err != nil {
		return err
	}

	ev := &ServerEvent{Event: EventRoomUpdated, Data: room.Room}
	if err := g.fanoutToUsers(room.Participants, ev); err != nil {
		g.log.Println("updateRoom fanout:", err)
	}

	return nil
}

func (g *Gateway) handleDeleteRoom(c *Client, data json.RawMessage) error {
	payload, err := decodePayload[DeleteRoomPayload](data)
	if err != nil {
		return err
	}

	// load the room first: deletion is restricted to participants, and the
	// connections live at this moment are the ones notified afterwards
	room, err := g.rooms.FindOne(payload.RoomId)
	if err != nil {
		return err
	}

	isParticipant := lo.ContainsBy(room.Participants, func(u types.User) bool {
		return u.Id == c.user.Id
	})
	if !isParticipant {
		return apperr.Authorization("only participants may delete a room")
	}

	if err := g.rooms.Delete(payload.RoomId); err != nil {
		return err
	}

	ev := &ServerEvent{
		Event: EventRoomDeleted,
		Data:  fmt.Sprintf("room %s has been deleted", payload.RoomId),
	}
	for _, connIds := range room.ParticipantConnections {
		for _, connId := range connIds {
			if err := g.emit(connId, ev); err != nil {
				g.log.Printf("emit %s to %s: %v", ev.Event, connId, err)
				g.stats.Incr(metricFanoutFailures)
			}
		}
	}

	return nil
}

func (g *Gateway) handleSendMessage(c *Client, data json.RawMessage) error {
	payload, err := decodePayload[SendMessagePayload](data)
	if err != nil {
		return err
	}

	if _, err := g.messages.Create(c.user.Id, payload.RoomId, payload.Text); err != nil {
		return err
	}
	g.stats.Incr(metricMessagesSent)

	page, err := g.messages.FindByRoom(c.user.Id, payload.RoomId, store.PageRequest{})
	if err != nil {
		return err
	}

	room, err := g.rooms.FindOne(payload.RoomId)
	if err != nil {
		return err
	}

	ev := &ServerEvent{Event: EventMessageSent, Data: page}
	if err := g.fanoutToUsers(room.Participants, ev); err != nil {
		g.log.Println("sendMessage fanout:", err)
	}

	return nil
}

// fanoutToUsers emits ev to every live connection of every given user. A
// failure for one recipient never blocks delivery to the rest.
func (g *Gateway) fanoutToUsers(users []types.User, ev *ServerEvent) error {
	var errs []error
	for _, user := range users {
		connIds, err := g.registry.ConnectionsFor(user.Id)
		if err != nil {
			g.log.Printf("ConnectionsFor %s: %v", user.Id, err)
			errs = append(errs, err)
			continue
		}

		for _, connId := range connIds {
			if err := g.emit(connId, ev); err != nil {
				g.log.Printf("emit %s to %s: %v", ev.Event, connId, err)
				g.stats.Incr(metricFanoutFailures)
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// emit queues ev on the named connection. A connection absent from the
// session table has disconnected; that is not an error.
func (g *Gateway) emit(connectionId string, ev *ServerEvent) error {
	g.sessionsLock.RLock()
	c, ok := g.sessions[connectionId]
	g.sessionsLock.RUnlock()

	if !ok {
		return nil
	}

	if !c.queueEvent(ev) {
		return fmt.Errorf("send buffer full for connection %s", connectionId)
	}

	return nil
}

func (g *Gateway) addSession(c *Client) {
	g.sessionsLock.Lock()
	defer g.sessionsLock.Unlock()
	g.sessions[c.id] = c
}

func (g *Gateway) removeSession(c *Client) bool {
	g.sessionsLock.Lock()
	defer g.sessionsLock.Unlock()

	if _, ok := g.sessions[c.id]; ok {
		delete(g.sessions, c.id)
		return true
	}

	return false
}

// Shutdown closes every live connection.
func (g *Gateway) Shutdown() {
	g.sessionsLock.Lock()
	clients := make([]*Client, 0, len(g.sessions))
	for _, c := range g.sessions {
		clients = append(clients, c)
	}
	g.sessions = make(map[string]*Client)
	g.sessionsLock.Unlock()

	for _, c := range clients {
		c.close()
		if err := g.registry.Unregister(c.id); err != nil {
			g.log.Println("Unregister:", err)
		}
	}
}
