// Package chathub tracks live connections and fans room events out to them.
// One Hub runs per process; processes are bridged through Redis pub/sub, so
// a message published anywhere reaches subscribed connections everywhere.
package chathub

import (
	"context"
	"encoding/json"
	"log"

	"omilia/backend/internal/metrics"
	"omilia/backend/internal/models"
	"omilia/backend/internal/rooms"
	"omilia/backend/internal/storage"
)

// Hub owns the connection presence maps. All map access happens on the Run
// goroutine; other goroutines talk to it over channels.
type Hub struct {
	Storage storage.Storage
	Rooms   *rooms.Service

	// conns is the forward index; byUser is the reverse index, at most one
	// live connection per user (a reconnect silently replaces the old one).
	conns  map[string]Conn
	byUser map[string]string

	RegisterCh   chan Conn
	UnregisterCh chan Conn
	IncomingCh   chan Inbound

	broadcastCh chan models.Event
	presenceCh  chan presenceUpdate
	done        chan struct{}
}

type presenceUpdate struct {
	userID string
	roomID string // "" means the user left their room
}

// NewHub constructs the hub. Call Run in its own goroutine and then
// SetPresenceNotifier(hub) on the rooms service.
func NewHub(s storage.Storage, r *rooms.Service) *Hub {
	return &Hub{
		Storage:      s,
		Rooms:        r,
		conns:        make(map[string]Conn),
		byUser:       make(map[string]string),
		RegisterCh:   make(chan Conn),
		UnregisterCh: make(chan Conn),
		IncomingCh:   make(chan Inbound),
		broadcastCh:  make(chan models.Event, 64),
		presenceCh:   make(chan presenceUpdate, 64),
		done:         make(chan struct{}),
	}
}

// UserJoined implements rooms.PresenceNotifier: a REST join subscribes the
// user's live connection (if any) to the room's fan-out.
func (h *Hub) UserJoined(userID, roomID string) {
	select {
	case h.presenceCh <- presenceUpdate{userID: userID, roomID: roomID}:
	case <-h.done:
	}
}

// UserLeft implements rooms.PresenceNotifier.
func (h *Hub) UserLeft(userID string) {
	select {
	case h.presenceCh <- presenceUpdate{userID: userID}:
	case <-h.done:
	}
}

// Run is the hub dispatcher. It also starts the Redis pub/sub listener that
// bridges events from other processes into broadcastCh.
func (h *Hub) Run() {
	go h.listenPubSub()

	for {
		select {
		case c := <-h.RegisterCh:
			h.register(c)

		case c := <-h.UnregisterCh:
			h.unregister(c)

		case in := <-h.IncomingCh:
			h.handleFrame(in)

		case ev := <-h.broadcastCh:
			h.fanOut(ev)

		case up := <-h.presenceCh:
			if connID, ok := h.byUser[up.userID]; ok {
				if c, ok := h.conns[connID]; ok {
					c.SetRoom(up.roomID)
				}
			}

		case <-h.done:
			for _, c := range h.conns {
				c.Close()
			}
			return
		}
	}
}

// Stop shuts the hub down and closes every tracked connection.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) register(c Conn) {
	userID := c.User().RedisID()

	// A second connection for the same user replaces the first.
	if oldID, ok := h.byUser[userID]; ok {
		if old, ok := h.conns[oldID]; ok {
			delete(h.conns, oldID)
			old.Close()
			metrics.ActiveConnections.Dec()
		}
	}

	h.conns[c.ID()] = c
	h.byUser[userID] = c.ID()
	metrics.ActiveConnections.Inc()
	log.Printf("INFO: user %s connected (conn=%s)", c.User().Username, c.ID())
}

// unregister is idempotent: a connection already replaced or never
// registered is a no-op.
func (h *Hub) unregister(c Conn) {
	cur, ok := h.conns[c.ID()]
	if !ok || cur != c {
		return
	}
	delete(h.conns, c.ID())
	if h.byUser[c.User().RedisID()] == c.ID() {
		delete(h.byUser, c.User().RedisID())
	}
	c.Close()
	metrics.ActiveConnections.Dec()
	log.Printf("INFO: user %s disconnected (conn=%s)", c.User().Username, c.ID())
}

// handleFrame routes one inbound frame. Store calls inside are bounded by
// the storage timeout, so a dead Redis cannot wedge the dispatcher.
func (h *Hub) handleFrame(in Inbound) {
	// A frame can still be in flight from a connection that a reconnect has
	// already replaced; its send channel is closed, so writing anything back
	// to it would panic the dispatcher.
	if cur, ok := h.conns[in.Conn.ID()]; !ok || cur != in.Conn {
		return
	}

	switch in.Frame.Type {
	case models.FrameSendMessage:
		roomID := in.Conn.Room()
		if roomID == "" {
			h.sendError(in.Conn, rooms.ErrNotInRoom.Error())
			return
		}
		if _, err := h.Rooms.Send(context.Background(), in.Conn.User(), roomID, in.Frame.Message); err != nil {
			h.sendError(in.Conn, err.Error())
		}
	default:
		h.sendError(in.Conn, "unknown frame type")
	}
}

// fanOut delivers an event to every local connection subscribed to its
// room. A connection whose send buffer is full is dropped rather than
// allowed to stall the dispatcher.
func (h *Hub) fanOut(ev models.Event) {
	for _, c := range h.conns {
		if c.Room() != ev.RoomID {
			continue
		}
		select {
		case c.SendCh() <- ev:
		default:
			log.Printf("WARNING: dropping slow connection %s", c.ID())
			h.unregister(c)
		}
	}
}

// sendError pushes an error event to a single connection, best-effort.
func (h *Hub) sendError(c Conn, msg string) {
	ev := models.NewEvent("", models.EventError, models.ErrorPayload{Error: msg})
	select {
	case c.SendCh() <- ev:
	default:
	}
}

// listenPubSub bridges the Redis room channels into the hub loop.
func (h *Hub) listenPubSub() {
	pubsub := h.Storage.SubscribeRooms(context.Background())
	if pubsub == nil {
		return
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("ERROR: malformed pub/sub payload on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case h.broadcastCh <- ev:
			case <-h.done:
				return
			}
		case <-h.done:
			return
		}
	}
}
