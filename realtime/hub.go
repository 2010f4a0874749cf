package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// Identity is what the connection proved about itself at upgrade time. A nil
// Identity is an anonymous customer device.
type Identity struct {
	UserID       uint
	Role         string
	RestaurantID uint
}

// Hub groups websocket clients into rooms and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister drops the client from every room and closes its send channel.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// RoomSize reports how many clients are currently in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// EmitToRoom implements Broadcaster. A client whose send buffer is full
// misses the frame; that client is reported in the returned error.
func (h *Hub) EmitToRoom(room, event string, payload interface{}) error {
	data, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"room":    room,
			"event":   event,
			"dropped": dropped,
		}).Warn("realtime: slow clients skipped")
		return fmt.Errorf("%s to %s: %d client(s) dropped", event, room, dropped)
	}
	return nil
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinStaffRequest struct {
	RestaurantID flexID `json:"restaurantId"`
	UserID       flexID `json:"userId"`
}

type joinTableRequest struct {
	RestroID flexID `json:"restroId"`
	TableID  flexID `json:"tableId"`
}

type leaveRequest struct {
	Room string `json:"room"`
}

// handle processes one client message and returns the control event to
// acknowledge it with and the room it affected.
func (h *Hub) handle(c *Client, raw []byte) (string, string, error) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", "", errors.New("malformed message")
	}

	switch msg.Event {
	case JoinStaffRoom:
		var req joinStaffRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.RestaurantID == 0 {
			return "", "", errors.New("join_staff_room requires restaurantId")
		}
		if err := authorizeStaff(c.identity, uint(req.RestaurantID), uint(req.UserID)); err != nil {
			return "", "", err
		}
		room := StaffRoom(uint(req.RestaurantID))
		h.join(c, room)
		return EventJoined, room, nil

	case JoinTableRoom:
		var req joinTableRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.RestroID == 0 || req.TableID == 0 {
			return "", "", errors.New("join_table_room requires restroId and tableId")
		}
		room := TableRoom(uint(req.RestroID), uint(req.TableID))
		h.join(c, room)
		return EventJoined, room, nil

	case JoinPublicRoom:
		var id flexID
		if err := json.Unmarshal(msg.Data, &id); err != nil || id == 0 {
			return "", "", errors.New("join_public_room requires a restaurant id")
		}
		room := PublicRoom(uint(id))
		h.join(c, room)
		return EventJoined, room, nil

	case LeaveRoom:
		var req leaveRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Room == "" {
			return "", "", errors.New("leave_room requires room")
		}
		h.leave(c, req.Room)
		return EventLeft, req.Room, nil
	}
	return "", "", fmt.Errorf("unknown event %q", msg.Event)
}

// authorizeStaff only lets authenticated staff of the restaurant into its
// staff room.
func authorizeStaff(id *Identity, restaurantID, claimedUserID uint) error {
	if id == nil {
		return errors.New("staff room requires an authenticated connection")
	}
	if !models.IsStaffRole(id.Role) {
		return errors.New("staff room requires a staff role")
	}
	if id.RestaurantID != restaurantID {
		return errors.New("not staff of this restaurant")
	}
	if claimedUserID != 0 && claimedUserID != id.UserID {
		return errors.New("userId does not match the connection")
	}
	return nil
}

// flexID accepts identifiers sent either as JSON numbers or numeric strings.
type flexID uint

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*f = flexID(n)
	return nil
}
