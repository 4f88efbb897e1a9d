// Package notify carries server-side change notifications to open admin
// views: a websocket relay organised in rooms, a reconnecting client, and
// panels that keep a room's list current through a pure reducer.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// Action is what happened to the records in an event.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"

	// ActionRefresh asks a panel to refetch its list. The client emits it
	// after every (re)join.
	ActionRefresh Action = "refresh"
)

// Rooms served by the admin dashboard. Each is also the REST resource a
// panel refetches.
const (
	RoomStories           = "stories"
	RoomTestimonials      = "testimonials"
	RoomAdvisoryBoard     = "advisory-board"
	RoomSolutions         = "solutions"
	RoomContactForms      = "contact-forms"
	RoomTrustedBy         = "trusted-by"
	RoomScienceFrameworks = "science-frameworks"
)

// Rooms lists every dashboard room.
var Rooms = []string{
	RoomStories,
	RoomTestimonials,
	RoomAdvisoryBoard,
	RoomSolutions,
	RoomContactForms,
	RoomTrustedBy,
	RoomScienceFrameworks,
}

var roomPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ValidRoom reports whether name can be joined.
func ValidRoom(name string) bool {
	return roomPattern.MatchString(name)
}

// Item is one record as sent by the server.
type Item map[string]any

// ID returns the record id: "_id", falling back to "id". Numeric ids are
// formatted without a fraction.
func (it Item) ID() string {
	for _, key := range []string{"_id", "id"} {
		switch v := it[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		case uint64:
			return strconv.FormatUint(v, 10)
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Event is one push notification.
type Event struct {
	Room    string `json:"room,omitempty" msgpack:"room,omitempty"`
	Success bool   `json:"success" msgpack:"success"`
	Action  Action `json:"action" msgpack:"action"`
	Data    []Item `json:"data,omitempty" msgpack:"data,omitempty"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
}

// UnmarshalJSON accepts data as either an array of records or a single
// record.
func (e *Event) UnmarshalJSON(b []byte) error {
	type plain Event
	var raw struct {
		plain
		Data json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Event(raw.plain)
	e.Data = nil

	data := bytes.TrimSpace(raw.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '[':
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return fmt.Errorf("event data: %w", err)
		}
	default:
		var one Item
		if err := json.Unmarshal(data, &one); err != nil {
			return fmt.Errorf("event data: %w", err)
		}
		e.Data = []Item{one}
	}
	return nil
}
