package notify

import (
	"encoding/json"
	"errors"

	"github.com/coder/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// FrameType identifies a relay frame.
type FrameType string

const (
	FrameJoin  FrameType = "join"  // client → hub
	FrameLeave FrameType = "leave" // client → hub
	FrameAck   FrameType = "ack"   // hub → client, confirms join or leave
	FrameEvent FrameType = "event" // hub → client
	FrameError FrameType = "error" // hub → client
)

// Frame is the unit exchanged over a relay websocket.
type Frame struct {
	Type  FrameType `json:"t" msgpack:"t"`
	Room  string    `json:"room,omitempty" msgpack:"room,omitempty"`
	Event *Event    `json:"event,omitempty" msgpack:"event,omitempty"`
	Error string    `json:"error,omitempty" msgpack:"error,omitempty"`
}

// ErrUnknownCodec is returned for an unsupported codec name.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec encodes relay frames. The websocket subprotocol selects it.
type Codec interface {
	Encode(f Frame) ([]byte, error)
	Decode(data []byte) (Frame, error)

	// Name is the short name used in configuration ("json", "msgpack").
	Name() string

	// Subprotocol is negotiated during the websocket handshake.
	Subprotocol() string

	// MessageType is the websocket frame type used on the wire.
	MessageType() websocket.MessageType
}

// JSONCodec is the default codec.
type JSONCodec struct{}

func (JSONCodec) Encode(f Frame) ([]byte, error) { return json.Marshal(f) }

func (JSONCodec) Decode(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

func (JSONCodec) Name() string                       { return "json" }
func (JSONCodec) Subprotocol() string                { return "greonxpert.json" }
func (JSONCodec) MessageType() websocket.MessageType { return websocket.MessageText }

// MsgpackCodec is the compact binary codec.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(f Frame) ([]byte, error) { return msgpack.Marshal(f) }

func (MsgpackCodec) Decode(data []byte) (Frame, error) {
	var f Frame
	err := msgpack.Unmarshal(data, &f)
	return f, err
}

func (MsgpackCodec) Name() string                       { return "msgpack" }
func (MsgpackCodec) Subprotocol() string                { return "greonxpert.msgpack" }
func (MsgpackCodec) MessageType() websocket.MessageType { return websocket.MessageBinary }

// Codecs lists the supported codecs in server preference order.
var Codecs = []Codec{JSONCodec{}, MsgpackCodec{}}

// CodecByName returns the codec called name.
func CodecByName(name string) (Codec, error) {
	for _, c := range Codecs {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, ErrUnknownCodec
}

// codecForSubprotocol returns the codec negotiated for a connection; an
// empty subprotocol means JSON.
func codecForSubprotocol(sp string) Codec {
	for _, c := range Codecs {
		if c.Subprotocol() == sp {
			return c
		}
	}
	return JSONCodec{}
}

func subprotocols() []string {
	out := make([]string, len(Codecs))
	for i, c := range Codecs {
		out[i] = c.Subprotocol()
	}
	return out
}
