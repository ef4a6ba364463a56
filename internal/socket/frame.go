package socket

import (
	"encoding/json"
	"fmt"
)

// The hub speaks socket.io over a websocket-only engine.io v3 transport.
// Frames are text: an engine.io type digit, then for message frames a
// socket.io type digit, then the payload. The frames this client needs:
//
//	0{...}          engine.io open (handshake JSON)
//	1               engine.io close
//	2 / 3           engine.io ping / pong (client-initiated)
//	40              socket.io connect ack for the default namespace
//	41              socket.io disconnect
//	42["name",{}]   socket.io event
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'

	packetConnect    = '0'
	packetDisconnect = '1'
	packetEvent      = '2'
)

// handshake is the engine.io open payload. Intervals are milliseconds.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// encodeEvent builds a socket.io event frame: 42["name",payload].
func encodeEvent(name string, payload any) ([]byte, error) {
	args, err := json.Marshal([]any{name, payload})
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(args)+2)
	frame = append(frame, engineMessage, packetEvent)
	return append(frame, args...), nil
}

// decodeEvent parses the payload of a 42 frame into the event name and
// its first argument. Events with no argument yield a nil body.
func decodeEvent(payload []byte) (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(payload, &args); err != nil {
		return "", nil, fmt.Errorf("malformed event frame: %w", err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("event frame with no name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("malformed event name: %w", err)
	}
	if len(args) < 2 {
		return name, nil, nil
	}
	return name, args[1], nil
}
