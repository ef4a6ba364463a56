package api

import "encoding/json"

// MessageType identifies the kind of message carried over the realtime
// socket. These match the `msg` field used by Ring hubs.
type MessageType string

const (
	// MessageTypeDeviceInfoDocGetList requests (or carries) an asset's
	// full device list. Sent to each asset on connect, and again when an
	// asset recovers from an offline period.
	MessageTypeDeviceInfoDocGetList MessageType = "DeviceInfoDocGetList"

	// MessageTypeDeviceInfoSet writes device info or commands to a device.
	MessageTypeDeviceInfoSet MessageType = "DeviceInfoSet"

	// MessageTypeRoomGetList requests the room list from an asset.
	MessageTypeRoomGetList MessageType = "RoomGetList"

	// MessageTypeSessionInfo carries per-asset connectivity status on the
	// DataUpdate channel.
	MessageTypeSessionInfo MessageType = "SessionInfo"
)

// Datatype values seen in message envelopes.
const (
	// DatatypeDeviceInfoDoc marks a DataUpdate carrying device attribute
	// changes.
	DatatypeDeviceInfoDoc = "DeviceInfoDocType"

	// DatatypeDeviceInfoSet marks an outbound DeviceInfoSet body.
	DatatypeDeviceInfoSet = "DeviceInfoSetType"

	// DatatypeHubDisconnection is an explicit server signal that the hub
	// connection is going away and the client should reconnect.
	DatatypeHubDisconnection = "HubDisconnectionEventType"
)

// Message is the envelope for all realtime socket messages.
// Seq is assigned by the location immediately before transmission and is
// strictly increasing for the lifetime of a Location, including across
// reconnects.
type Message struct {
	// Msg identifies what kind of message this is.
	Msg MessageType `json:"msg"`

	// Seq is the per-connection sequence number. Zero until assigned.
	Seq int `json:"seq,omitempty"`

	// Src is the uuid of the asset that produced the message.
	Src string `json:"src,omitempty"`

	// Dst is the uuid of the asset the message is addressed to.
	Dst string `json:"dst,omitempty"`

	// Datatype further qualifies the body for some message kinds.
	Datatype string `json:"datatype,omitempty"`

	// Body contains the message-specific payload. It is left raw so each
	// handler can decode the shape it expects.
	Body json.RawMessage `json:"body,omitempty"`
}

// SessionInfoEntry is one element of a SessionInfo body: the
// connectivity status of a single asset.
type SessionInfoEntry struct {
	AssetUUID        string `json:"assetUuid"`
	ConnectionStatus string `json:"connectionStatus"`
}

// ConnectionStatusOnline is the SessionInfo status for a reachable asset.
// Anything else is treated as offline or on cellular backup.
const ConnectionStatusOnline = "online"
