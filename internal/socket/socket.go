// Package socket implements the minimal socket.io-over-websocket client
// the Ring hub speaks: engine.io v3, websocket transport only, no acks.
package socket

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

const (
	handshakeTimeout    = 10 * time.Second
	writeTimeout        = 10 * time.Second
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 60 * time.Second
)

// Config carries the dial target and the callbacks a connection
// dispatches to. Callbacks run on the read goroutine, so they must not
// block on the connection's own Emit.
type Config struct {
	// Host and Ticket come from the ticket endpoint and are assembled
	// into wss://{host}/?authcode={ticket}&ack=false&EIO=3.
	Host   string
	Ticket string

	// OnEvent receives every socket.io event ("message", "DataUpdate")
	// with its first argument as raw JSON.
	OnEvent func(name string, body json.RawMessage)

	// OnDisconnect fires exactly once when the connection dies for any
	// reason other than a local Close.
	OnDisconnect func(err error)

	// scheme overrides the wss dial scheme, set by tests dialing an
	// in-process server.
	scheme string
}

// Conn is a live hub connection. All methods are safe for concurrent
// use. A Conn is single-use: once closed or disconnected it cannot be
// redialed.
type Conn struct {
	cfg  Config
	conn *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once

	pingInterval time.Duration
	pingTimeout  time.Duration

	closedLocally bool
	closedMu      sync.Mutex
}

// Dial connects, completes the engine.io handshake, and waits for the
// socket.io connect ack before returning, so a returned Conn is ready
// to Emit on.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	scheme := cfg.scheme
	if scheme == "" {
		scheme = "wss"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     cfg.Host,
		Path:     "/",
		RawQuery: "authcode=" + url.QueryEscape(cfg.Ticket) + "&ack=false&EIO=3",
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, ringerrors.Wrap(ringerrors.CodeSocketDialFailed, "websocket dial failed", err)
	}

	c := &Conn{
		cfg:          cfg,
		conn:         ws,
		send:         make(chan []byte, 16),
		done:         make(chan struct{}),
		pingInterval: defaultPingInterval,
		pingTimeout:  defaultPingTimeout,
	}

	if err := c.awaitConnect(); err != nil {
		ws.Close()
		return nil, err
	}

	go c.readPump()
	go c.writePump()
	return c, nil
}

// awaitConnect consumes frames until both the engine.io open packet and
// the socket.io connect ack for the default namespace have arrived.
func (c *Conn) awaitConnect() error {
	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	opened, connected := false, false
	for !opened || !connected {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return ringerrors.Wrap(ringerrors.CodeSocketDialFailed, "handshake read failed", err)
		}
		if len(frame) == 0 {
			continue
		}

		switch frame[0] {
		case engineOpen:
			var hs handshake
			if err := json.Unmarshal(frame[1:], &hs); err != nil {
				return ringerrors.Wrap(ringerrors.CodeSocketBadPacket, "malformed open packet", err)
			}
			if hs.PingInterval > 0 {
				c.pingInterval = time.Duration(hs.PingInterval) * time.Millisecond
			}
			if hs.PingTimeout > 0 {
				c.pingTimeout = c.pingInterval + time.Duration(hs.PingTimeout)*time.Millisecond
			}
			opened = true

		case engineMessage:
			if len(frame) >= 2 && frame[1] == packetConnect {
				connected = true
			}

		case engineClose:
			return ringerrors.New(ringerrors.CodeSocketClosed, "server closed connection during handshake")
		}
	}
	return nil
}

// Emit sends a socket.io event with a single JSON argument.
func (c *Conn) Emit(name string, payload any) error {
	frame, err := encodeEvent(name, payload)
	if err != nil {
		return ringerrors.Wrap(ringerrors.CodeSocketSendFailed, "encoding event failed", err)
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ringerrors.New(ringerrors.CodeSocketClosed, "connection is closed")
	}
}

// Close tears the connection down. OnDisconnect does not fire for a
// local close. Safe to call multiple times.
func (c *Conn) Close() {
	c.closedMu.Lock()
	c.closedLocally = true
	c.closedMu.Unlock()
	c.shutdown()
}

func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
	})
}

// writePump owns all writes: queued event frames, the engine.io ping
// keepalive, and the final close frame.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("socket: write error: %v", err)
				c.shutdown()
				return
			}

		case <-ticker.C:
			// engine.io v3 keepalive is client-initiated.
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte{enginePing}); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

// readPump dispatches inbound frames until the connection dies, then
// reports the disconnect unless it was locally initiated.
func (c *Conn) readPump() {
	var readErr error
	defer func() {
		c.shutdown()

		c.closedMu.Lock()
		local := c.closedLocally
		c.closedMu.Unlock()

		if !local && c.cfg.OnDisconnect != nil {
			c.cfg.OnDisconnect(readErr)
		}
	}()

	c.conn.SetReadLimit(1024 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(c.pingTimeout))

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				log.Printf("socket: read error: %v", err)
			}
			readErr = ringerrors.Wrap(ringerrors.CodeSocketClosed, "connection lost", err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.pingTimeout))

		if len(frame) == 0 {
			continue
		}
		switch frame[0] {
		case enginePong:
			// Deadline already pushed above.

		case engineClose:
			readErr = ringerrors.New(ringerrors.CodeSocketClosed, "server closed connection")
			return

		case engineMessage:
			c.handlePacket(frame[1:])
		}
	}
}

func (c *Conn) handlePacket(packet []byte) {
	if len(packet) == 0 {
		return
	}
	switch packet[0] {
	case packetEvent:
		name, body, err := decodeEvent(packet[1:])
		if err != nil {
			log.Printf("socket: dropping packet: %v", err)
			return
		}
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(name, body)
		}

	case packetDisconnect:
		// Shutting down closes the underlying conn, which unblocks the
		// read loop and reports the disconnect.
		log.Printf("socket: server requested namespace disconnect")
		c.shutdown()
	}
}
