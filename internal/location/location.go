// Package location implements the realtime hub for one Ring location:
// the socket connection to the location's assets, device-list
// reconciliation, asset health tracking, and the alarm command
// protocol. REST operations scoped to the location live here too.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ringclient/ring-client-go/internal/api"
	"github.com/ringclient/ring-client-go/internal/devices"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
	"github.com/ringclient/ring-client-go/internal/rest"
	"github.com/ringclient/ring-client-go/internal/socket"
)

// reconnectDelay is the pause between losing a connection and
// re-establishing it.
const reconnectDelay = time.Second

// Requester is the REST surface the hub depends on, implemented by
// rest.Client.
type Requester interface {
	Request(ctx context.Context, spec rest.RequestSpec, out any) (*rest.ResponseMeta, error)
}

// hubConn is the slice of the socket connection the hub drives.
type hubConn interface {
	Emit(name string, payload any) error
	Close()
}

type dialFunc func(ctx context.Context, cfg socket.Config) (hubConn, error)

func defaultDial(ctx context.Context, cfg socket.Config) (hubConn, error) {
	return socket.Dial(ctx, cfg)
}

// Config describes one location as reported by the locations endpoint.
type Config struct {
	ID   string
	Name string

	// HasHubs gates the realtime connection; a location with no alarm
	// base station or beams bridge has nothing to connect to.
	HasHubs bool

	// HasAlarmBaseStation disables location-mode polling; locations
	// with an alarm use the panel mode instead.
	HasAlarmBaseStation bool

	// HasCameras enables location-mode switching for camera-only
	// locations.
	HasCameras bool

	// LocationModePollingSeconds enables debounced location-mode
	// polling when > 0 (camera-only locations).
	LocationModePollingSeconds int
}

// connectAttempt is a single in-flight connection establishment shared
// by every caller that needs the connection.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Location is the realtime hub for one location. All methods are safe
// for concurrent use.
type Location struct {
	cfg  Config
	rest Requester

	// test seams
	dialFn    dialFunc
	sleepFn   func(context.Context, time.Duration) error
	timeNow   func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer

	mu            sync.Mutex
	seq           int
	conn          hubConn
	attempt       *connectAttempt
	reconnecting  bool
	disconnected  bool
	assets        []api.Asset
	receivedLists map[string]bool
	offline       map[string]bool
	devices       map[string]*devices.Device
	order         []string
	snapshot      []*devices.Device
	setWaiters    []chan []*devices.Device
	msgWaiters    []*MessageWaiter
	setSubs       map[int]func([]*devices.Device)
	nextSubID     int
	securityPanel *devices.Device

	pollMu    sync.Mutex
	pollTimer *time.Timer

	pollInterval time.Duration

	modeMu      sync.Mutex
	modeSubs    []func(api.LocationMode)
	currentMode api.LocationMode
	haveMode    bool
}

// New builds the hub for one location. If the location has no alarm
// base station and mode polling is configured, an initial mode fetch
// runs in the background and keeps itself scheduled.
func New(cfg Config, rc Requester) *Location {
	l := &Location{
		cfg:           cfg,
		rest:          rc,
		dialFn:        defaultDial,
		sleepFn:       sleepContext,
		timeNow:       time.Now,
		afterFunc:     time.AfterFunc,
		receivedLists: map[string]bool{},
		offline:       map[string]bool{},
		devices:       map[string]*devices.Device{},
		setSubs:       map[int]func([]*devices.Device){},
		pollInterval:  time.Duration(cfg.LocationModePollingSeconds) * time.Second,
	}

	if !cfg.HasAlarmBaseStation && cfg.LocationModePollingSeconds > 0 {
		go func() {
			if _, err := l.GetLocationMode(context.Background()); err != nil {
				log.Printf("location: initial mode fetch for %s failed: %v", cfg.Name, err)
			}
		}()
	}
	return l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID returns the location id.
func (l *Location) ID() string { return l.cfg.ID }

// Name returns the location's display name.
func (l *Location) Name() string { return l.cfg.Name }

// ensureConnection returns once a live connection exists, joining any
// in-flight establishment rather than starting a second one.
func (l *Location) ensureConnection(ctx context.Context) error {
	if !l.cfg.HasHubs {
		return ringerrors.New(ringerrors.CodeAssetNone,
			fmt.Sprintf("location %s does not have any hubs", l.cfg.Name))
	}

	for {
		l.mu.Lock()
		if l.disconnected {
			l.mu.Unlock()
			return ringerrors.New(ringerrors.CodeSocketClosed, "location has been disconnected")
		}
		if l.conn != nil {
			l.mu.Unlock()
			return nil
		}
		attempt := l.attempt
		if attempt == nil {
			attempt = &connectAttempt{done: make(chan struct{})}
			l.attempt = attempt
			go l.runAttempt(attempt)
		}
		l.mu.Unlock()

		select {
		case <-attempt.done:
			if attempt.err != nil {
				return attempt.err
			}
			// Loop to pick up the stored connection.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Location) runAttempt(attempt *connectAttempt) {
	attempt.err = l.establish(context.Background())
	l.mu.Lock()
	l.attempt = nil
	l.mu.Unlock()
	close(attempt.done)
}

// establish performs one full connection sequence: ticket, asset
// filter, dial, and the initial device-list request to every asset.
// The received-list gate and offline tracking reset here so stale state
// from a previous connection never satisfies the new one.
func (l *Location) establish(ctx context.Context) error {
	log.Printf("location: creating realtime connection - %s", l.cfg.Name)

	var ticket api.SocketTicketResponse
	if _, err := l.rest.Request(ctx, rest.RequestSpec{
		URL: api.AppAPI("clap/tickets?locationID=" + l.cfg.ID),
	}, &ticket); err != nil {
		return err
	}

	var supported []api.Asset
	for _, asset := range ticket.Assets {
		if asset.IsSocketCapable() {
			supported = append(supported, asset)
		}
	}
	if len(supported) == 0 {
		err := ringerrors.NoAssets(l.cfg.Name, l.cfg.ID)
		log.Printf("location: %s", ringerrors.GetMessage(err))
		return err
	}

	l.mu.Lock()
	l.assets = supported
	l.receivedLists = map[string]bool{}
	l.offline = map[string]bool{}
	l.mu.Unlock()

	conn, err := l.dialFn(ctx, socket.Config{
		Host:    ticket.Host,
		Ticket:  ticket.Ticket,
		OnEvent: l.handleEvent,
		OnDisconnect: func(err error) {
			l.scheduleReconnect("connection lost")
		},
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.disconnected {
		l.mu.Unlock()
		conn.Close()
		return ringerrors.New(ringerrors.CodeSocketClosed, "location has been disconnected")
	}
	l.conn = conn
	l.reconnecting = false
	l.mu.Unlock()

	log.Printf("location: connected to realtime hub - %s", l.cfg.Name)

	for _, asset := range supported {
		if err := l.RequestList(ctx, api.MessageTypeDeviceInfoDocGetList, asset.UUID); err != nil {
			log.Printf("location: device list request to %s failed: %v", asset.UUID, err)
		}
	}
	return nil
}

// scheduleReconnect tears down the current connection and re-establishes
// it after a short delay. Repeated triggers while a reconnect is
// pending collapse into one.
func (l *Location) scheduleReconnect(reason string) {
	l.mu.Lock()
	if l.disconnected || l.reconnecting {
		l.mu.Unlock()
		return
	}
	l.reconnecting = true
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	log.Printf("location: reconnecting realtime connection - %s (%s)", l.cfg.Name, reason)

	go func() {
		for {
			if err := l.sleepFn(context.Background(), reconnectDelay); err != nil {
				return
			}
			err := l.ensureConnection(context.Background())
			if err == nil {
				return
			}
			if ringerrors.IsCode(err, ringerrors.CodeAssetNone) ||
				ringerrors.IsCode(err, ringerrors.CodeSocketClosed) && l.isDisconnected() {
				log.Printf("location: giving up on reconnect - %s: %v", l.cfg.Name, err)
				return
			}
			log.Printf("location: reconnect attempt failed - %s: %v", l.cfg.Name, err)
		}
	}()
}

func (l *Location) isDisconnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disconnected
}

// handleEvent dispatches inbound socket events.
func (l *Location) handleEvent(name string, body json.RawMessage) {
	var m api.Message
	if err := json.Unmarshal(body, &m); err != nil {
		log.Printf("location: dropping malformed %s event: %v", name, err)
		return
	}

	switch name {
	case "message":
		l.handleMessage(&m)
	case "DataUpdate":
		if m.Datatype == api.DatatypeHubDisconnection {
			l.scheduleReconnect("hub requested disconnect")
			return
		}
		l.handleDataUpdate(&m)
	}
}

// Disconnect permanently tears the hub down: the terminal flag is set
// synchronously, so reconnect loops and in-flight establishes observe
// it and stop.
func (l *Location) Disconnect() {
	l.mu.Lock()
	if l.disconnected {
		l.mu.Unlock()
		return
	}
	l.disconnected = true
	conn := l.conn
	l.conn = nil
	l.setSubs = map[int]func([]*devices.Device){}
	waiters := l.msgWaiters
	l.msgWaiters = nil
	setWaiters := l.setWaiters
	l.setWaiters = nil
	l.mu.Unlock()

	l.pollMu.Lock()
	if l.pollTimer != nil {
		l.pollTimer.Stop()
		l.pollTimer = nil
	}
	l.pollMu.Unlock()

	for _, w := range waiters {
		w.cancelLocked()
	}
	for _, ch := range setWaiters {
		close(ch)
	}
	if conn != nil {
		conn.Close()
	}
}
