// Package devices provides the generic projection of one hub-managed
// device: a stable identity keyed by zid, the device's flattened
// attribute record, change subscriptions, and the write path back
// through the location's realtime connection.
package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/ringclient/ring-client-go/internal/api"
)

// Messenger sends envelopes over the location's realtime connection.
// Implemented by location.Location.
type Messenger interface {
	SendMessage(ctx context.Context, m *api.Message) error
}

// Device is one device record within a location. Instances are created
// by the location during reconciliation and persist for the lifetime of
// the location; attribute updates mutate the record in place rather
// than replacing it.
type Device struct {
	zid       string
	assetID   string
	messenger Messenger

	mu            sync.Mutex
	data          api.DeviceData
	subscribers   map[int]func(api.DeviceData)
	nextSubID     int
	updateWaiters []chan api.DeviceData
}

// New builds a device from its first observed attribute record. The
// assetID is the hub the device was reported by, and is the destination
// for all writes to the device.
func New(data api.DeviceData, assetID string, messenger Messenger) *Device {
	return &Device{
		zid:         data.ZID(),
		assetID:     assetID,
		messenger:   messenger,
		data:        data,
		subscribers: map[int]func(api.DeviceData){},
	}
}

// ZID returns the zone id, the device's stable identity within its
// location.
func (d *Device) ZID() string { return d.zid }

// AssetID returns the uuid of the asset that owns this device.
func (d *Device) AssetID() string { return d.assetID }

// Data returns the current attribute record. Callers must treat it as
// read-only; it is the same record the location merges updates into.
func (d *Device) Data() api.DeviceData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data
}

// Name returns the user-assigned device name.
func (d *Device) Name() string { return d.Data().Name() }

// DeviceType returns the device type tag.
func (d *Device) DeviceType() string { return d.Data().DeviceType() }

// OnData subscribes to attribute updates. The callback fires
// immediately with the current record, then once per update. The
// returned func cancels the subscription.
func (d *Device) OnData(fn func(api.DeviceData)) (cancel func()) {
	d.mu.Lock()
	id := d.nextSubID
	d.nextSubID++
	d.subscribers[id] = fn
	current := d.data
	d.mu.Unlock()

	fn(current)

	return func() {
		d.mu.Lock()
		delete(d.subscribers, id)
		d.mu.Unlock()
	}
}

// NextUpdate returns a channel that receives the attribute record after
// the next update, skipping the current value. Used to confirm that a
// command took effect.
func (d *Device) NextUpdate() <-chan api.DeviceData {
	ch := make(chan api.DeviceData, 1)
	d.mu.Lock()
	d.updateWaiters = append(d.updateWaiters, ch)
	d.mu.Unlock()
	return ch
}

// UpdateData merges an update into the record in place and notifies
// subscribers and waiters. Called by the location for both full list
// responses and incremental DataUpdate pushes.
func (d *Device) UpdateData(update api.DeviceData) {
	d.mu.Lock()
	d.data.Merge(update)
	data := d.data
	subs := make([]func(api.DeviceData), 0, len(d.subscribers))
	for _, fn := range d.subscribers {
		subs = append(subs, fn)
	}
	waiters := d.updateWaiters
	d.updateWaiters = nil
	d.mu.Unlock()

	for _, fn := range subs {
		fn(data)
	}
	for _, ch := range waiters {
		ch <- data
	}
}

// SetInfo writes attribute groups to the device via a DeviceInfoSet
// message addressed to its asset.
func (d *Device) SetInfo(ctx context.Context, body map[string]any) error {
	entry := map[string]any{"zid": d.zid}
	for k, v := range body {
		entry[k] = v
	}
	raw, err := json.Marshal([]map[string]any{entry})
	if err != nil {
		return err
	}
	return d.messenger.SendMessage(ctx, &api.Message{
		Msg:      api.MessageTypeDeviceInfoSet,
		Datatype: api.DatatypeDeviceInfoSet,
		Dst:      d.assetID,
		Body:     raw,
	})
}

// SendCommand issues a device command through the command.v1 group.
func (d *Device) SendCommand(ctx context.Context, commandType string, data any) error {
	if data == nil {
		data = map[string]any{}
	}
	return d.SetInfo(ctx, map[string]any{
		"command": map[string]any{
			"v1": []map[string]any{
				{"commandType": commandType, "data": data},
			},
		},
	})
}

// SupportsVolume reports whether the device accepts a volume setting:
// its type must be volume-capable and the attribute must be present.
func (d *Device) SupportsVolume() bool {
	data := d.Data()
	_, hasVolume := data.Volume()
	return hasVolume && slices.Contains(api.DeviceTypesWithVolume, data.DeviceType())
}

// SetVolume writes the device volume. Volume is a fraction in [0, 1].
func (d *Device) SetVolume(ctx context.Context, volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1")
	}
	if !d.SupportsVolume() {
		return fmt.Errorf("volume can only be set on %v", api.DeviceTypesWithVolume)
	}
	return d.SetInfo(ctx, map[string]any{
		"device": map[string]any{
			"v1": map[string]any{"volume": volume},
		},
	})
}
