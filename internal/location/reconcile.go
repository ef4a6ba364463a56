package location

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ringclient/ring-client-go/internal/api"
	"github.com/ringclient/ring-client-go/internal/devices"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

// handleMessage routes a "message" event: one-shot waiters first, then
// device-list reconciliation.
func (l *Location) handleMessage(m *api.Message) {
	for _, w := range l.takeMatchingWaiters(m) {
		w.ch <- m.Body
	}
	if m.Msg == api.MessageTypeDeviceInfoDocGetList {
		l.reconcileDeviceList(m)
	}
}

// reconcileDeviceList folds one asset's device list into the
// accumulated device set. Known devices are updated in place so their
// identity (and any subscriptions hanging off them) survives; new
// devices are appended. The complete set is published only once every
// known asset has reported at least one list since the last
// (re)connect.
func (l *Location) reconcileDeviceList(m *api.Message) {
	list, err := api.ParseDeviceList(m.Body)
	if err != nil {
		log.Printf("location: dropping malformed device list from %s: %v", m.Src, err)
		return
	}
	if list == nil {
		return
	}

	type pendingUpdate struct {
		device *devices.Device
		data   api.DeviceData
	}
	var updates []pendingUpdate

	l.mu.Lock()
	if m.Src != "" {
		l.receivedLists[m.Src] = true
	}
	for _, flat := range list {
		zid := flat.ZID()
		if zid == "" {
			continue
		}
		if existing, ok := l.devices[zid]; ok {
			updates = append(updates, pendingUpdate{existing, flat})
			continue
		}
		l.devices[zid] = devices.New(flat, m.Src, l)
		l.order = append(l.order, zid)
	}

	var snapshot []*devices.Device
	var waiters []chan []*devices.Device
	var subs []func([]*devices.Device)
	if l.listCompleteLocked() {
		snapshot = l.deviceSliceLocked()
		notify := l.snapshot == nil || len(snapshot) != len(l.snapshot)
		l.snapshot = snapshot
		waiters = l.setWaiters
		l.setWaiters = nil
		if notify {
			for _, fn := range l.setSubs {
				subs = append(subs, fn)
			}
		}
	}
	l.mu.Unlock()

	for _, u := range updates {
		u.device.UpdateData(u.data)
	}
	for _, ch := range waiters {
		ch <- snapshot
	}
	for _, fn := range subs {
		fn(snapshot)
	}
}

// listCompleteLocked reports whether every known asset has delivered a
// device list since the gate was last re-armed.
func (l *Location) listCompleteLocked() bool {
	if len(l.assets) == 0 {
		return false
	}
	for _, asset := range l.assets {
		if !l.receivedLists[asset.UUID] {
			return false
		}
	}
	return true
}

func (l *Location) deviceSliceLocked() []*devices.Device {
	out := make([]*devices.Device, 0, len(l.order))
	for _, zid := range l.order {
		out = append(out, l.devices[zid])
	}
	return out
}

// handleDataUpdate routes a DataUpdate event: connectivity transitions
// for SessionInfo, incremental attribute merges for device info docs.
func (l *Location) handleDataUpdate(m *api.Message) {
	switch {
	case m.Msg == api.MessageTypeSessionInfo:
		var entries []api.SessionInfoEntry
		if err := json.Unmarshal(m.Body, &entries); err != nil {
			log.Printf("location: dropping malformed session info: %v", err)
			return
		}
		l.applySessionInfo(entries)

	case m.Datatype == api.DatatypeDeviceInfoDoc && len(m.Body) > 0:
		list, err := api.ParseDeviceList(m.Body)
		if err != nil {
			log.Printf("location: dropping malformed device update: %v", err)
			return
		}
		for _, flat := range list {
			l.mu.Lock()
			device := l.devices[flat.ZID()]
			l.mu.Unlock()
			if device != nil {
				device.UpdateData(flat)
			}
		}
	}
}

// applySessionInfo tracks per-asset connectivity. Going offline is
// recorded once and warned about once no matter how many reports
// repeat it. Coming back online clears the record and re-requests the
// asset's device list, since updates were missed while it was away.
func (l *Location) applySessionInfo(entries []api.SessionInfoEntry) {
	for _, entry := range entries {
		l.mu.Lock()
		var asset *api.Asset
		for i := range l.assets {
			if l.assets[i].UUID == entry.AssetUUID {
				asset = &l.assets[i]
				break
			}
		}
		if asset == nil {
			// Not an asset we track; nothing to do.
			l.mu.Unlock()
			continue
		}
		wasOffline := l.offline[entry.AssetUUID]

		if entry.ConnectionStatus == api.ConnectionStatusOnline {
			if !wasOffline {
				l.mu.Unlock()
				continue
			}
			delete(l.offline, entry.AssetUUID)
			kind := asset.Kind
			l.mu.Unlock()

			log.Printf("location: %s %s has come back online", kind, entry.AssetUUID)
			go func(uuid string) {
				if err := l.RequestList(context.Background(), api.MessageTypeDeviceInfoDocGetList, uuid); err != nil {
					log.Printf("location: device list refresh for %s failed: %v", uuid, err)
				}
			}(entry.AssetUUID)
			continue
		}

		if wasOffline {
			l.mu.Unlock()
			continue
		}
		l.offline[entry.AssetUUID] = true
		kind := asset.Kind
		l.mu.Unlock()
		log.Printf("location: %s %s is offline or on cellular backup, waiting for status to change", kind, entry.AssetUUID)
	}
}

// GetDevices returns the complete device set for the location,
// connecting and waiting for every asset to report if needed. Once a
// complete set has been seen it is returned immediately, even while a
// reconnect is in progress.
func (l *Location) GetDevices(ctx context.Context) ([]*devices.Device, error) {
	if !l.cfg.HasHubs {
		return nil, nil
	}
	if err := l.ensureConnection(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.snapshot != nil {
		snapshot := l.snapshot
		l.mu.Unlock()
		return snapshot, nil
	}
	ch := make(chan []*devices.Device, 1)
	l.setWaiters = append(l.setWaiters, ch)
	l.mu.Unlock()

	select {
	case snapshot, ok := <-ch:
		if !ok {
			return nil, ringerrors.New(ringerrors.CodeSocketClosed, "location has been disconnected")
		}
		return snapshot, nil
	case <-ctx.Done():
		l.removeSetWaiter(ch)
		return nil, ctx.Err()
	}
}

func (l *Location) removeSetWaiter(ch chan []*devices.Device) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, other := range l.setWaiters {
		if other == ch {
			l.setWaiters = append(l.setWaiters[:i], l.setWaiters[i+1:]...)
			return
		}
	}
}

// OnDevices subscribes to complete device-set publications. If a
// complete set has already been seen it is replayed immediately. The
// returned func cancels the subscription.
func (l *Location) OnDevices(fn func([]*devices.Device)) (cancel func()) {
	l.mu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.setSubs[id] = fn
	snapshot := l.snapshot
	l.mu.Unlock()

	if snapshot != nil {
		fn(snapshot)
	}
	return func() {
		l.mu.Lock()
		delete(l.setSubs, id)
		l.mu.Unlock()
	}
}

// Device returns the device with the given zid, or nil if unknown.
func (l *Location) Device(zid string) *devices.Device {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.devices[zid]
}

// ComponentDevices returns the devices that are components of the
// given parent device.
func (l *Location) ComponentDevices(parentZID string) []*devices.Device {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*devices.Device
	for _, zid := range l.order {
		d := l.devices[zid]
		if d.Data().ParentZID() == parentZID {
			out = append(out, d)
		}
	}
	return out
}
