package devices

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ringclient/ring-client-go/internal/api"
)

type fakeMessenger struct {
	mu   sync.Mutex
	sent []*api.Message
}

func (f *fakeMessenger) SendMessage(ctx context.Context, m *api.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMessenger) last(t *testing.T) *api.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message sent")
	}
	return f.sent[len(f.sent)-1]
}

func newTestDevice(data api.DeviceData) (*Device, *fakeMessenger) {
	m := &fakeMessenger{}
	return New(data, "asset-1", m), m
}

func TestOnDataReplaysCurrentThenUpdates(t *testing.T) {
	d, _ := newTestDevice(api.DeviceData{"zid": "z1", "name": "Front Door", "faulted": false})

	var seen []api.DeviceData
	cancel := d.OnData(func(data api.DeviceData) {
		seen = append(seen, data)
	})
	defer cancel()

	if len(seen) != 1 || seen[0].Name() != "Front Door" {
		t.Fatalf("seen = %v, want immediate replay of current record", seen)
	}

	d.UpdateData(api.DeviceData{"faulted": true})
	if len(seen) != 2 {
		t.Fatalf("seen %d updates, want 2", len(seen))
	}
	// Updates merge into the same record; untouched attributes persist.
	if seen[1].Name() != "Front Door" || seen[1]["faulted"] != true {
		t.Fatalf("merged record = %v, want name preserved and faulted applied", seen[1])
	}
}

func TestCancelStopsSubscription(t *testing.T) {
	d, _ := newTestDevice(api.DeviceData{"zid": "z1"})

	count := 0
	cancel := d.OnData(func(api.DeviceData) { count++ })
	cancel()

	d.UpdateData(api.DeviceData{"name": "x"})
	if count != 1 {
		t.Fatalf("callback fired %d times, want only the initial replay", count)
	}
}

func TestNextUpdateSkipsCurrentValue(t *testing.T) {
	d, _ := newTestDevice(api.DeviceData{"zid": "z1", "mode": "none"})

	ch := d.NextUpdate()
	select {
	case <-ch:
		t.Fatal("waiter fired before any update")
	case <-time.After(20 * time.Millisecond):
	}

	d.UpdateData(api.DeviceData{"mode": "all"})
	select {
	case data := <-ch:
		if data.Mode() != api.AlarmModeAll {
			t.Fatalf("mode = %q, want all", data.Mode())
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never fired")
	}
}

func TestSetInfoWrapsBodyWithZid(t *testing.T) {
	d, m := newTestDevice(api.DeviceData{"zid": "z1"})

	if err := d.SetInfo(context.Background(), map[string]any{"device": map[string]any{"v1": map[string]any{"on": true}}}); err != nil {
		t.Fatalf("setInfo failed: %v", err)
	}

	msg := m.last(t)
	if msg.Msg != api.MessageTypeDeviceInfoSet || msg.Datatype != api.DatatypeDeviceInfoSet {
		t.Fatalf("envelope = %+v, want DeviceInfoSet", msg)
	}
	if msg.Dst != "asset-1" {
		t.Fatalf("dst = %q, want owning asset", msg.Dst)
	}
	var body []map[string]any
	if err := json.Unmarshal(msg.Body, &body); err != nil || len(body) != 1 {
		t.Fatalf("body = %s, want single-entry array", msg.Body)
	}
	if body[0]["zid"] != "z1" {
		t.Fatalf("body entry = %v, want zid injected", body[0])
	}
}

func TestSendCommandBuildsCommandGroup(t *testing.T) {
	d, m := newTestDevice(api.DeviceData{"zid": "panel"})

	if err := d.SendCommand(context.Background(), "security-panel.sound-siren", nil); err != nil {
		t.Fatalf("sendCommand failed: %v", err)
	}

	var body []struct {
		Command struct {
			V1 []struct {
				CommandType string `json:"commandType"`
			} `json:"v1"`
		} `json:"command"`
	}
	if err := json.Unmarshal(m.last(t).Body, &body); err != nil {
		t.Fatalf("body did not decode: %v", err)
	}
	if len(body) != 1 || len(body[0].Command.V1) != 1 || body[0].Command.V1[0].CommandType != "security-panel.sound-siren" {
		t.Fatalf("body = %+v, want one command.v1 entry", body)
	}
}

func TestSetVolumeValidation(t *testing.T) {
	keypad, m := newTestDevice(api.DeviceData{
		"zid":        "z1",
		"deviceType": api.DeviceTypeKeypad,
		"volume":     0.5,
	})

	if err := keypad.SetVolume(context.Background(), 1.5); err == nil {
		t.Fatal("expected out-of-range volume to fail")
	}
	if err := keypad.SetVolume(context.Background(), 0.8); err != nil {
		t.Fatalf("setVolume failed: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d messages, want only the valid write", len(m.sent))
	}

	sensor, _ := newTestDevice(api.DeviceData{"zid": "z2", "deviceType": "sensor.contact"})
	if err := sensor.SetVolume(context.Background(), 0.5); err == nil {
		t.Fatal("expected volume write on unsupported device to fail")
	}
}
